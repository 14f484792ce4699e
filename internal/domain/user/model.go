package user

import "github.com/nethira/chatcore/internal/database"

// Roles known to the API surface. Role is a single claim checked on admin
// routes; there is no permission engine behind it.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	database.BaseModel
	Username    string `gorm:"column:username;unique;not null"`
	Email       string `gorm:"column:email;unique;not null"`
	Password    string `gorm:"column:password;not null"`
	DisplayName string `gorm:"column:display_name"`
	Role        string `gorm:"column:role;default:user"`
	IsActive    bool   `gorm:"column:is_active;default:true"`
}

func (User) TableName() string {
	return "users"
}

// Response is the user shape exposed by the API, without the password hash
type Response struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// ToResponse strips credentials from the row
func (u *User) ToResponse() *Response {
	return &Response{
		ID:          u.ID.String(),
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
	}
}

// RegisterRequest is the registration payload
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
