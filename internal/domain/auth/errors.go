package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when the email or password is wrong
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidBody is returned when the request body cannot be parsed
	ErrInvalidBody = errors.New("invalid request body")
	// ErrInvalidToken is returned when a token is malformed or mis-signed
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a well-signed token is past its expiry
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongTokenType is returned when an access token is presented where
	// a refresh token is required, or vice versa
	ErrWrongTokenType = errors.New("wrong token type")
)
