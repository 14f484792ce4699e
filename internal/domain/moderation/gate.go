package moderation

import "strings"

// Categories form a closed enumeration
const (
	CategoryHate     = "hate"
	CategoryViolence = "violence"
	CategorySelfHarm = "self-harm"
)

// Severities, ordered low < medium < high
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Verdict is a positive classification of outbound user text
type Verdict struct {
	Category string
	Severity string
}

// Classifier gates user text before it reaches the model. A nil result
// means the text is clean. Implementations must be deterministic and
// stateless so the gate can run inline before persistence.
type Classifier interface {
	Classify(text string) *Verdict
}

// KeywordClassifier is the default policy: case-insensitive substring match
// against closed keyword lists.
type KeywordClassifier struct{}

var (
	hateWords     = []string{"racist", "kill all", "nazi"}
	violenceWords = []string{"bomb", "shoot", "attack"}
	selfHarmWords = []string{"suicide", "kill myself", "self harm"}
)

func (KeywordClassifier) Classify(text string) *Verdict {
	lower := strings.ToLower(text)

	if containsAny(lower, hateWords) {
		return &Verdict{Category: CategoryHate, Severity: SeverityHigh}
	}
	if containsAny(lower, violenceWords) {
		return &Verdict{Category: CategoryViolence, Severity: SeverityMedium}
	}
	if containsAny(lower, selfHarmWords) {
		return &Verdict{Category: CategorySelfHarm, Severity: SeverityHigh}
	}

	return nil
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
