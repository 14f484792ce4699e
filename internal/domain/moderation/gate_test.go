package moderation

import "testing"

func TestKeywordClassifier(t *testing.T) {
	classifier := KeywordClassifier{}

	tests := []struct {
		name         string
		text         string
		wantCategory string
		wantSeverity string
	}{
		{"clean text", "Tell me about the weather in Gdansk", "", ""},
		{"hate keyword", "that guy is a racist", CategoryHate, SeverityHigh},
		{"hate uppercase", "NAZI propaganda", CategoryHate, SeverityHigh},
		{"violence keyword", "how to build a bomb", CategoryViolence, SeverityMedium},
		{"violence embedded", "we should attack the problem", CategoryViolence, SeverityMedium},
		{"self-harm keyword", "I want to kill myself", CategorySelfHarm, SeverityHigh},
		{"self-harm spaced", "thoughts about self harm", CategorySelfHarm, SeverityHigh},
		// "kill all" is hate; hate is checked before self-harm
		{"category precedence", "kill all of them", CategoryHate, SeverityHigh},
		{"empty text", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := classifier.Classify(tt.text)
			if tt.wantCategory == "" {
				if verdict != nil {
					t.Errorf("Classify(%q) = %+v, want clean", tt.text, verdict)
				}
				return
			}
			if verdict == nil {
				t.Fatalf("Classify(%q) = nil, want %s/%s", tt.text, tt.wantCategory, tt.wantSeverity)
			}
			if verdict.Category != tt.wantCategory {
				t.Errorf("Classify(%q) category = %s, want %s", tt.text, verdict.Category, tt.wantCategory)
			}
			if verdict.Severity != tt.wantSeverity {
				t.Errorf("Classify(%q) severity = %s, want %s", tt.text, verdict.Severity, tt.wantSeverity)
			}
		})
	}
}
