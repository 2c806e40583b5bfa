package guard

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

// Policy defines what a turn may carry before it reaches the engine.
type Policy struct {
	MaxInputChars int      `json:"max_input_chars" yaml:"max_input_chars"`
	AllowedUsers  []string `json:"allowed_users" yaml:"allowed_users"`
}

// DefaultPolicy provides safe defaults.
var DefaultPolicy = Policy{
	MaxInputChars: 4000,
	AllowedUsers:  []string{"**"},
}

// Violation represents a specific breach of policy.
type Violation struct {
	Rule    string
	Message string
}

func (v *Violation) Error() string {
	return v.Rule + ": " + v.Message
}

// Guard enforces the policy.
type Guard struct {
	policy Policy
}

func New(p Policy) *Guard {
	return &Guard{policy: p}
}

// Policy returns the guard's current policy configuration.
func (g *Guard) Policy() Policy {
	return g.policy
}

// CheckInput rejects text that is empty, not UTF-8, or too long.
func (g *Guard) CheckInput(text string) *Violation {
	if !utf8.ValidString(text) {
		return &Violation{Rule: "invalid_utf8", Message: "Input is not valid UTF-8"}
	}
	if strings.TrimSpace(text) == "" {
		return &Violation{Rule: "empty_input", Message: "Input text is empty"}
	}
	if max := g.policy.MaxInputChars; max > 0 {
		if n := utf8.RuneCountInString(text); n > max {
			return &Violation{Rule: "max_input_chars", Message: fmt.Sprintf("Input is %d characters, limit is %d", n, max)}
		}
	}
	return nil
}

// CheckUser verifies the user id against the allow-list globs. An empty
// list allows everyone.
func (g *Guard) CheckUser(userID string) *Violation {
	if strings.TrimSpace(userID) == "" {
		return &Violation{Rule: "empty_user", Message: "User id is required"}
	}
	if len(g.policy.AllowedUsers) == 0 {
		return nil
	}
	for _, pattern := range g.policy.AllowedUsers {
		match, err := doublestar.Match(pattern, userID)
		if err == nil && match {
			return nil
		}
	}
	return &Violation{Rule: "allowed_users", Message: "User not allowed: " + userID}
}

// ValidatePatterns reports the first malformed allow-list glob.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid user pattern %q", p)
		}
	}
	return nil
}
