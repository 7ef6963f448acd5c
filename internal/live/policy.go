package live

import (
	"fmt"
	"strings"

	"github.com/stemsi/exstem-live/internal/model"
)

// AutoAdvancePolicy decides whether the host console advances on its own
// when a question's countdown runs out.
type AutoAdvancePolicy string

const (
	// AutoAdvanceExam advances exam sessions only. Polls and surveys wait for the host.
	AutoAdvanceExam   AutoAdvancePolicy = "exam"
	AutoAdvanceAlways AutoAdvancePolicy = "always"
	AutoAdvanceNever  AutoAdvancePolicy = "never"
)

// ParseAutoAdvancePolicy parses the AUTO_ADVANCE setting.
func ParseAutoAdvancePolicy(s string) (AutoAdvancePolicy, error) {
	switch p := AutoAdvancePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case AutoAdvanceExam, AutoAdvanceAlways, AutoAdvanceNever:
		return p, nil
	case "":
		return AutoAdvanceExam, nil
	default:
		return "", fmt.Errorf("unknown auto-advance policy %q", s)
	}
}

// Applies reports whether an expiry in a session of type t advances it.
func (p AutoAdvancePolicy) Applies(t model.SessionType) bool {
	switch p {
	case AutoAdvanceAlways:
		return true
	case AutoAdvanceNever:
		return false
	default:
		return t == model.SessionTypeExam
	}
}
