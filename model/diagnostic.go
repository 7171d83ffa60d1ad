package model

import (
	"fmt"
	"strings"
)

// Severity grades a diagnostic. The ordering is total: Info < Warning < Error.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Label is the title-cased form shown next to a message, e.g. "Warning".
func (s Severity) Label() string {
	name := s.String()
	return name[:1] + strings.ToLower(name[1:])
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity accepts "info", "warning"/"warn" and "error" in any case.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	}
	return SeverityInfo, fmt.Errorf("unknown severity %q", s)
}

// Diagnostic is a graded finding attached to one event.
type Diagnostic struct {
	TargetEventID string   `json:"target_event_id" msgpack:"target_event_id"`
	Severity      Severity `json:"severity" msgpack:"severity"`
	Message       string   `json:"message" msgpack:"message"`
	Source        string   `json:"source" msgpack:"source"`

	// Related holds the ids of the events the producer matched, if any.
	Related []string `json:"related,omitempty" msgpack:"related,omitempty"`
}

// Title renders the diagnostic the way the log table tooltip shows it.
func (d Diagnostic) Title() string {
	return d.Severity.Label() + ": " + d.Message
}
