package shorten

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects the shortening strategy.
type Mode int

// Mode constants. External callers should refer to them by name.
const (
	// Plain cuts the input with no special treatment of punctuation.
	Plain Mode = iota
	// WithPunctuation cuts the input and then drops a dangling run of
	// punctuation or whitespace left at the cut point.
	WithPunctuation
)

// Text names used in config files, flags and the HTTP API.
const (
	NamePlain           = "plain"
	NameWithPunctuation = "punctuation"
)

// ErrInvalidMode is the sentinel wrapped by every InvalidModeError.
var ErrInvalidMode = errors.New("invalid shorten mode")

// InvalidModeError reports a mode value outside the enumerated set.
// It is a programming error and is never retried.
type InvalidModeError struct {
	Mode Mode
	Name string
}

func (e *InvalidModeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %q", ErrInvalidMode, e.Name)
	}
	return fmt.Sprintf("%s: %d", ErrInvalidMode, int(e.Mode))
}

// Unwrap lets errors.Is match ErrInvalidMode.
func (e *InvalidModeError) Unwrap() error {
	return ErrInvalidMode
}

// Modes returns all valid modes in declaration order.
func Modes() []Mode {
	return []Mode{Plain, WithPunctuation}
}

// Valid reports whether m is one of the enumerated modes.
func (m Mode) Valid() bool {
	switch m {
	case Plain, WithPunctuation:
		return true
	default:
		return false
	}
}

func (m Mode) String() string {
	switch m {
	case Plain:
		return NamePlain
	case WithPunctuation:
		return NameWithPunctuation
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a text name into a Mode. Matching is case-insensitive
// and accepts a few spellings of WithPunctuation.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case NamePlain, "normal":
		return Plain, nil
	case NameWithPunctuation, "punct", "with-punctuation", "withpunctuation", "with_punctuation":
		return WithPunctuation, nil
	default:
		return 0, &InvalidModeError{Mode: -1, Name: s}
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, &InvalidModeError{Mode: m}
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
