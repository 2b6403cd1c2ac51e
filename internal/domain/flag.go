package domain

import "strings"

// Flag is a tri-state boolean read from columns that hold either real
// booleans or string markers such as "Y" or "true".
type Flag int8

const (
	FlagUnset Flag = iota
	FlagFalse
	FlagTrue
)

// ParseFlag interprets the textual form of a boolean-or-marker column.
func ParseFlag(raw string) Flag {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return FlagUnset
	case "true", "t", "y", "yes", "1", "x":
		return FlagTrue
	default:
		return FlagFalse
	}
}

// IsTrue reports whether the flag was explicitly set to true. Unset counts as false.
func (f Flag) IsTrue() bool { return f == FlagTrue }

func (f Flag) String() string {
	switch f {
	case FlagTrue:
		return "true"
	case FlagFalse:
		return "false"
	default:
		return "unset"
	}
}
