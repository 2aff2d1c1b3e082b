package autonomy

import (
	"errors"
	"fmt"
)

// ErrUnknownLevel is returned by ParseLevel for names outside the three levels.
var ErrUnknownLevel = errors.New("unknown autonomy level")

// Level is a graduated permission tier. Higher levels unlock more actions
// and never lose any action a lower level had.
type Level int

const (
	Monitoring Level = 0 // observe and log only
	Artefact   Level = 1 // maintain shared artefacts, notify internally
	Tactical   Level = 2 // act on external systems and stakeholders
)

// Levels lists all levels in ascending order.
var Levels = []Level{Monitoring, Artefact, Tactical}

func (l Level) String() string {
	switch l {
	case Monitoring:
		return "monitoring"
	case Artefact:
		return "artefact"
	case Tactical:
		return "tactical"
	default:
		return fmt.Sprintf("unknown(%d)", int(l))
	}
}

// Valid reports whether l is one of the declared levels.
func (l Level) Valid() bool {
	return l >= Monitoring && l <= Tactical
}

// ParseLevel maps a level name to a Level. Matching is exact.
func ParseLevel(name string) (Level, error) {
	switch name {
	case "monitoring":
		return Monitoring, nil
	case "artefact":
		return Artefact, nil
	case "tactical":
		return Tactical, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
	}
}

// Compare orders levels by rank: negative if a < b, zero if equal,
// positive if a > b.
func Compare(a, b Level) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// MarshalText renders the level name for JSON and YAML.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText parses a level name.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
