package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Side is the direction of a position.
type Side int

const (
	SideLong Side = iota + 1
	SideShort
)

// String returns the wire name: "Long" or "Short".
func (s Side) String() string {
	switch s {
	case SideLong:
		return "Long"
	case SideShort:
		return "Short"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// ParseSide accepts "Long"/"Short" in any case.
func ParseSide(v string) (Side, error) {
	switch v {
	case "Long", "long", "LONG":
		return SideLong, nil
	case "Short", "short", "SHORT":
		return SideShort, nil
	default:
		return 0, fmt.Errorf("%w: unknown side %q", ErrInvalidConfiguration, v)
	}
}

// MarshalJSON encodes the side as "Long" or "Short".
func (s Side) MarshalJSON() ([]byte, error) {
	if s != SideLong && s != SideShort {
		return nil, fmt.Errorf("marshal side: invalid value %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes "Long" or "Short".
func (s *Side) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := ParseSide(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalCSV encodes the side for gocsv.
func (s Side) MarshalCSV() (string, error) {
	return s.String(), nil
}

// UnmarshalCSV decodes the side for gocsv.
func (s *Side) UnmarshalCSV(v string) error {
	parsed, err := ParseSide(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Position is the open position of a running simulation.
// Owned by a single simulation loop; never shared.
type Position struct {
	Symbol     string
	Side       Side
	EntryPrice float64   // quantity-weighted average entry price
	EntryTime  time.Time // time of the first entry
	Quantity   float64   // open quantity
	Entries    int       // number of fills (1 + scale-ins)
	FirstPrice float64   // price of the first fill
}
