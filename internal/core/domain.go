package core

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// Borough is one of the five NYC boroughs, the partition key of the census queries.
	Borough string

	// Health is the ordinal tree condition rating.
	Health string

	// Steward is the bucketed number of stewardship signs observed on a tree.
	Steward string

	// TreeRecord is one normalized census row: a grouped count for a
	// (borough, species, health, steward) combination.
	TreeRecord struct {
		Borough Borough
		Species string
		Health  Health
		Steward Steward
		Count   int64
	}
)

const (
	Bronx        Borough = "Bronx"
	Brooklyn     Borough = "Brooklyn"
	Manhattan    Borough = "Manhattan"
	Queens       Borough = "Queens"
	StatenIsland Borough = "Staten Island"
)

const (
	HealthPoor Health = "Poor"
	HealthFair Health = "Fair"
	HealthGood Health = "Good"
)

const (
	StewardNone      Steward = "None"
	StewardOneOrTwo  Steward = "1or2"
	StewardThreeFour Steward = "3or4"
	StewardMoreThan4 Steward = ">4"
)

var (
	ErrUnknownBorough  = errors.New("unknown borough")
	ErrUnknownCategory = errors.New("unknown category")
	ErrEmptySpecies    = errors.New("empty species")
	ErrNegativeCount   = errors.New("negative count")
	ErrInvalidRecord   = errors.New("invalid record")
)

var (
	boroughs = []Borough{Bronx, Brooklyn, Manhattan, Queens, StatenIsland}
	healths  = []Health{HealthPoor, HealthFair, HealthGood}
	stewards = []Steward{StewardNone, StewardOneOrTwo, StewardThreeFour, StewardMoreThan4}
)

// Boroughs returns the fixed borough list in query order.
func Boroughs() []Borough {
	return append([]Borough(nil), boroughs...)
}

// Healths returns the health levels ordered Poor, Fair, Good.
func Healths() []Health {
	return append([]Health(nil), healths...)
}

// Stewards returns the steward buckets ordered None, 1or2, 3or4, >4.
func Stewards() []Steward {
	return append([]Steward(nil), stewards...)
}

// ParseBorough matches s exactly against the fixed borough list.
func ParseBorough(s string) (Borough, error) {
	s = strings.TrimSpace(s)
	for _, b := range boroughs {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBorough, s)
}

func ParseHealth(s string) (Health, error) {
	s = strings.TrimSpace(s)
	for _, h := range healths {
		if string(h) == s {
			return h, nil
		}
	}
	return "", fmt.Errorf("%w: health %q", ErrUnknownCategory, s)
}

func ParseSteward(s string) (Steward, error) {
	s = strings.TrimSpace(s)
	for _, st := range stewards {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: steward %q", ErrUnknownCategory, s)
}

func (b Borough) String() string { return string(b) }
func (h Health) String() string  { return string(h) }
func (s Steward) String() string { return string(s) }

// Rank returns the position of h in the health ordering, or len(Healths())
// for values outside the set so they sort last.
func (h Health) Rank() int {
	for i, v := range healths {
		if v == h {
			return i
		}
	}
	return len(healths)
}

// Rank returns the position of s in the steward ordering, or len(Stewards())
// for values outside the set.
func (s Steward) Rank() int {
	for i, v := range stewards {
		if v == s {
			return i
		}
	}
	return len(stewards)
}

// Rank returns the position of b in the borough list, or len(Boroughs()).
func (b Borough) Rank() int {
	for i, v := range boroughs {
		if v == b {
			return i
		}
	}
	return len(boroughs)
}

func (h Health) Valid() bool  { return h.Rank() < len(healths) }
func (s Steward) Valid() bool { return s.Rank() < len(stewards) }
func (b Borough) Valid() bool { return b.Rank() < len(boroughs) }

// Validate reports why r cannot enter the normalized table. Every failure
// wraps ErrInvalidRecord together with the specific cause.
func (r TreeRecord) Validate() error {
	if err := r.check(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return nil
}

func (r TreeRecord) check() error {
	if !r.Borough.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownBorough, r.Borough)
	}
	if strings.TrimSpace(r.Species) == "" {
		return ErrEmptySpecies
	}
	if !r.Health.Valid() {
		return fmt.Errorf("%w: health %q", ErrUnknownCategory, r.Health)
	}
	if !r.Steward.Valid() {
		return fmt.Errorf("%w: steward %q", ErrUnknownCategory, r.Steward)
	}
	if r.Count < 0 {
		return ErrNegativeCount
	}
	return nil
}
