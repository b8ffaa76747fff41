package season

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go-ambient/theory"
)

// Season is a calendar season, Northern-hemisphere convention
type Season int

const (
	Winter Season = iota
	Spring
	Summer
	Autumn
	seasonCount
)

var seasonNames = [seasonCount]string{"Winter", "Spring", "Summer", "Autumn"}

// All returns the four seasons in calendar order starting with Winter
func All() []Season {
	return []Season{Winter, Spring, Summer, Autumn}
}

func (s Season) String() string {
	if s < 0 || s >= seasonCount {
		return fmt.Sprintf("Season(%d)", int(s))
	}
	return seasonNames[s]
}

// Next cycles Winter -> Spring -> Summer -> Autumn -> Winter
func (s Season) Next() Season {
	return (s + 1) % seasonCount
}

func Parse(name string) (Season, error) {
	for i, n := range seasonNames {
		if strings.EqualFold(n, name) {
			return Season(i), nil
		}
	}
	return 0, fmt.Errorf("unknown season %q", name)
}

func (s Season) MarshalText() ([]byte, error) {
	if s < 0 || s >= seasonCount {
		return nil, fmt.Errorf("invalid season %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Season) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MonthToSeason maps a month to its season:
// Dec-Feb Winter, Mar-May Spring, Jun-Aug Summer, Sep-Nov Autumn.
func MonthToSeason(month time.Month) Season {
	switch {
	case month >= time.December || month <= time.February:
		return Winter
	case month <= time.May:
		return Spring
	case month <= time.August:
		return Summer
	default:
		return Autumn
	}
}

// ErrIncompletePlan is returned when a plan does not cover every season
var ErrIncompletePlan = errors.New("season plan incomplete")

// Plan maps each season to its default scale
type Plan map[Season]theory.Scale

// DefaultPlan returns the built-in seasonal scales
func DefaultPlan() Plan {
	return Plan{
		Winter: {Root: 50, Mode: theory.Dorian},  // D Dorian
		Spring: {Root: 55, Mode: theory.Lydian},  // G Lydian
		Summer: {Root: 48, Mode: theory.Ionian},  // C Ionian
		Autumn: {Root: 57, Mode: theory.Aeolian}, // A Aeolian
	}
}

// Validate checks every season has a scale with a known mode
func (p Plan) Validate() error {
	var missing []string
	for _, s := range All() {
		sc, ok := p[s]
		if !ok {
			missing = append(missing, s.String())
			continue
		}
		if !sc.Mode.Valid() {
			return fmt.Errorf("season %s: invalid mode %d", s, int(sc.Mode))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompletePlan, strings.Join(missing, ", "))
	}
	return nil
}

// Clone returns an independent copy
func (p Plan) Clone() Plan {
	out := make(Plan, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// PickScaleForDate returns the plan's scale for date's season.
// A nil plan means DefaultPlan.
func PickScaleForDate(date time.Time, plan Plan) theory.Scale {
	if plan == nil {
		plan = DefaultPlan()
	}
	return plan[MonthToSeason(date.Month())]
}
