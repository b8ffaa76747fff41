package season

import (
	"sync"
	"time"

	"go-ambient/debug"
	"go-ambient/theory"
)

// Policy owns scale selection state: an optional locked scale, the
// follow-seasons flag, and an optional season picked from the UI.
// All methods are safe for concurrent use; each setter updates its
// fields under one lock so readers never see a half-applied change.
type Policy struct {
	mu       sync.RWMutex
	plan     Plan
	locked   *theory.Scale
	follow   bool
	selected *Season

	now func() time.Time
}

// State is a consistent copy of a Policy's fields
type State struct {
	Locked   *theory.Scale
	Follow   bool
	Selected *Season
	Season   Season       // season in effect for the seasonal branch
	Current  theory.Scale // what CurrentScale returns
}

// Option configures a Policy
type Option func(*Policy)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// NewPolicy builds a policy following seasons with no lock.
// A nil plan uses DefaultPlan; any other plan must cover all four seasons.
func NewPolicy(plan Plan, opts ...Option) (*Policy, error) {
	if plan == nil {
		plan = DefaultPlan()
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{
		plan:   plan.Clone(),
		follow: true,
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// CurrentScale returns the locked scale when a lock is set and seasons are
// not followed. Otherwise it returns the selected season's scale, or the
// scale for today's date. Nothing is cached.
func (p *Policy) CurrentScale() theory.Scale {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentLocked()
}

func (p *Policy) currentLocked() theory.Scale {
	if p.locked != nil && !p.follow {
		return *p.locked
	}
	return p.plan[p.seasonLocked()]
}

func (p *Policy) seasonLocked() Season {
	if p.selected != nil {
		return *p.selected
	}
	return MonthToSeason(p.now().Month())
}

// LockScale sets the locked scale. A non-nil scale also turns off
// follow-seasons. nil clears the lock and leaves the flag alone; with the
// flag off and no lock, CurrentScale still falls back to the seasons.
func (p *Policy) LockScale(s *theory.Scale) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s == nil {
		p.locked = nil
		debug.Log("season", "unlocked (follow=%v)", p.follow)
		return
	}
	sc := *s
	p.locked = &sc
	p.follow = false
	debug.Log("season", "locked to %s", sc)
}

// SetFollowSeasons sets the follow flag. The lock, if any, is kept so that
// turning follow off again restores it.
func (p *Policy) SetFollowSeasons(follow bool) {
	p.mu.Lock()
	p.follow = follow
	p.mu.Unlock()
	debug.Log("season", "follow seasons=%v", follow)
}

func (p *Policy) IsFollowingSeasons() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.follow
}

// SetMode replaces the lock and the follow flag in one step
func (p *Policy) SetMode(locked *theory.Scale, follow bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if locked == nil {
		p.locked = nil
	} else {
		sc := *locked
		p.locked = &sc
	}
	p.follow = follow
	debug.Log("season", "mode locked=%v follow=%v", p.locked != nil, follow)
}

// SelectSeason pins the seasonal branch to s instead of the calendar.
// It has no effect on CurrentScale while a lock is in force.
func (p *Policy) SelectSeason(s Season) {
	p.mu.Lock()
	p.selected = &s
	p.mu.Unlock()
	debug.Log("season", "selected %s", s)
}

// ClearSeason returns the seasonal branch to the calendar
func (p *Policy) ClearSeason() {
	p.mu.Lock()
	p.selected = nil
	p.mu.Unlock()
}

// CurrentSeason is the season the seasonal branch would use right now
func (p *Policy) CurrentSeason() Season {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.seasonLocked()
}

// Plan returns a copy of the policy's season plan
func (p *Policy) Plan() Plan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.plan.Clone()
}

func (p *Policy) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := State{
		Follow:  p.follow,
		Season:  p.seasonLocked(),
		Current: p.currentLocked(),
	}
	if p.locked != nil {
		sc := *p.locked
		st.Locked = &sc
	}
	if p.selected != nil {
		s := *p.selected
		st.Selected = &s
	}
	return st
}
