package kinetics

import (
	"fmt"
	"math"
)

// resyncEvery bounds floating-point drift of the running propensity total.
const resyncEvery = 1 << 16

// Step reports the outcome of one scheduler iteration.
type Step struct {
	Handle Handle
	Tau    float64
	Time   float64
	// Stalled is set when the total propensity was zero: nothing fired and
	// time moved to +Inf.
	Stalled bool
}

// Scheduler runs Gillespie's direct method over an arena of reactions.
// It is not safe for concurrent use.
type Scheduler struct {
	reg *Registry
	rng Source

	reactions []Reaction
	props     []float64
	total     float64
	time      float64

	steps     uint64
	refreshes uint64
	fault     error
}

// NewScheduler creates a scheduler reading counts from reg and registers
// itself as the registry's listener.
func NewScheduler(reg *Registry, rng Source) *Scheduler {
	if rng == nil {
		rng = newTimeSource()
	}
	s := &Scheduler{reg: reg, rng: rng}
	reg.SetListener(s)
	return s
}

// SetSource replaces the random source.
func (s *Scheduler) SetSource(rng Source) {
	s.rng = rng
}

// LinkReaction appends r to the live set and folds its current propensity
// into the total.
func (s *Scheduler) LinkReaction(r Reaction) Handle {
	h := Handle(len(s.reactions))
	s.reactions = append(s.reactions, r)
	s.props = append(s.props, 0)
	s.Refresh(h)
	return h
}

// Refresh recomputes the propensity of h.
func (s *Scheduler) Refresh(h Handle) {
	s.refreshes++
	s.UpdatePropensity(h, s.reactions[h].Propensity(s.reg))
}

// UpdatePropensity stores a new propensity for h and adjusts the total by
// the difference. Negative or NaN values are recorded as a fault that the
// next Iterate returns.
func (s *Scheduler) UpdatePropensity(h Handle, value float64) {
	if value < 0 || math.IsNaN(value) {
		if s.fault == nil {
			s.fault = &ConsistencyError{
				Reaction: s.reactions[h].Name(),
				Reason:   fmt.Sprintf("invalid propensity %g", value),
			}
		}
		value = 0
	}
	s.total += value - s.props[h]
	s.props[h] = value
}

// Iterate fires one reaction.
func (s *Scheduler) Iterate() (Step, error) {
	if s.fault != nil {
		return Step{Time: s.time}, s.fault
	}
	if s.steps%resyncEvery == 0 || s.total < 0 {
		s.Resync()
	}

	total := s.total
	if total <= 0 {
		s.time = math.Inf(1)
		return Step{Handle: -1, Time: s.time, Stalled: true}, nil
	}

	tau := s.rng.ExpFloat64() / total
	s.time += tau

	h := s.choose(total)
	if h < 0 {
		// Positive total from rounding residue with every propensity at zero.
		s.Resync()
		s.time = math.Inf(1)
		return Step{Handle: -1, Time: s.time, Stalled: true}, nil
	}

	r := s.reactions[h]
	if err := r.Execute(s.reg, s.rng); err != nil {
		return Step{Handle: h, Tau: tau, Time: s.time}, fmt.Errorf("execute %s %q: %w", r.Kind(), r.Name(), err)
	}
	s.Refresh(h)
	s.steps++
	if s.fault != nil {
		return Step{Handle: h, Tau: tau, Time: s.time}, s.fault
	}
	return Step{Handle: h, Tau: tau, Time: s.time}, nil
}

// choose returns the first reaction whose cumulative propensity exceeds a
// uniform draw in [0, total). If rounding leaves the last cumulative sum
// short of the draw, the last reaction with positive propensity is chosen.
func (s *Scheduler) choose(total float64) Handle {
	target := s.rng.Float64() * total
	last := Handle(-1)
	var cum float64
	for i, p := range s.props {
		if p <= 0 {
			continue
		}
		cum += p
		last = Handle(i)
		if target < cum {
			return last
		}
	}
	return last
}

// Resync recomputes the total from the stored propensities.
func (s *Scheduler) Resync() {
	var total float64
	for _, p := range s.props {
		total += p
	}
	s.total = total
}

// Time returns the current simulated time.
func (s *Scheduler) Time() float64 { return s.time }

// TotalPropensity returns the running total.
func (s *Scheduler) TotalPropensity() float64 { return s.total }

// Propensity returns the stored propensity of h.
func (s *Scheduler) Propensity(h Handle) float64 { return s.props[h] }

// Reaction returns the reaction linked under h.
func (s *Scheduler) Reaction(h Handle) Reaction { return s.reactions[h] }

// Len returns the number of linked reactions.
func (s *Scheduler) Len() int { return len(s.reactions) }

// Steps returns the number of reactions fired.
func (s *Scheduler) Steps() uint64 { return s.steps }

// Refreshes returns the number of propensity recomputations so far.
func (s *Scheduler) Refreshes() uint64 { return s.refreshes }
