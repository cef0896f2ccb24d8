package kinetics

import (
	"math"
	"testing"
)

func TestScheduler_StallsWithoutPropensity(t *testing.T) {
	reg := NewRegistry()
	sched := NewScheduler(reg, NewSource(1))

	step, err := sched.Iterate()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !step.Stalled {
		t.Error("Expected stalled step")
	}
	if !math.IsInf(sched.Time(), 1) {
		t.Errorf("Expected time +Inf, got %g", sched.Time())
	}
}

func TestScheduler_ChooseClampsToLastPositive(t *testing.T) {
	m, err := NewModel(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.AddSpecies("A", 1); err != nil {
		t.Fatal(err)
	}
	if err := m.AddSpecies("B", 2); err != nil {
		t.Fatal(err)
	}
	for _, name := range []SpeciesName{"A", "B", "C"} {
		if _, err := m.AddReaction(1, []SpeciesName{name}, nil); err != nil {
			t.Fatal(err)
		}
	}
	// A draw at the very top of the range overshoots the cumulative sum.
	m.Scheduler().SetSource(fixedSource{uniform: 1, exp: 1})
	if err := m.Initialize(); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Step(1); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if m.Count("B") != 1 {
		t.Errorf("Expected the last positive reaction (B) to fire, B=%d", m.Count("B"))
	}
	if m.Count("A") != 1 {
		t.Errorf("Expected A untouched, got %d", m.Count("A"))
	}
}

func TestScheduler_TotalMatchesSumOfPropensities(t *testing.T) {
	m, err := NewModel(1e-15)
	if err != nil {
		t.Fatal(err)
	}
	m.Seed(42)
	for name, n := range map[SpeciesName]int{"A": 500, "B": 300, "C": 0} {
		if err := m.AddSpecies(name, n); err != nil {
			t.Fatal(err)
		}
	}
	reactions := []struct {
		rate      float64
		reactants []SpeciesName
		products  []SpeciesName
	}{
		{1, []SpeciesName{"A"}, []SpeciesName{"B"}},
		{0.7, []SpeciesName{"B"}, []SpeciesName{"A"}},
		{1e8, []SpeciesName{"A", "B"}, []SpeciesName{"C"}},
		{2, []SpeciesName{"C"}, []SpeciesName{"A", "B"}},
		{5e7, []SpeciesName{"A", "A"}, []SpeciesName{"C"}},
		{3, nil, []SpeciesName{"A"}},
	}
	for _, r := range reactions {
		if _, err := m.AddReaction(r.rate, r.reactants, r.products); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Initialize(); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Step(5000); err != nil {
		t.Fatalf("Step: %v", err)
	}

	sched := m.Scheduler()
	var sum float64
	for h := range sched.Len() {
		want := sched.Reaction(Handle(h)).Propensity(m.Registry())
		got := sched.Propensity(Handle(h))
		if math.Abs(want-got) > 1e-9*math.Max(1, want) {
			t.Errorf("Handle %d: stored propensity %g, recomputed %g", h, got, want)
		}
		sum += want
	}
	if diff := math.Abs(sched.TotalPropensity() - sum); diff > 1e-9*math.Max(1, sum) {
		t.Errorf("Running total %g drifted from sum %g", sched.TotalPropensity(), sum)
	}
}

func TestScheduler_FaultOnNegativePropensity(t *testing.T) {
	reg := NewRegistry()
	sched := NewScheduler(reg, NewSource(1))
	h := sched.LinkReaction(&countingReaction{})
	sched.UpdatePropensity(h, -1)

	if sched.Propensity(h) != 0 {
		t.Errorf("Expected invalid propensity stored as 0, got %g", sched.Propensity(h))
	}
	if _, err := sched.Iterate(); !IsConsistencyError(err) {
		t.Errorf("Expected consistency error, got %v", err)
	}
}

func TestWeightedChoice(t *testing.T) {
	if got := weightedChoice(fixedSource{uniform: 0.3}, []float64{0, 0}); got != -1 {
		t.Errorf("Expected -1 for all-zero weights, got %d", got)
	}
	if got := weightedChoice(fixedSource{uniform: 0.2}, []float64{1, 0, 3}); got != 0 {
		t.Errorf("Expected index 0, got %d", got)
	}
	if got := weightedChoice(fixedSource{uniform: 0.5}, []float64{1, 0, 3}); got != 2 {
		t.Errorf("Expected index 2, got %d", got)
	}
	if got := weightedChoice(fixedSource{uniform: 1}, []float64{1, 3, 0}); got != 1 {
		t.Errorf("Expected clamp to index 1, got %d", got)
	}
}

func TestScheduler_ExecuteRefreshesOnlyTouchedDependents(t *testing.T) {
	reg := NewRegistry()
	sched := NewScheduler(reg, fixedSource{uniform: 0.5, exp: 1})
	for _, name := range []SpeciesName{"A", "B", "C"} {
		if err := reg.Increment(name, 5); err != nil {
			t.Fatal(err)
		}
	}

	bind, err := NewMassAction(1, 1, []SpeciesName{"A", "B"}, []SpeciesName{"AB"})
	if err != nil {
		t.Fatal(err)
	}
	link := func(r Reaction) Handle {
		h := sched.LinkReaction(r)
		for _, name := range r.Dependencies() {
			reg.AddDependency(name, h)
		}
		return h
	}
	hBind := link(bind)
	onA := &countingReaction{deps: []SpeciesName{"A"}}
	onB := &countingReaction{deps: []SpeciesName{"B"}}
	onC := &countingReaction{deps: []SpeciesName{"C"}}
	for _, c := range []*countingReaction{onA, onB, onC} {
		link(c)
	}
	baseA, baseB, baseC := onA.calls, onB.calls, onC.calls
	baseRefreshes := sched.Refreshes()

	step, err := sched.Iterate()
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if step.Handle != hBind {
		t.Fatalf("Expected the A+B reaction to fire, got handle %d", step.Handle)
	}
	if reg.Count("A") != 4 || reg.Count("B") != 4 || reg.Count("AB") != 1 {
		t.Fatalf("Unexpected counts A=%d B=%d AB=%d", reg.Count("A"), reg.Count("B"), reg.Count("AB"))
	}

	if onA.calls != baseA+1 || onB.calls != baseB+1 {
		t.Errorf("Expected one refresh each for A and B dependents, got %d and %d", onA.calls-baseA, onB.calls-baseB)
	}
	if onC.calls != baseC {
		t.Errorf("Expected no refresh for the C dependent, got %d", onC.calls-baseC)
	}
	// A and B each refresh the fired reaction and their counter; the fired
	// reaction is refreshed once more after executing.
	if got := sched.Refreshes() - baseRefreshes; got != 5 {
		t.Errorf("Expected 5 refreshes, got %d", got)
	}
}
