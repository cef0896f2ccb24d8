package kinetics

import (
	"slices"
	"testing"
)

func TestRegistry_IncrementNegativeIsConsistencyError(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Increment("A", 2); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	err := reg.Increment("A", -3)
	if err == nil {
		t.Fatal("Expected error when count would go negative")
	}
	if !IsConsistencyError(err) {
		t.Errorf("Expected consistency error, got %T: %v", err, err)
	}
	if got := reg.Count("A"); got != 2 {
		t.Errorf("Expected count to stay 2, got %d", got)
	}
}

func TestRegistry_AddDependencyDeduplicates(t *testing.T) {
	reg := NewRegistry()
	reg.AddDependency("A", 3)
	reg.AddDependency("A", 3)
	reg.AddDependency("A", 4)

	deps := reg.Dependents("A")
	if !slices.Equal(deps, []Handle{3, 4}) {
		t.Errorf("Expected dependents [3 4], got %v", deps)
	}
	if !reg.Has("A") {
		t.Error("Expected A to be known after AddDependency")
	}
}

func TestRegistry_IncrementRefreshesOnlyDependents(t *testing.T) {
	reg := NewRegistry()
	sched := NewScheduler(reg, fixedSource{uniform: 0.5, exp: 1})

	c := &countingReaction{deps: []SpeciesName{"A"}}
	h := sched.LinkReaction(c)
	reg.AddDependency("A", h)
	base := c.calls

	if err := reg.Increment("B", 5); err != nil {
		t.Fatalf("Increment B: %v", err)
	}
	if c.calls != base {
		t.Errorf("Expected no refresh for unrelated species, got %d extra", c.calls-base)
	}

	if err := reg.Increment("A", 1); err != nil {
		t.Fatalf("Increment A: %v", err)
	}
	if c.calls != base+1 {
		t.Errorf("Expected exactly one refresh, got %d", c.calls-base)
	}

	if err := reg.Increment("A", 0); err != nil {
		t.Fatalf("Increment A by zero: %v", err)
	}
	if c.calls != base+1 {
		t.Errorf("Expected zero delta not to refresh, got %d", c.calls-base)
	}
}

func TestRegistry_CollisionsResetAfterReport(t *testing.T) {
	reg := NewRegistry()
	reg.Ensure("rnapol")
	reg.InitializeCollision("rnapol")
	for range 3 {
		reg.RecordCollision("rnapol")
	}

	rows := reg.GatherCounts(1)
	if len(rows) != 1 || rows[0].Collisions != 3 {
		t.Fatalf("Expected one row with 3 collisions, got %+v", rows)
	}

	prev := reg.ResetCollisions()
	if prev["rnapol"] != 3 {
		t.Errorf("Expected reset to return 3, got %d", prev["rnapol"])
	}
	if got := reg.Collisions("rnapol"); got != 0 {
		t.Errorf("Expected collisions to be zero after reset, got %d", got)
	}
	if again := reg.ResetCollisions(); again["rnapol"] != 0 {
		t.Errorf("Expected a second reset to return 0, got %d", again["rnapol"])
	}
	if rows := reg.GatherCounts(2); rows[0].Collisions != 0 {
		t.Errorf("Expected the next report to read 0 collisions, got %d", rows[0].Collisions)
	}

	reg.RecordCollision("rnapol")
	if prev := reg.ResetCollisions(); prev["rnapol"] != 1 {
		t.Errorf("Expected a new collision to be reported once, got %d", prev["rnapol"])
	}
}

func TestRegistry_Terminations(t *testing.T) {
	reg := NewRegistry()
	var seen []Termination
	reg.OnTermination(func(term Termination) { seen = append(seen, term) })

	if err := reg.TerminateTranscription("rnapol", "geneA"); err != nil {
		t.Fatalf("TerminateTranscription: %v", err)
	}
	if err := reg.TerminateTranslation(RibosomeName, "proteinA"); err != nil {
		t.Fatalf("TerminateTranslation: %v", err)
	}

	if got := reg.Count("rnapol"); got != 1 {
		t.Errorf("Expected polymerase returned to pool, got %d", got)
	}
	if got := reg.Count("proteinA"); got != 1 {
		t.Errorf("Expected one protein, got %d", got)
	}
	totals := reg.Terminations()
	if totals["geneA_total"] != 1 || totals["proteinA_total"] != 1 {
		t.Errorf("Unexpected termination totals: %v", totals)
	}
	if len(seen) != 2 || !seen[1].Translation {
		t.Errorf("Expected two termination callbacks, second a translation, got %+v", seen)
	}
}

func TestRegistry_SpawnWithoutOrchestrator(t *testing.T) {
	reg := NewRegistry()
	err := reg.SpawnTranscript(newFakeTemplate("tx", "rbs", 1, nil))
	if !IsConsistencyError(err) {
		t.Errorf("Expected consistency error, got %v", err)
	}
}

func TestRegistry_GatherCountsRiboDensity(t *testing.T) {
	reg := NewRegistry()
	if err := reg.IncrementTranscript("geneB", 2); err != nil {
		t.Fatal(err)
	}
	if err := reg.IncrementRibosomes("geneB", 3); err != nil {
		t.Fatal(err)
	}
	if err := reg.Increment("geneA", 4); err != nil {
		t.Fatal(err)
	}

	rows := reg.GatherCounts(2.5)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].Species != "geneA" || rows[1].Species != "geneB" {
		t.Errorf("Expected rows sorted by species, got %s, %s", rows[0].Species, rows[1].Species)
	}
	if rows[1].Transcript != 2 || rows[1].RiboDensity != 1.5 {
		t.Errorf("Expected 2 transcripts at density 1.5, got %+v", rows[1])
	}
	if rows[0].RiboDensity != 0 {
		t.Errorf("Expected zero density without transcripts, got %g", rows[0].RiboDensity)
	}

	if err := reg.IncrementTranscript("geneB", -3); !IsConsistencyError(err) {
		t.Errorf("Expected consistency error for negative transcripts, got %v", err)
	}
}

func TestRegistry_RetireTemplate(t *testing.T) {
	reg := NewRegistry()
	tmpl := newFakeTemplate("tx", "rbs", 1, nil)
	id := reg.LinkTemplate(tmpl, 0)

	if got := reg.TemplatesWithSite("rbs"); len(got) != 1 || got[0] != id {
		t.Fatalf("Expected template indexed under rbs, got %v", got)
	}

	reg.RetireTemplate(id)
	reg.RetireTemplate(id)
	if got := reg.TemplatesWithSite("rbs"); len(got) != 0 {
		t.Errorf("Expected no templates after retire, got %v", got)
	}
	if reg.Templates() != 1 {
		t.Errorf("Expected retired template to stay addressable, got %d templates", reg.Templates())
	}
}

func TestRegistry_CodonMap(t *testing.T) {
	reg := NewRegistry()
	codons := map[string][]string{"AAA": {"tK1", "tK2"}}
	reg.SetCodonMap(codons)
	codons["AAA"][0] = "changed"

	if got := reg.Anticodons("AAA"); !slices.Equal(got, []string{"tK1", "tK2"}) {
		t.Errorf("Expected stored copy [tK1 tK2], got %v", got)
	}
	if got := reg.Anticodons("GGG"); got != nil {
		t.Errorf("Expected nil for unknown codon, got %v", got)
	}
}
