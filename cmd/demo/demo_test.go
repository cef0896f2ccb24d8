package main

import (
	"context"
	"testing"

	"github.com/daniacca/genekin/internal/kinetics"
)

func TestDemo_GeneExpression(t *testing.T) {
	model, g, err := buildModel(7)
	if err != nil {
		t.Fatal(err)
	}
	sink := &kinetics.MemorySink{}
	if err := model.Simulate(context.Background(), 60, 5, sink); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if len(sink.Rows) == 0 {
		t.Fatal("Expected reports")
	}

	reg := model.Registry()
	live, translated := 0, 0
	for _, tr := range g.spawned {
		if !tr.degraded {
			live++
		}
		translated += tr.translated
	}
	if len(g.spawned) == 0 {
		t.Fatal("Expected at least one transcript")
	}

	var row kinetics.CountRow
	for _, r := range model.Counts() {
		if r.Species == "proteinX" {
			row = r
		}
	}
	if row.Transcript != live {
		t.Errorf("Expected %d live transcripts in the report, got %d", live, row.Transcript)
	}
	if row.Protein != translated {
		t.Errorf("Expected %d proteins, got %d", translated, row.Protein)
	}

	terms := reg.Terminations()
	if terms["proteinX_total"] != len(g.spawned)+translated {
		t.Errorf("Expected %d terminations, got %d", len(g.spawned)+translated, terms["proteinX_total"])
	}

	busy := 0
	if g.active != nil {
		busy = 1
	}
	if free := reg.Count("rnapol"); free+busy != 10 {
		t.Errorf("Expected 10 polymerases in total, got free=%d busy=%d", free, busy)
	}
	boundRibosomes := 0
	for _, tr := range g.spawned {
		if tr.ribosome != nil {
			boundRibosomes++
		}
	}
	if free := reg.Count(kinetics.RibosomeName); free+boundRibosomes != 100 {
		t.Errorf("Expected 100 ribosomes in total, got free=%d bound=%d", free, boundRibosomes)
	}
}

func TestTranscript_BindAndDegrade(t *testing.T) {
	model, err := kinetics.NewModel(1e-15)
	if err != nil {
		t.Fatal(err)
	}
	reg := model.Registry()
	g := newGene("p", 100)
	tr := newTranscript(g, 0)
	if err := model.RegisterTranscript(tr); err != nil {
		t.Fatal(err)
	}
	if reg.Count(g.rbs()) != 1 || reg.Count(kinetics.NucleaseSiteExt) != 1 {
		t.Fatalf("Expected exposed sites, got rbs=%d ext=%d", reg.Count(g.rbs()), reg.Count(kinetics.NucleaseSiteExt))
	}

	nuclease := kinetics.Element{Target: kinetics.TargetNuclease, Polymerase: kinetics.Polymerase{Footprint: 10, Speed: 20}}
	if err := reg.Increment(kinetics.NucleaseSiteExt, -1); err != nil {
		t.Fatal(err)
	}
	if err := tr.Bind(nuclease, kinetics.NucleaseSiteExt, reg); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if reg.Count(g.rbs()) != 0 {
		t.Error("Expected the nuclease to hide the ribosome binding site")
	}
	if err := tr.Bind(nuclease, kinetics.NucleaseSiteExt, reg); err == nil {
		t.Error("Expected second nuclease bind to fail")
	}
	if tr.Propensity() != 0.2 {
		t.Errorf("Expected propensity 0.2, got %g", tr.Propensity())
	}

	if err := reg.IncrementTranscript("p", 1); err != nil {
		t.Fatal(err)
	}
	if err := tr.Execute(reg, kinetics.NewSource(1)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !tr.Done() || tr.Propensity() != 0 || tr.FreeSites(kinetics.NucleaseSiteExt) != 0 {
		t.Error("Expected a finished transcript")
	}
}
