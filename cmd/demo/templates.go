package main

import (
	"fmt"

	"github.com/daniacca/genekin/internal/kinetics"
)

// gene is a single-promoter genome. One polymerase at a time transcribes it;
// each completed pass spawns a transcript.
type gene struct {
	name      kinetics.SpeciesName
	length    int
	promoter  kinetics.SpeciesName
	polRate   float64
	riboRate  float64
	decayRate float64

	active  *kinetics.Element
	spawned []*transcript
}

func newGene(name kinetics.SpeciesName, length int) *gene {
	return &gene{
		name:      name,
		length:    length,
		promoter:  name + "_promoter",
		polRate:   1e9,
		riboRate:  1e9,
		decayRate: 0.1,
	}
}

func (g *gene) Name() string { return string(g.name) + "_gene" }

func (g *gene) rbs() kinetics.SpeciesName { return g.name + "_rbs" }

// Propensity is the rate of finishing the current pass: speed over length.
func (g *gene) Propensity() float64 {
	if g.active == nil {
		return 0
	}
	return g.active.Speed / float64(g.length)
}

func (g *gene) Execute(reg *kinetics.Registry, _ kinetics.Source) error {
	if g.active == nil {
		return fmt.Errorf("%s: no polymerase bound", g.Name())
	}
	pol := g.active.Name
	g.active = nil
	if err := reg.Increment(g.promoter, 1); err != nil {
		return err
	}
	if err := reg.TerminateTranscription(pol, g.name); err != nil {
		return err
	}

	t := newTranscript(g, len(g.spawned))
	g.spawned = append(g.spawned, t)
	if err := reg.IncrementTranscript(g.name, 1); err != nil {
		return err
	}
	return reg.SpawnTranscript(t)
}

func (g *gene) Bind(el kinetics.Element, site kinetics.SpeciesName, _ *kinetics.Registry) error {
	if site != g.promoter || g.active != nil {
		return fmt.Errorf("%s: promoter is not free", g.Name())
	}
	g.active = &el
	return nil
}

func (g *gene) Sites() []kinetics.SpeciesName { return []kinetics.SpeciesName{g.promoter} }

func (g *gene) FreeSites(site kinetics.SpeciesName) int {
	if site == g.promoter && g.active == nil {
		return 1
	}
	return 0
}

// Bindings covers the promoter and the ribosome binding site of every
// transcript this gene will produce.
func (g *gene) Bindings() map[kinetics.SpeciesName]map[kinetics.SpeciesName]float64 {
	return map[kinetics.SpeciesName]map[kinetics.SpeciesName]float64{
		g.promoter: {"rnapol": g.polRate},
		g.rbs():    {kinetics.RibosomeName: g.riboRate},
	}
}

func (g *gene) Degradation() kinetics.Degradation {
	return kinetics.Degradation{ExternalRate: g.decayRate, Footprint: 10, Speed: 20}
}

// transcript carries one ribosome binding site. A bound nuclease hides the
// site and degrades the transcript once no ribosome is left on it.
type transcript struct {
	gene  *gene
	index int

	ribosome   *kinetics.Element
	nuclease   *kinetics.Element
	rbsFree    bool
	degraded   bool
	translated int
}

func newTranscript(g *gene, index int) *transcript {
	return &transcript{gene: g, index: index, rbsFree: true}
}

func (t *transcript) Name() string {
	return fmt.Sprintf("%s_transcript_%d", t.gene.name, t.index)
}

func (t *transcript) Propensity() float64 {
	switch {
	case t.degraded:
		return 0
	case t.ribosome != nil:
		return t.ribosome.Speed / float64(t.gene.length)
	case t.nuclease != nil:
		return t.nuclease.Speed / float64(t.gene.length)
	}
	return 0
}

func (t *transcript) Execute(reg *kinetics.Registry, _ kinetics.Source) error {
	if t.ribosome != nil {
		return t.finishTranslation(reg)
	}
	if t.nuclease != nil {
		t.degraded = true
		t.nuclease = nil
		return reg.IncrementTranscript(t.gene.name, -1)
	}
	return fmt.Errorf("%s: nothing to execute", t.Name())
}

func (t *transcript) finishTranslation(reg *kinetics.Registry) error {
	pol := t.ribosome.Name
	t.ribosome = nil
	t.translated++
	if err := reg.IncrementRibosomes(t.gene.name, -1); err != nil {
		return err
	}
	if err := reg.TerminateTranslation(pol, t.gene.name); err != nil {
		return err
	}
	if t.nuclease == nil {
		t.rbsFree = true
		return reg.Increment(t.gene.rbs(), 1)
	}
	return nil
}

func (t *transcript) Bind(el kinetics.Element, site kinetics.SpeciesName, reg *kinetics.Registry) error {
	switch el.Target {
	case kinetics.TargetNuclease:
		if site != kinetics.NucleaseSiteExt || t.nuclease != nil || t.degraded {
			return fmt.Errorf("%s: 5' end is not free", t.Name())
		}
		t.nuclease = &el
		if t.rbsFree {
			t.rbsFree = false
			return reg.Increment(t.gene.rbs(), -1)
		}
		return nil
	default:
		if site != t.gene.rbs() || !t.rbsFree {
			return fmt.Errorf("%s: ribosome binding site is not free", t.Name())
		}
		t.rbsFree = false
		t.ribosome = &el
		return reg.IncrementRibosomes(t.gene.name, 1)
	}
}

func (t *transcript) Sites() []kinetics.SpeciesName {
	return []kinetics.SpeciesName{t.gene.rbs(), kinetics.NucleaseSiteExt}
}

func (t *transcript) FreeSites(site kinetics.SpeciesName) int {
	switch {
	case t.degraded:
		return 0
	case site == t.gene.rbs() && t.rbsFree:
		return 1
	case site == kinetics.NucleaseSiteExt && t.nuclease == nil:
		return 1
	}
	return 0
}

// Bindings is empty: the gene declares the ribosome binding site rate.
func (t *transcript) Bindings() map[kinetics.SpeciesName]map[kinetics.SpeciesName]float64 {
	return nil
}

// Done reports whether the nuclease has finished.
func (t *transcript) Done() bool { return t.degraded }
