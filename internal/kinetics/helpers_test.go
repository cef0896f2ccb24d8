package kinetics

import (
	"fmt"
	"sync"
)

// recordingLogger keeps every formatted message by level.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	infos []string
}

func (l *recordingLogger) Debugf(string, ...any) {}

func (l *recordingLogger) Infof(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Errorf(string, ...any) {}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

// fixedSource returns the same draws forever.
type fixedSource struct {
	uniform float64
	exp     float64
}

func (s fixedSource) Float64() float64    { return s.uniform }
func (s fixedSource) ExpFloat64() float64 { return s.exp }

// fakeTemplate exposes one kind of site and terminates bound elements one
// per Execute, exposing the site again.
type fakeTemplate struct {
	name     string
	gene     SpeciesName
	site     SpeciesName
	free     int
	rates    map[SpeciesName]float64
	speed    float64
	elements []Element

	// spawn, when set, is called on every Execute before terminating.
	spawn func(reg *Registry) error
}

func newFakeTemplate(name string, site SpeciesName, free int, rates map[SpeciesName]float64) *fakeTemplate {
	return &fakeTemplate{
		name:  name,
		gene:  SpeciesName(name + "_gene"),
		site:  site,
		free:  free,
		rates: rates,
		speed: 10,
	}
}

func (f *fakeTemplate) Name() string { return f.name }

func (f *fakeTemplate) Propensity() float64 {
	return f.speed * float64(len(f.elements))
}

func (f *fakeTemplate) Execute(reg *Registry, _ Source) error {
	if len(f.elements) == 0 {
		return fmt.Errorf("%s: nothing bound", f.name)
	}
	if f.spawn != nil {
		if err := f.spawn(reg); err != nil {
			return err
		}
	}
	el := f.elements[0]
	f.elements = f.elements[1:]
	f.free++
	if err := reg.Increment(f.site, 1); err != nil {
		return err
	}
	return reg.TerminateTranscription(el.Name, f.gene)
}

func (f *fakeTemplate) Bind(el Element, site SpeciesName, _ *Registry) error {
	if site != f.site || f.free == 0 {
		return fmt.Errorf("%s: site %s is not free", f.name, site)
	}
	f.free--
	f.elements = append(f.elements, el)
	return nil
}

func (f *fakeTemplate) Sites() []SpeciesName { return []SpeciesName{f.site} }

func (f *fakeTemplate) FreeSites(site SpeciesName) int {
	if site != f.site {
		return 0
	}
	return f.free
}

func (f *fakeTemplate) Bindings() map[SpeciesName]map[SpeciesName]float64 {
	return map[SpeciesName]map[SpeciesName]float64{f.site: f.rates}
}

// fakeGenome adds degradation parameters to fakeTemplate.
type fakeGenome struct {
	*fakeTemplate
	degradation Degradation
}

func (g *fakeGenome) Degradation() Degradation { return g.degradation }

// countingReaction counts how often its propensity is computed.
type countingReaction struct {
	deps  []SpeciesName
	calls int
}

func (c *countingReaction) Kind() Kind   { return KindMassAction }
func (c *countingReaction) Name() string { return "counting" }
func (c *countingReaction) Propensity(Counts) float64 {
	c.calls++
	return 0
}
func (c *countingReaction) Execute(*Registry, Source) error { return nil }
func (c *countingReaction) Dependencies() []SpeciesName     { return c.deps }
