package kinetics

import (
	"fmt"
	"slices"
)

// PropensityListener is told when a reaction's inputs changed.
type PropensityListener interface {
	Refresh(h Handle)
}

// Termination describes a mobile element finishing its run on a template.
type Termination struct {
	Polymerase SpeciesName
	Gene       SpeciesName
	// Translation is false for transcription terminations.
	Translation bool
}

type edge struct {
	species SpeciesName
	handle  Handle
}

// Registry is the single table of species copy numbers. It is the only
// place counts change, and it forwards each change to exactly the reactions
// that read the changed species.
type Registry struct {
	counts   map[SpeciesName]int
	deps     map[SpeciesName][]Handle
	edges    map[edge]struct{}
	listener PropensityListener

	templates []templateEntry
	bySite    map[SpeciesName][]TemplateID

	transcripts  map[SpeciesName]int
	ribosomes    map[SpeciesName]int
	collisions   map[SpeciesName]int
	terminations map[SpeciesName]int
	codons       map[string][]string

	onSpawn       func(Template) error
	onTermination func(Termination)
	logger        Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counts:       make(map[SpeciesName]int),
		deps:         make(map[SpeciesName][]Handle),
		edges:        make(map[edge]struct{}),
		bySite:       make(map[SpeciesName][]TemplateID),
		transcripts:  make(map[SpeciesName]int),
		ribosomes:    make(map[SpeciesName]int),
		collisions:   make(map[SpeciesName]int),
		terminations: make(map[SpeciesName]int),
		codons:       make(map[string][]string),
		logger:       NewNoOpLogger(),
	}
}

// SetListener sets who receives propensity refresh requests.
func (r *Registry) SetListener(l PropensityListener) {
	r.listener = l
}

// SetLogger sets the logger.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	r.logger = logger
}

// OnSpawn sets the hook templates reach through SpawnTranscript.
func (r *Registry) OnSpawn(fn func(Template) error) {
	r.onSpawn = fn
}

// OnTermination sets a hook called after each termination is applied.
func (r *Registry) OnTermination(fn func(Termination)) {
	r.onTermination = fn
}

// Count returns the copy number of name, zero if unseen.
func (r *Registry) Count(name SpeciesName) int {
	return r.counts[name]
}

// Has reports whether name has been seen.
func (r *Registry) Has(name SpeciesName) bool {
	_, ok := r.counts[name]
	return ok
}

// Ensure creates name with count zero if it is unseen.
func (r *Registry) Ensure(name SpeciesName) {
	if _, ok := r.counts[name]; !ok {
		r.counts[name] = 0
	}
}

// Species returns every known species name in sorted order.
func (r *Registry) Species() []SpeciesName {
	names := make([]SpeciesName, 0, len(r.counts))
	for name := range r.counts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Increment applies delta to name and refreshes every dependent reaction.
// A result below zero is a consistency error and leaves the count as it was.
func (r *Registry) Increment(name SpeciesName, delta int) error {
	current := r.counts[name]
	next := current + delta
	if next < 0 {
		return &ConsistencyError{
			Species: name,
			Reason:  fmt.Sprintf("copy number would become %d (count %d, delta %d)", next, current, delta),
		}
	}
	r.counts[name] = next
	if delta == 0 || r.listener == nil {
		return nil
	}
	for _, h := range r.deps[name] {
		r.listener.Refresh(h)
	}
	return nil
}

// AddDependency makes future changes to name refresh reaction h.
// Repeated edges are ignored.
func (r *Registry) AddDependency(name SpeciesName, h Handle) {
	r.Ensure(name)
	e := edge{species: name, handle: h}
	if _, ok := r.edges[e]; ok {
		return
	}
	r.edges[e] = struct{}{}
	r.deps[name] = append(r.deps[name], h)
}

// Dependents returns the reactions refreshed when name changes.
func (r *Registry) Dependents(name SpeciesName) []Handle {
	return slices.Clone(r.deps[name])
}

// LinkTemplate indexes tmpl under every site it can expose. h is the handle
// of the template's aggregate reaction.
func (r *Registry) LinkTemplate(tmpl Template, h Handle) TemplateID {
	id := TemplateID(len(r.templates))
	sites := uniqueNames(tmpl.Sites())
	r.templates = append(r.templates, templateEntry{tmpl: tmpl, handle: h, sites: sites})
	for _, site := range sites {
		r.Ensure(site)
		r.bySite[site] = append(r.bySite[site], id)
	}
	return id
}

// Template returns the template registered under id.
func (r *Registry) Template(id TemplateID) Template {
	return r.templates[id].tmpl
}

// TemplateHandle returns the aggregate reaction handle of a template.
func (r *Registry) TemplateHandle(id TemplateID) Handle {
	return r.templates[id].handle
}

// Templates returns the number of templates ever linked.
func (r *Registry) Templates() int {
	return len(r.templates)
}

// TemplatesWithSite returns the live templates that can expose site.
func (r *Registry) TemplatesWithSite(site SpeciesName) []TemplateID {
	return r.bySite[site]
}

// RefreshTemplate recomputes the propensity of a template's aggregate.
func (r *Registry) RefreshTemplate(id TemplateID) {
	if r.listener != nil {
		r.listener.Refresh(r.templates[id].handle)
	}
}

// RetireTemplate drops a finished template from the site index so binding
// reactions stop considering it. Its aggregate stays linked with whatever
// propensity the template reports.
func (r *Registry) RetireTemplate(id TemplateID) {
	entry := &r.templates[id]
	if entry.retired {
		return
	}
	entry.retired = true
	for _, site := range entry.sites {
		r.bySite[site] = slices.DeleteFunc(r.bySite[site], func(other TemplateID) bool { return other == id })
		if len(r.bySite[site]) == 0 {
			delete(r.bySite, site)
		}
	}
	r.logger.Debugf("template retired: name=%s", entry.tmpl.Name())
}

// SpawnTranscript hands a newly created transcript to the orchestrator,
// which links it as a new aggregate reaction.
func (r *Registry) SpawnTranscript(t Template) error {
	if r.onSpawn == nil {
		return &ConsistencyError{Reaction: t.Name(), Reason: "transcript spawned with no orchestrator attached"}
	}
	return r.onSpawn(t)
}

// TerminateTranscription returns pol to the free pool after it finished
// transcribing gene.
func (r *Registry) TerminateTranscription(pol, gene SpeciesName) error {
	return r.terminate(Termination{Polymerase: pol, Gene: gene})
}

// TerminateTranslation returns the ribosome to the free pool and credits
// one copy of the protein.
func (r *Registry) TerminateTranslation(pol, protein SpeciesName) error {
	if err := r.Increment(protein, 1); err != nil {
		return err
	}
	return r.terminate(Termination{Polymerase: pol, Gene: protein, Translation: true})
}

func (r *Registry) terminate(t Termination) error {
	if err := r.Increment(t.Polymerase, 1); err != nil {
		return err
	}
	r.terminations[t.Gene+terminationSuffix]++
	if r.onTermination != nil {
		r.onTermination(t)
	}
	return nil
}

// Terminations returns completed runs per gene, keyed "<gene>_total".
func (r *Registry) Terminations() map[SpeciesName]int {
	out := make(map[SpeciesName]int, len(r.terminations))
	for k, v := range r.terminations {
		out[k] = v
	}
	return out
}

// IncrementTranscript tracks live transcripts carrying gene.
func (r *Registry) IncrementTranscript(gene SpeciesName, delta int) error {
	r.Ensure(gene)
	return bump(r.transcripts, gene, delta, "transcript count")
}

// IncrementRibosomes tracks ribosomes bound to transcripts of gene.
func (r *Registry) IncrementRibosomes(gene SpeciesName, delta int) error {
	return bump(r.ribosomes, gene, delta, "bound ribosome count")
}

func bump(table map[SpeciesName]int, name SpeciesName, delta int, what string) error {
	next := table[name] + delta
	if next < 0 {
		return &ConsistencyError{Species: name, Reason: fmt.Sprintf("%s would become %d", what, next)}
	}
	table[name] = next
	return nil
}

// InitializeCollision starts the collision counter of a polymerase type.
func (r *Registry) InitializeCollision(pol SpeciesName) {
	if _, ok := r.collisions[pol]; !ok {
		r.collisions[pol] = 0
	}
}

// RecordCollision counts one collision involving pol.
func (r *Registry) RecordCollision(pol SpeciesName) {
	r.collisions[pol]++
}

// Collisions returns the collisions of pol since the last reset.
func (r *Registry) Collisions(pol SpeciesName) int {
	return r.collisions[pol]
}

// ResetCollisions zeroes every collision counter and returns the values it
// held.
func (r *Registry) ResetCollisions() map[SpeciesName]int {
	prev := make(map[SpeciesName]int, len(r.collisions))
	for name, n := range r.collisions {
		prev[name] = n
		r.collisions[name] = 0
	}
	return prev
}

// SetCodonMap stores codon -> anticodon tRNA names for templates.
func (r *Registry) SetCodonMap(codons map[string][]string) {
	r.codons = make(map[string][]string, len(codons))
	for codon, anticodons := range codons {
		r.codons[codon] = slices.Clone(anticodons)
	}
}

// Anticodons returns the tRNAs that decode codon.
func (r *Registry) Anticodons(codon string) []string {
	return r.codons[codon]
}

// GatherCounts builds one report row per species at time t.
func (r *Registry) GatherCounts(t float64) []CountRow {
	names := r.Species()
	rows := make([]CountRow, 0, len(names))
	for _, name := range names {
		row := CountRow{
			Time:       t,
			Species:    name,
			Protein:    r.counts[name],
			Transcript: r.transcripts[name],
			Collisions: r.collisions[name],
		}
		if row.Transcript > 0 {
			row.RiboDensity = float64(r.ribosomes[name]) / float64(row.Transcript)
		}
		rows = append(rows, row)
	}
	return rows
}
