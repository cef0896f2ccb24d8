package kinetics

// TemplateID is the registry's stable index of a linked template.
type TemplateID int

// Template is a linear polymer (genome or transcript) along which mobile
// elements move. The simulator only sees it through this contract; how the
// elements step and collide is up to the implementation.
//
// Every method runs on the simulation goroutine between or inside scheduler
// steps. Implementations must report count changes, spawned transcripts and
// terminations through the Registry before returning.
type Template interface {
	Name() string

	// Propensity is the rate at which the template is ready to advance one
	// internal step. It must be nonnegative.
	Propensity() float64

	// Execute performs exactly one internal step.
	Execute(reg *Registry, rng Source) error

	// Bind places a freshly bound element on site. The site and the free
	// element have already been taken out of the registry counts.
	Bind(el Element, site SpeciesName, reg *Registry) error

	// Sites lists every site species the template can expose.
	Sites() []SpeciesName

	// FreeSites returns how many copies of site are currently exposed.
	FreeSites(site SpeciesName) int

	// Bindings maps site -> polymerase name -> macroscopic binding rate.
	Bindings() map[SpeciesName]map[SpeciesName]float64
}

// Genome is a template that can also seed nuclease binding on the
// transcripts it produces.
type Genome interface {
	Template
	Degradation() Degradation
}

// Degradation holds a genome's transcript degradation parameters. When
// InternalRate is zero, Sites gives per-site nuclease binding rates instead.
type Degradation struct {
	ExternalRate float64
	InternalRate float64
	Sites        map[SpeciesName]float64
	Footprint    int
	Speed        float64
}

// DependentTemplate is implemented by templates whose propensity reads
// registry counts (for example charged tRNA pools).
type DependentTemplate interface {
	Dependencies() []SpeciesName
}

// FinishedTemplate is implemented by templates that can reach a terminal
// state, such as a fully degraded transcript.
type FinishedTemplate interface {
	Done() bool
}

type templateEntry struct {
	tmpl    Template
	handle  Handle
	sites   []SpeciesName
	retired bool
}
