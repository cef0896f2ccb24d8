package kinetics

import (
	"fmt"
	"strings"
)

// Avogadro converts macroscopic bimolecular rate constants into per-volume
// stochastic constants.
const Avogadro = 6.0221409e+23

// Kind discriminates the reaction variants the scheduler knows about.
type Kind int

const (
	KindMassAction Kind = iota
	KindBinding
	KindAggregate
)

func (k Kind) String() string {
	switch k {
	case KindMassAction:
		return "mass_action"
	case KindBinding:
		return "binding"
	case KindAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// Handle is the stable index of a reaction inside the scheduler arena.
type Handle int

// Counts is the read-only view of copy numbers a propensity is computed from.
type Counts interface {
	Count(name SpeciesName) int
}

// Reaction is anything the scheduler can select and fire.
type Reaction interface {
	Kind() Kind
	Name() string

	// Propensity must be nonnegative and depend only on counts and the
	// reaction's own fixed parameters (aggregates: the template's state).
	Propensity(counts Counts) float64

	// Execute applies one firing. Every copy-number change goes through reg.
	Execute(reg *Registry, rng Source) error

	// Dependencies lists the species whose counts Propensity reads.
	Dependencies() []SpeciesName
}

// MassAction is a plain reaction over named reactants and products.
type MassAction struct {
	name      string
	rate      float64
	reactants []SpeciesName
	products  []SpeciesName
	identical bool
}

// NewMassAction converts a macroscopic rate constant for the given volume.
// Bimolecular constants are divided by N_A*V; zero- and first-order
// constants are used as given. More than two reactants is rejected.
func NewMassAction(rateConstant, volume float64, reactants, products []SpeciesName) (*MassAction, error) {
	if rateConstant < 0 {
		return nil, fmt.Errorf("rate constant must be nonnegative, got %g", rateConstant)
	}
	if len(reactants) > 2 {
		return nil, fmt.Errorf("reactions with more than two reactants are not supported (got %d)", len(reactants))
	}
	rate := rateConstant
	identical := false
	if len(reactants) == 2 {
		if volume <= 0 {
			return nil, fmt.Errorf("volume must be positive, got %g", volume)
		}
		rate = rateConstant / (Avogadro * volume)
		identical = reactants[0] == reactants[1]
	}
	return &MassAction{
		name:      reactionLabel(reactants, products),
		rate:      rate,
		reactants: append([]SpeciesName(nil), reactants...),
		products:  append([]SpeciesName(nil), products...),
		identical: identical,
	}, nil
}

func reactionLabel(reactants, products []SpeciesName) string {
	join := func(names []SpeciesName) string {
		if len(names) == 0 {
			return "0"
		}
		parts := make([]string, len(names))
		for i, n := range names {
			parts[i] = string(n)
		}
		return strings.Join(parts, " + ")
	}
	return join(reactants) + " -> " + join(products)
}

func (r *MassAction) Kind() Kind   { return KindMassAction }
func (r *MassAction) Name() string { return r.name }

// Reactants returns the consumed species.
func (r *MassAction) Reactants() []SpeciesName { return r.reactants }

// Products returns the produced species.
func (r *MassAction) Products() []SpeciesName { return r.products }

func (r *MassAction) Propensity(counts Counts) float64 {
	switch {
	case len(r.reactants) == 0:
		return r.rate
	case r.identical:
		n := float64(counts.Count(r.reactants[0]))
		return r.rate * n * (n - 1)
	}
	prop := r.rate
	for _, name := range r.reactants {
		prop *= float64(counts.Count(name))
	}
	return prop
}

func (r *MassAction) Execute(reg *Registry, _ Source) error {
	for _, name := range r.reactants {
		if err := reg.Increment(name, -1); err != nil {
			return err
		}
	}
	for _, name := range r.products {
		if err := reg.Increment(name, 1); err != nil {
			return err
		}
	}
	return nil
}

func (r *MassAction) Dependencies() []SpeciesName {
	return uniqueNames(r.reactants)
}

// BindingTarget tells polymerase binding from nuclease binding.
type BindingTarget int

const (
	TargetPolymerase BindingTarget = iota
	TargetNuclease
)

func (t BindingTarget) String() string {
	if t == TargetNuclease {
		return "nuclease"
	}
	return "polymerase"
}

// Element is a freshly bound mobile element handed to a template.
type Element struct {
	Target BindingTarget
	Polymerase
}

// Binding turns a free site plus a free mobile element into an active
// element inside the template that owns the site.
type Binding struct {
	target  BindingTarget
	rate    float64
	site    SpeciesName
	element Polymerase
	pooled  bool
}

// NewPolymeraseBinding creates the binding reaction of pol onto site.
func NewPolymeraseBinding(rateConstant, volume float64, site SpeciesName, pol Polymerase) *Binding {
	return &Binding{
		target:  TargetPolymerase,
		rate:    rateConstant / (Avogadro * volume),
		site:    site,
		element: pol,
		pooled:  true,
	}
}

// NewNucleaseBinding creates a nuclease binding reaction. A nuclease with an
// empty name is not drawn from a free pool and the rate is first order in
// the site count.
func NewNucleaseBinding(rateConstant, volume float64, site SpeciesName, nuclease Polymerase) *Binding {
	b := &Binding{
		target:  TargetNuclease,
		rate:    rateConstant,
		site:    site,
		element: nuclease,
	}
	if nuclease.Name != "" {
		b.pooled = true
		b.rate = rateConstant / (Avogadro * volume)
	}
	return b
}

func (b *Binding) Kind() Kind { return KindBinding }

func (b *Binding) Name() string {
	if b.element.Name == "" {
		return fmt.Sprintf("bind %s -> %s", b.target, b.site)
	}
	return fmt.Sprintf("bind %s -> %s", b.element.Name, b.site)
}

// Site returns the site species this reaction consumes.
func (b *Binding) Site() SpeciesName { return b.site }

// Target returns the element kind this reaction binds.
func (b *Binding) Target() BindingTarget { return b.target }

func (b *Binding) Propensity(counts Counts) float64 {
	prop := b.rate * float64(counts.Count(b.site))
	if b.pooled {
		prop *= float64(counts.Count(b.element.Name))
	}
	return prop
}

func (b *Binding) Execute(reg *Registry, rng Source) error {
	ids := reg.TemplatesWithSite(b.site)
	weights := make([]float64, len(ids))
	for i, id := range ids {
		weights[i] = float64(reg.Template(id).FreeSites(b.site))
	}
	pick := weightedChoice(rng, weights)
	if pick < 0 {
		return &ConsistencyError{Species: b.site, Reaction: b.Name(), Reason: "no template exposes a free site"}
	}
	id := ids[pick]

	if b.pooled {
		if err := reg.Increment(b.element.Name, -1); err != nil {
			return err
		}
	}
	if err := reg.Increment(b.site, -1); err != nil {
		return err
	}
	if err := reg.Template(id).Bind(Element{Target: b.target, Polymerase: b.element}, b.site, reg); err != nil {
		return fmt.Errorf("bind %s on %s: %w", b.element.Name, reg.Template(id).Name(), err)
	}
	reg.RefreshTemplate(id)
	return nil
}

func (b *Binding) Dependencies() []SpeciesName {
	if b.pooled {
		return uniqueNames([]SpeciesName{b.site, b.element.Name})
	}
	return []SpeciesName{b.site}
}

// Aggregate lets a template take part in event selection like any other
// reaction. Propensity and execution are delegated.
type Aggregate struct {
	tmpl Template
	id   TemplateID
}

// NewAggregate wraps tmpl.
func NewAggregate(tmpl Template) *Aggregate {
	return &Aggregate{tmpl: tmpl, id: -1}
}

// ID returns the registry id of the wrapped template, -1 before linking.
func (a *Aggregate) ID() TemplateID { return a.id }

func (a *Aggregate) Kind() Kind         { return KindAggregate }
func (a *Aggregate) Name() string       { return a.tmpl.Name() }
func (a *Aggregate) Template() Template { return a.tmpl }

func (a *Aggregate) Propensity(Counts) float64 {
	return a.tmpl.Propensity()
}

func (a *Aggregate) Execute(reg *Registry, rng Source) error {
	return a.tmpl.Execute(reg, rng)
}

func (a *Aggregate) Dependencies() []SpeciesName {
	if dt, ok := a.tmpl.(DependentTemplate); ok {
		return uniqueNames(dt.Dependencies())
	}
	return nil
}

func uniqueNames(names []SpeciesName) []SpeciesName {
	seen := make(map[SpeciesName]struct{}, len(names))
	out := make([]SpeciesName, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
