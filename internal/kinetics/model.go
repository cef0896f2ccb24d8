package kinetics

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// outputTolerance is how close simulated time must get to the next output
// time for a report to be written.
const outputTolerance = 0.001

// TRNAPool is the initial state of one tRNA species.
type TRNAPool struct {
	Charged   int
	Uncharged int
	// Rate is the charging rate constant uncharged -> charged.
	Rate float64
}

type bindingKey struct {
	site    SpeciesName
	element SpeciesName
	target  BindingTarget
}

// Model builds the reaction network, links templates as they appear and
// drives the simulation loop. It is not safe for concurrent use.
type Model struct {
	volume    float64
	registry  *Registry
	scheduler *Scheduler
	logger    Logger

	polymerases []Polymerase
	genomes     []Genome
	transcripts []Template
	bindings    map[bindingKey]Handle

	initialized bool
	stalled     bool
	failed      error
	lastTime    float64
	nextOutput  float64

	runID       RunID
	notifier    *NotificationManager
	notifierIDs []string
}

// NewModel creates an empty model for a well-mixed volume in liters.
func NewModel(volume float64) (*Model, error) {
	if volume <= 0 {
		return nil, fmt.Errorf("cell volume must be positive, got %g", volume)
	}
	reg := NewRegistry()
	m := &Model{
		volume:    volume,
		registry:  reg,
		scheduler: NewScheduler(reg, nil),
		logger:    NewNoOpLogger(),
		bindings:  make(map[bindingKey]Handle),
	}
	reg.OnSpawn(m.spawnTranscript)
	reg.OnTermination(m.notifyTermination)
	return m, nil
}

// SetLogger sets the logger used by the model and its registry.
func (m *Model) SetLogger(logger Logger) {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	m.logger = logger
	m.registry.SetLogger(logger)
}

// SetNotificationManager routes model events to the given notifiers.
func (m *Model) SetNotificationManager(mgr *NotificationManager, runID RunID, notifierIDs ...string) {
	m.notifier = mgr
	m.runID = runID
	m.notifierIDs = slices.Clone(notifierIDs)
}

// SetRunID tags snapshots and events with the run they belong to.
func (m *Model) SetRunID(id RunID) {
	m.runID = id
}

// Seed makes the run reproducible.
func (m *Model) Seed(seed uint64) {
	m.scheduler.SetSource(NewSource(seed))
}

// Registry returns the model's species registry.
func (m *Model) Registry() *Registry { return m.registry }

// Scheduler returns the model's scheduler.
func (m *Model) Scheduler() *Scheduler { return m.scheduler }

// Volume returns the cell volume.
func (m *Model) Volume() float64 { return m.volume }

// Polymerases returns the declared polymerase types, ribosome included.
func (m *Model) Polymerases() []Polymerase { return slices.Clone(m.polymerases) }

// AddSpecies seeds a user species.
func (m *Model) AddSpecies(name SpeciesName, copies int) error {
	if err := ValidateSpeciesName(name); err != nil {
		return err
	}
	if copies < 0 {
		return fmt.Errorf("species %s: copy number must be nonnegative, got %d", name, copies)
	}
	return m.registry.Increment(name, copies)
}

// AddReaction links a mass-action reaction.
func (m *Model) AddReaction(rateConstant float64, reactants, products []SpeciesName) (Handle, error) {
	r, err := NewMassAction(rateConstant, m.volume, reactants, products)
	if err != nil {
		return -1, err
	}
	for _, p := range products {
		m.registry.Ensure(p)
	}
	return m.link(r), nil
}

// AddTRNA seeds charged and uncharged pools, links a charging reaction per
// tRNA and stores the codon map for templates.
func (m *Model) AddTRNA(codons map[string][]string, pools map[string]TRNAPool) error {
	for codon, anticodons := range codons {
		for _, a := range anticodons {
			if _, ok := pools[a]; !ok {
				return fmt.Errorf("codon %s references unknown tRNA %s", codon, a)
			}
		}
	}
	names := make([]string, 0, len(pools))
	for name := range pools {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		pool := pools[name]
		if err := ValidateSpeciesName(SpeciesName(name)); err != nil {
			return fmt.Errorf("tRNA %s: %w", name, err)
		}
		if pool.Charged < 0 || pool.Uncharged < 0 {
			return fmt.Errorf("tRNA %s: pool sizes must be nonnegative", name)
		}
		if err := m.registry.Increment(Charged(name), pool.Charged); err != nil {
			return err
		}
		if err := m.registry.Increment(Uncharged(name), pool.Uncharged); err != nil {
			return err
		}
		if _, err := m.AddReaction(pool.Rate, []SpeciesName{Uncharged(name)}, []SpeciesName{Charged(name)}); err != nil {
			return fmt.Errorf("tRNA %s: %w", name, err)
		}
	}
	m.registry.SetCodonMap(codons)
	return nil
}

// AddPolymerase declares a polymerase type and its free copy number.
func (m *Model) AddPolymerase(name SpeciesName, footprint int, speed float64, copies int) error {
	if err := ValidateSpeciesName(name); err != nil {
		return err
	}
	return m.addPolymerase(Polymerase{Name: name, Footprint: footprint, Speed: speed}, copies)
}

// AddRibosome declares the ribosome pool.
func (m *Model) AddRibosome(footprint int, speed float64, copies int) error {
	return m.addPolymerase(Polymerase{Name: RibosomeName, Footprint: footprint, Speed: speed}, copies)
}

func (m *Model) addPolymerase(pol Polymerase, copies int) error {
	if pol.Footprint <= 0 {
		return fmt.Errorf("polymerase %s: footprint must be positive", pol.Name)
	}
	if pol.Speed <= 0 {
		return fmt.Errorf("polymerase %s: speed must be positive", pol.Name)
	}
	if copies < 0 {
		return fmt.Errorf("polymerase %s: copy number must be nonnegative", pol.Name)
	}
	if slices.ContainsFunc(m.polymerases, func(p Polymerase) bool { return p.Name == pol.Name }) {
		return fmt.Errorf("polymerase %s already declared", pol.Name)
	}
	m.polymerases = append(m.polymerases, pol)
	m.registry.InitializeCollision(pol.Name)
	return m.registry.Increment(pol.Name, copies)
}

// RegisterGenome links a genome as an aggregate reaction.
func (m *Model) RegisterGenome(g Genome) error {
	if _, err := m.linkTemplate(g); err != nil {
		return err
	}
	m.genomes = append(m.genomes, g)
	return nil
}

// RegisterTranscript links a transcript as an aggregate reaction.
// Transcripts registered before Initialize also get their binding reactions.
func (m *Model) RegisterTranscript(t Template) error {
	if _, err := m.linkTemplate(t); err != nil {
		return err
	}
	if !m.initialized {
		m.transcripts = append(m.transcripts, t)
	}
	return nil
}

func (m *Model) spawnTranscript(t Template) error {
	if err := m.RegisterTranscript(t); err != nil {
		return err
	}
	m.notify(NotificationEvent{Type: EventTranscriptSpawned, Template: t.Name()})
	return nil
}

func (m *Model) notifyTermination(t Termination) {
	m.notify(NotificationEvent{
		Type:        EventTermination,
		Polymerase:  t.Polymerase,
		Gene:        t.Gene,
		Translation: t.Translation,
	})
}

func (m *Model) link(r Reaction) Handle {
	h := m.scheduler.LinkReaction(r)
	for _, name := range r.Dependencies() {
		m.registry.AddDependency(name, h)
	}
	return h
}

func (m *Model) linkTemplate(t Template) (TemplateID, error) {
	agg := NewAggregate(t)
	h := m.link(agg)
	id := m.registry.LinkTemplate(t, h)
	agg.id = id
	for _, site := range uniqueNames(t.Sites()) {
		if n := t.FreeSites(site); n > 0 {
			if err := m.registry.Increment(site, n); err != nil {
				return id, err
			}
		}
	}
	return id, nil
}

// Initialize creates the binding reactions implied by the registered
// templates and the declared polymerases.
func (m *Model) Initialize() error {
	if m.initialized {
		return ErrAlreadyInitialized
	}
	if len(m.genomes) == 0 && len(m.transcripts) == 0 {
		m.logger.Warnf("there are no genomes or transcripts registered with the model; did you forget to register a genome?")
	}
	for _, g := range m.genomes {
		m.addBindings(g.Bindings())

		deg := g.Degradation()
		nuclease := Polymerase{Footprint: deg.Footprint, Speed: deg.Speed}
		if deg.ExternalRate != 0 {
			m.addNucleaseBinding(deg.ExternalRate, NucleaseSiteExt, nuclease)
		}
		if deg.InternalRate != 0 {
			m.addNucleaseBinding(deg.InternalRate, NucleaseSite, nuclease)
		} else {
			for _, site := range sortedKeys(deg.Sites) {
				m.addNucleaseBinding(deg.Sites[site], site, nuclease)
			}
		}
	}
	for _, t := range m.transcripts {
		m.addBindings(t.Bindings())
	}
	m.initialized = true
	m.logger.Infof("model initialized: reactions=%d templates=%d species=%d",
		m.scheduler.Len(), m.registry.Templates(), len(m.registry.Species()))
	return nil
}

func (m *Model) addBindings(bindings map[SpeciesName]map[SpeciesName]float64) {
	for _, site := range sortedKeys(bindings) {
		rates := bindings[site]
		for _, pol := range m.polymerases {
			rate, ok := rates[pol.Name]
			if !ok {
				continue
			}
			key := bindingKey{site: site, element: pol.Name, target: TargetPolymerase}
			if _, exists := m.bindings[key]; exists {
				continue
			}
			m.bindings[key] = m.link(NewPolymeraseBinding(rate, m.volume, site, pol))
		}
	}
}

func (m *Model) addNucleaseBinding(rate float64, site SpeciesName, nuclease Polymerase) {
	key := bindingKey{site: site, element: nuclease.Name, target: TargetNuclease}
	if _, exists := m.bindings[key]; exists {
		return
	}
	m.bindings[key] = m.link(NewNucleaseBinding(rate, m.volume, site, nuclease))
}

// Step fires up to n reactions and returns how many fired. It stops early
// when the model stalls.
func (m *Model) Step(n int) (int, error) {
	if !m.initialized {
		return 0, ErrNotInitialized
	}
	if m.failed != nil {
		return 0, m.failed
	}
	fired := 0
	for fired < n && !m.stalled {
		step, err := m.step()
		if err != nil {
			return fired, err
		}
		if step.Stalled {
			break
		}
		fired++
	}
	return fired, nil
}

func (m *Model) step() (Step, error) {
	step, err := m.scheduler.Iterate()
	if err != nil {
		// A failed execute may have applied part of its changes.
		m.failed = fmt.Errorf("run aborted at t=%g: %w", m.lastTime, err)
		m.logger.Errorf("%v", m.failed)
		return step, m.failed
	}
	if step.Stalled {
		m.stalled = true
		m.logger.Infof("total propensity is zero at t=%g; no further reactions can fire", m.lastTime)
		m.notify(NotificationEvent{Type: EventStalled})
		return step, nil
	}
	m.lastTime = step.Time
	if agg, ok := m.scheduler.Reaction(step.Handle).(*Aggregate); ok {
		if f, ok := agg.tmpl.(FinishedTemplate); ok && f.Done() {
			m.registry.RetireTemplate(agg.id)
		}
	}
	return step, nil
}

// Simulate runs until simulated time reaches timeLimit, writing registry
// reports to sink every timeStep. The collision counters are reset after
// each report. A consistency error aborts the run.
func (m *Model) Simulate(ctx context.Context, timeLimit, timeStep float64, sink CountSink) error {
	if timeStep <= 0 {
		return fmt.Errorf("time step must be positive, got %g", timeStep)
	}
	if !m.initialized {
		if err := m.Initialize(); err != nil {
			return err
		}
	}
	if m.failed != nil {
		return m.failed
	}
	for !m.stalled && m.scheduler.Time() < timeLimit {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.nextOutput-m.scheduler.Time() < outputTolerance {
			if err := m.emit(ctx, m.scheduler.Time(), sink); err != nil {
				return err
			}
			m.nextOutput += timeStep
		}
		if _, err := m.step(); err != nil {
			return err
		}
	}
	if m.stalled {
		// State is frozen, so the remaining reports are all identical.
		for m.nextOutput < timeLimit {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := m.emit(ctx, m.nextOutput, sink); err != nil {
				return err
			}
			m.nextOutput += timeStep
		}
	}
	return nil
}

func (m *Model) emit(ctx context.Context, t float64, sink CountSink) error {
	rows := m.registry.GatherCounts(t)
	if sink != nil {
		if err := sink.WriteRows(ctx, rows); err != nil {
			return fmt.Errorf("write counts at t=%g: %w", t, err)
		}
	}
	m.registry.ResetCollisions()
	m.notify(NotificationEvent{Type: EventCounts, SimTime: t, Rows: rows})
	return nil
}

func (m *Model) notify(ev NotificationEvent) {
	if m.notifier == nil || len(m.notifierIDs) == 0 {
		return
	}
	ev.RunID = m.runID
	ev.Timestamp = time.Now().Unix()
	if ev.SimTime == 0 {
		ev.SimTime = m.lastTime
	}
	m.notifier.Enqueue(ev, m.notifierIDs)
}

// Time returns the time of the last fired reaction.
func (m *Model) Time() float64 { return m.lastTime }

// Err returns the error that aborted the run, or nil.
func (m *Model) Err() error { return m.failed }

// Stalled reports whether the total propensity dropped to zero.
func (m *Model) Stalled() bool { return m.stalled }

// Initialized reports whether Initialize has run.
func (m *Model) Initialized() bool { return m.initialized }

// Steps returns the number of reactions fired.
func (m *Model) Steps() uint64 { return m.scheduler.Steps() }

// Count returns the copy number of a species.
func (m *Model) Count(name SpeciesName) int { return m.registry.Count(name) }

// Counts returns the current report rows without resetting collisions.
func (m *Model) Counts() []CountRow {
	return m.registry.GatherCounts(m.lastTime)
}

// Snapshot captures the current counts.
func (m *Model) Snapshot() Snapshot {
	return Snapshot{RunID: m.runID, Time: m.lastTime, Steps: m.Steps(), Rows: m.Counts()}
}

func sortedKeys[V any](in map[SpeciesName]V) []SpeciesName {
	keys := make([]SpeciesName, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
