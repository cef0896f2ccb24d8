package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/daniacca/genekin/internal/kinetics"
)

// ModelBuilder provides a fluent API for building model configurations.
// Use it to declare species, mass-action reactions, mobile elements and
// tRNA pools of a well-mixed gene expression model.
type ModelBuilder struct {
	cfg       kinetics.ModelConfig
	reactions []*ReactionBuilder
}

// NewModel creates a new model builder with the given name and cell volume
// in liters.
func NewModel(name string, volume float64) *ModelBuilder {
	return &ModelBuilder{cfg: kinetics.ModelConfig{Name: name, Volume: volume}}
}

// Seed makes runs of the model reproducible.
func (mb *ModelBuilder) Seed(seed uint64) *ModelBuilder {
	mb.cfg.Seed = &seed
	return mb
}

// Species declares a species with its initial copy number.
func (mb *ModelBuilder) Species(name string, count int) *ModelBuilder {
	mb.cfg.Species = append(mb.cfg.Species, kinetics.SpeciesConfig{Name: name, Count: count})
	return mb
}

// Reaction adds a mass-action reaction.
func (mb *ModelBuilder) Reaction(rb *ReactionBuilder) *ModelBuilder {
	mb.reactions = append(mb.reactions, rb)
	return mb
}

// Polymerase declares a polymerase type and its free copy number.
func (mb *ModelBuilder) Polymerase(name string, footprint int, speed float64, count int) *ModelBuilder {
	mb.cfg.Polymerases = append(mb.cfg.Polymerases, kinetics.PolymeraseConfig{
		Name:      name,
		Footprint: footprint,
		Speed:     speed,
		Count:     count,
	})
	return mb
}

// Ribosome declares the ribosome pool.
func (mb *ModelBuilder) Ribosome(footprint int, speed float64, count int) *ModelBuilder {
	mb.cfg.Ribosome = &kinetics.RibosomeConfig{Footprint: footprint, Speed: speed, Count: count}
	return mb
}

// Codon maps a codon to the tRNAs that read it.
func (mb *ModelBuilder) Codon(codon string, trnas ...string) *ModelBuilder {
	trna := mb.trna()
	trna.Codons[codon] = append(trna.Codons[codon], trnas...)
	return mb
}

// TRNAPool declares the charged and uncharged copies of a tRNA and the rate
// at which uncharged copies are recharged.
func (mb *ModelBuilder) TRNAPool(name string, charged, uncharged int, rate float64) *ModelBuilder {
	mb.trna().Pools[name] = kinetics.TRNAPoolConfig{Charged: charged, Uncharged: uncharged, Rate: rate}
	return mb
}

func (mb *ModelBuilder) trna() *kinetics.TRNAConfig {
	if mb.cfg.TRNA == nil {
		mb.cfg.TRNA = &kinetics.TRNAConfig{
			Codons: make(map[string][]string),
			Pools:  make(map[string]kinetics.TRNAPoolConfig),
		}
	}
	return mb.cfg.TRNA
}

// Notifiers routes the events of runs built from this model to the given
// notifier IDs. Notifiers must be registered with the server separately.
func (mb *ModelBuilder) Notifiers(ids ...string) *ModelBuilder {
	mb.cfg.Notifiers = append(mb.cfg.Notifiers, ids...)
	return mb
}

// Build converts the builder to a ModelConfig.
func (mb *ModelBuilder) Build() kinetics.ModelConfig {
	cfg := mb.cfg
	cfg.Reactions = make([]kinetics.ReactionConfig, 0, len(mb.reactions))
	for _, rb := range mb.reactions {
		cfg.Reactions = append(cfg.Reactions, rb.Build())
	}
	return cfg
}

// Validate checks the model the same way the server will.
func (mb *ModelBuilder) Validate() error {
	return kinetics.ValidateModelConfig(mb.Build())
}

// ReactionBuilder provides a fluent API for building reaction configurations.
type ReactionBuilder struct {
	id        string
	rate      float64
	reactants []string
	products  []string
}

// NewReaction creates a new reaction builder with the given ID. The ID must
// be unique within a model. The rate defaults to 1.
func NewReaction(id string) *ReactionBuilder {
	return &ReactionBuilder{id: id, rate: 1.0}
}

// Rate sets the macroscopic rate constant.
func (rb *ReactionBuilder) Rate(rate float64) *ReactionBuilder {
	rb.rate = rate
	return rb
}

// Reactants sets the consumed species. Listing a species twice makes the
// reaction second order in it.
func (rb *ReactionBuilder) Reactants(names ...string) *ReactionBuilder {
	rb.reactants = append(rb.reactants, names...)
	return rb
}

// Products sets the produced species.
func (rb *ReactionBuilder) Products(names ...string) *ReactionBuilder {
	rb.products = append(rb.products, names...)
	return rb
}

// Build converts the builder to a ReactionConfig.
func (rb *ReactionBuilder) Build() kinetics.ReactionConfig {
	return kinetics.ReactionConfig{
		ID:        rb.id,
		Rate:      rb.rate,
		Reactants: rb.reactants,
		Products:  rb.products,
	}
}

// Client talks to a genekin server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
// A nil httpClient uses http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// StatusError is returned when the server answers with an unexpected status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}

func (c *Client) do(ctx context.Context, method string, query url.Values, body any, out any, path ...string) error {
	u, err := url.JoinPath(c.baseURL, path...)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// CreateRun starts a run of model under a server-assigned ID.
func (c *Client) CreateRun(ctx context.Context, model *ModelBuilder) (kinetics.RunStatus, error) {
	var status kinetics.RunStatus
	err := c.do(ctx, http.MethodPost, nil, model.Build(), &status, "runs")
	return status, err
}

// LoadModel starts a run of model under runID, replacing any run already
// stored there.
func (c *Client) LoadModel(ctx context.Context, runID string, model *ModelBuilder) (kinetics.RunStatus, error) {
	var status kinetics.RunStatus
	err := c.do(ctx, http.MethodPost, nil, model.Build(), &status, "run", runID, "model")
	return status, err
}

// ListRuns returns the status of every run on the server.
func (c *Client) ListRuns(ctx context.Context) ([]kinetics.RunStatus, error) {
	var resp struct {
		Runs []kinetics.RunStatus `json:"runs"`
	}
	err := c.do(ctx, http.MethodGet, nil, nil, &resp, "runs")
	return resp.Runs, err
}

// Status returns the status of one run.
func (c *Client) Status(ctx context.Context, runID string) (kinetics.RunStatus, error) {
	var status kinetics.RunStatus
	err := c.do(ctx, http.MethodGet, nil, nil, &status, "run", runID)
	return status, err
}

// Step fires up to n reactions and returns how many fired.
func (c *Client) Step(ctx context.Context, runID string, n int) (int, error) {
	var resp struct {
		Fired int `json:"fired"`
	}
	query := url.Values{"n": {strconv.Itoa(n)}}
	err := c.do(ctx, http.MethodPost, query, nil, &resp, "run", runID, "step")
	return resp.Fired, err
}

// Simulate advances the run to until, reporting every interval, and returns
// the reports produced by this call.
func (c *Client) Simulate(ctx context.Context, runID string, until, every float64) ([]kinetics.CountRow, error) {
	var resp struct {
		Rows []kinetics.CountRow `json:"rows"`
	}
	query := url.Values{
		"until": {strconv.FormatFloat(until, 'g', -1, 64)},
		"every": {strconv.FormatFloat(every, 'g', -1, 64)},
	}
	err := c.do(ctx, http.MethodPost, query, nil, &resp, "run", runID, "simulate")
	return resp.Rows, err
}

// Counts returns the run's current counts.
func (c *Client) Counts(ctx context.Context, runID string) (kinetics.Snapshot, error) {
	var snap kinetics.Snapshot
	err := c.do(ctx, http.MethodGet, nil, nil, &snap, "run", runID, "counts")
	return snap, err
}

// SaveSnapshot asks the server to persist the run's counts and returns the
// server-side path.
func (c *Client) SaveSnapshot(ctx context.Context, runID string) (string, error) {
	var resp struct {
		Path string `json:"path"`
	}
	err := c.do(ctx, http.MethodPost, nil, nil, &resp, "run", runID, "snapshot")
	return resp.Path, err
}

// DeleteRun removes a run.
func (c *Client) DeleteRun(ctx context.Context, runID string) error {
	return c.do(ctx, http.MethodDelete, nil, nil, nil, "run", runID)
}
