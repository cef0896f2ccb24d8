package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/daniacca/genekin/internal/kinetics"
)

func TestModelBuilder(t *testing.T) {
	model := NewModel("expression", 8e-15).
		Seed(4).
		Species("X", 10).
		Species("Y", 0).
		Polymerase("rnapol", 35, 40, 10).
		Ribosome(30, 30, 100).
		Reaction(NewReaction("dimerize").Rate(1e6).Reactants("X", "X").Products("Y"))

	cfg := model.Build()

	if cfg.Name != "expression" {
		t.Errorf("Expected name 'expression', got '%s'", cfg.Name)
	}
	if cfg.Seed == nil || *cfg.Seed != 4 {
		t.Errorf("Expected seed 4, got %v", cfg.Seed)
	}
	if len(cfg.Species) != 2 {
		t.Errorf("Expected 2 species, got %d", len(cfg.Species))
	}
	if len(cfg.Polymerases) != 1 || cfg.Polymerases[0].Name != "rnapol" {
		t.Errorf("Expected polymerase rnapol, got %+v", cfg.Polymerases)
	}
	if cfg.Ribosome == nil || cfg.Ribosome.Count != 100 {
		t.Errorf("Expected 100 ribosomes, got %+v", cfg.Ribosome)
	}
	if len(cfg.Reactions) != 1 {
		t.Fatalf("Expected 1 reaction, got %d", len(cfg.Reactions))
	}
	r := cfg.Reactions[0]
	if r.ID != "dimerize" || r.Rate != 1e6 || len(r.Reactants) != 2 || r.Products[0] != "Y" {
		t.Errorf("Unexpected reaction %+v", r)
	}
	if err := model.Validate(); err != nil {
		t.Errorf("Expected valid model, got %v", err)
	}
}

func TestModelBuilder_TRNA(t *testing.T) {
	cfg := NewModel("trna", 1e-15).
		TRNAPool("TTT", 50, 10, 100).
		Codon("AAA", "TTT").
		Codon("AAG", "TTT").
		Build()

	if cfg.TRNA == nil {
		t.Fatal("Expected tRNA config")
	}
	if len(cfg.TRNA.Codons) != 2 || cfg.TRNA.Codons["AAA"][0] != "TTT" {
		t.Errorf("Unexpected codons %v", cfg.TRNA.Codons)
	}
	if pool := cfg.TRNA.Pools["TTT"]; pool.Charged != 50 || pool.Uncharged != 10 || pool.Rate != 100 {
		t.Errorf("Unexpected pool %+v", pool)
	}
}

func TestModelBuilder_ValidateReportsProblems(t *testing.T) {
	err := NewModel("bad", 1e-15).
		Reaction(NewReaction("r").Reactants("missing")).
		Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
}

func TestReactionBuilder_Defaults(t *testing.T) {
	cfg := NewReaction("source").Products("X").Build()
	if cfg.Rate != 1.0 {
		t.Errorf("Expected default rate 1.0, got %f", cfg.Rate)
	}
	if len(cfg.Reactants) != 0 {
		t.Errorf("Expected no reactants, got %v", cfg.Reactants)
	}
}

// fakeServer records the requests it gets and answers with canned bodies.
type fakeServer struct {
	t       *testing.T
	mu      sync.Mutex
	queries []url.Values
	bodies  []kinetics.ModelConfig
}

func (f *fakeServer) lastQuery() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.queries = append(f.queries, r.URL.Query())
	if r.Header.Get("Content-Type") == "application/json" {
		var cfg kinetics.ModelConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			f.t.Errorf("decode body: %v", err)
		}
		f.bodies = append(f.bodies, cfg)
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.Method + " " + r.URL.Path {
	case "POST /runs":
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(kinetics.RunStatus{ID: "generated", Name: "m"})
	case "POST /run/r1/model", "GET /run/r1":
		_ = json.NewEncoder(w).Encode(kinetics.RunStatus{ID: "r1", Name: "m", Steps: 5})
	case "GET /runs":
		_ = json.NewEncoder(w).Encode(map[string]any{"runs": []kinetics.RunStatus{{ID: "r1"}, {ID: "r2"}}})
	case "POST /run/r1/step":
		_ = json.NewEncoder(w).Encode(map[string]any{"fired": 3})
	case "POST /run/r1/simulate":
		_ = json.NewEncoder(w).Encode(map[string]any{"rows": []kinetics.CountRow{{Time: 0, Species: "X", Protein: 10}}})
	case "GET /run/r1/counts":
		_ = json.NewEncoder(w).Encode(kinetics.Snapshot{RunID: "r1", Rows: []kinetics.CountRow{{Species: "X", Protein: 7}}})
	case "POST /run/r1/snapshot":
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "path": "/data/r1.snapshot.json"})
	case "DELETE /run/r1":
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "run not found", http.StatusNotFound)
	}
}

func TestClient_RoundTrips(t *testing.T) {
	fake := &fakeServer{t: t}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	c := New(srv.URL, srv.Client())
	model := NewModel("m", 1e-15).Species("X", 10)

	status, err := c.CreateRun(ctx, model)
	if err != nil || status.ID != "generated" {
		t.Fatalf("CreateRun: %+v %v", status, err)
	}
	status, err = c.LoadModel(ctx, "r1", model)
	if err != nil || status.ID != "r1" {
		t.Fatalf("LoadModel: %+v %v", status, err)
	}
	fake.mu.Lock()
	if len(fake.bodies) != 2 || fake.bodies[1].Species[0].Name != "X" {
		t.Errorf("Expected model config in request body, got %+v", fake.bodies)
	}
	fake.mu.Unlock()

	runs, err := c.ListRuns(ctx)
	if err != nil || len(runs) != 2 {
		t.Errorf("ListRuns: %v %v", runs, err)
	}
	if status, err := c.Status(ctx, "r1"); err != nil || status.Steps != 5 {
		t.Errorf("Status: %+v %v", status, err)
	}

	fired, err := c.Step(ctx, "r1", 3)
	if err != nil || fired != 3 {
		t.Errorf("Step: %d %v", fired, err)
	}
	if q := fake.lastQuery().Get("n"); q != "3" {
		t.Errorf("Expected n=3, got %q", q)
	}

	rows, err := c.Simulate(ctx, "r1", 10, 0.5)
	if err != nil || len(rows) != 1 || rows[0].Protein != 10 {
		t.Errorf("Simulate: %v %v", rows, err)
	}
	query := fake.lastQuery()
	if query.Get("until") != "10" || query.Get("every") != "0.5" {
		t.Errorf("Unexpected simulate query %v", query)
	}

	snap, err := c.Counts(ctx, "r1")
	if err != nil || snap.Rows[0].Protein != 7 {
		t.Errorf("Counts: %+v %v", snap, err)
	}
	path, err := c.SaveSnapshot(ctx, "r1")
	if err != nil || path != "/data/r1.snapshot.json" {
		t.Errorf("SaveSnapshot: %q %v", path, err)
	}
	if err := c.DeleteRun(ctx, "r1"); err != nil {
		t.Errorf("DeleteRun: %v", err)
	}
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{t: t})
	defer srv.Close()

	_, err := New(srv.URL, nil).Step(context.Background(), "missing", 1)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusNotFound || statusErr.Body != "run not found" {
		t.Errorf("Unexpected error %+v", statusErr)
	}
}
