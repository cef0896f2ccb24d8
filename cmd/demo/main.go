// Command demo simulates a single gene with toy templates: RNA polymerase
// transcribes it, ribosomes translate the transcripts and an exonuclease
// degrades them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/daniacca/genekin/internal/kinetics"
	"github.com/daniacca/genekin/internal/sinks"
)

func buildModel(seed uint64) (*kinetics.Model, *gene, error) {
	model, err := kinetics.NewModel(8e-15)
	if err != nil {
		return nil, nil, err
	}
	model.Seed(seed)
	if err := model.AddPolymerase("rnapol", 35, 40, 10); err != nil {
		return nil, nil, err
	}
	if err := model.AddRibosome(30, 30, 100); err != nil {
		return nil, nil, err
	}
	if err := model.AddSpecies("proteinX", 0); err != nil {
		return nil, nil, err
	}
	g := newGene("proteinX", 300)
	if err := model.RegisterGenome(g); err != nil {
		return nil, nil, err
	}
	return model, g, nil
}

func main() {
	var (
		timeLimit = flag.Float64("time-limit", 60, "simulated seconds")
		timeStep  = flag.Float64("time-step", 5, "seconds between reports")
		seed      = flag.Uint64("seed", 1, "random seed")
	)
	flag.Parse()

	model, g, err := buildModel(*seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error building model: %v\n", err)
		os.Exit(1)
	}
	out, err := sinks.NewTSVSink(os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := model.Simulate(context.Background(), *timeLimit, *timeStep, out); err != nil {
		fmt.Fprintf(os.Stderr, "simulation failed: %v\n", err)
		os.Exit(1)
	}
	if err := out.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	live := 0
	for _, t := range g.spawned {
		if !t.degraded {
			live++
		}
	}
	fmt.Fprintf(os.Stderr, "transcripts made=%d live=%d proteins=%d\n",
		len(g.spawned), live, model.Count("proteinX"))
}
