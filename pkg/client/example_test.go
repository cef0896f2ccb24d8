package client_test

import (
	"context"
	"fmt"

	"github.com/daniacca/genekin/pkg/client"
)

func ExampleModelBuilder() {
	model := client.NewModel("dimerization", 8e-15).
		Seed(1).
		Species("monomer", 1000).
		Species("dimer", 0).
		Reaction(client.NewReaction("dimerize").
			Rate(1e6).
			Reactants("monomer", "monomer").
			Products("dimer"),
		).
		Reaction(client.NewReaction("dissociate").
			Rate(0.1).
			Reactants("dimer").
			Products("monomer", "monomer"),
		)

	cfg := model.Build()
	fmt.Printf("Model: %s\n", cfg.Name)
	fmt.Printf("Species: %d\n", len(cfg.Species))
	fmt.Printf("Reactions: %d\n", len(cfg.Reactions))
	fmt.Println("Valid:", model.Validate() == nil)
	// Output:
	// Model: dimerization
	// Species: 2
	// Reactions: 2
	// Valid: true
}

func ExampleClient_Simulate() {
	ctx := context.Background()
	c := client.New("http://localhost:8080", nil)
	model := client.NewModel("decay", 8e-15).
		Species("X", 100).
		Species("Y", 0).
		Reaction(client.NewReaction("decay").Rate(0.5).Reactants("X").Products("Y")).
		Notifiers("live")

	// Against a running server:
	// if _, err := c.LoadModel(ctx, "decay", model); err != nil {
	// 	log.Fatal(err)
	// }
	// rows, err := c.Simulate(ctx, "decay", 100, 1)

	_ = ctx
	_ = c
	_ = model
}
