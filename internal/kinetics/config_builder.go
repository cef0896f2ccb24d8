package kinetics

import "fmt"

// BuildModelFromConfig builds an uninitialized model from cfg. Callers
// register templates, if any, and then call Initialize or Simulate.
func BuildModelFromConfig(cfg ModelConfig) (*Model, error) {
	model, err := NewModel(cfg.Volume)
	if err != nil {
		return nil, err
	}
	if cfg.Seed != nil {
		model.Seed(*cfg.Seed)
	}

	for _, sp := range cfg.Species {
		if err := model.AddSpecies(SpeciesName(sp.Name), sp.Count); err != nil {
			return nil, fmt.Errorf("species %s: %w", sp.Name, err)
		}
	}
	for _, pc := range cfg.Polymerases {
		if err := model.AddPolymerase(SpeciesName(pc.Name), pc.Footprint, pc.Speed, pc.Count); err != nil {
			return nil, err
		}
	}
	if rc := cfg.Ribosome; rc != nil {
		if err := model.AddRibosome(rc.Footprint, rc.Speed, rc.Count); err != nil {
			return nil, err
		}
	}
	if tc := cfg.TRNA; tc != nil {
		pools := make(map[string]TRNAPool, len(tc.Pools))
		for name, p := range tc.Pools {
			pools[name] = TRNAPool{Charged: p.Charged, Uncharged: p.Uncharged, Rate: p.Rate}
		}
		if err := model.AddTRNA(tc.Codons, pools); err != nil {
			return nil, err
		}
	}
	for _, rc := range cfg.Reactions {
		if _, err := model.AddReaction(rc.Rate, toNames(rc.Reactants), toNames(rc.Products)); err != nil {
			return nil, fmt.Errorf("reaction %s: %w", rc.ID, err)
		}
	}
	return model, nil
}

func toNames(in []string) []SpeciesName {
	out := make([]SpeciesName, len(in))
	for i, s := range in {
		out[i] = SpeciesName(s)
	}
	return out
}
