package kinetics

// SpeciesConfig declares a user species and its initial copy number.
type SpeciesConfig struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ReactionConfig declares a mass-action reaction.
type ReactionConfig struct {
	ID        string   `json:"id"`
	Rate      float64  `json:"rate"`
	Reactants []string `json:"reactants,omitempty"`
	Products  []string `json:"products,omitempty"`
}

// PolymeraseConfig declares a polymerase type.
type PolymeraseConfig struct {
	Name      string  `json:"name"`
	Footprint int     `json:"footprint"`
	Speed     float64 `json:"speed"`
	Count     int     `json:"count"`
}

// RibosomeConfig declares the ribosome pool.
type RibosomeConfig struct {
	Footprint int     `json:"footprint"`
	Speed     float64 `json:"speed"`
	Count     int     `json:"count"`
}

// TRNAPoolConfig is the initial state and charging rate of one tRNA.
type TRNAPoolConfig struct {
	Charged   int     `json:"charged"`
	Uncharged int     `json:"uncharged"`
	Rate      float64 `json:"rate"`
}

// TRNAConfig maps codons to anticodon tRNAs and declares their pools.
type TRNAConfig struct {
	Codons map[string][]string       `json:"codons"`
	Pools  map[string]TRNAPoolConfig `json:"pools"`
}

// ModelConfig is the JSON description of a model.
type ModelConfig struct {
	Name        string             `json:"name"`
	Volume      float64            `json:"volume"`
	Seed        *uint64            `json:"seed,omitempty"`
	Species     []SpeciesConfig    `json:"species,omitempty"`
	Reactions   []ReactionConfig   `json:"reactions,omitempty"`
	Polymerases []PolymeraseConfig `json:"polymerases,omitempty"`
	Ribosome    *RibosomeConfig    `json:"ribosome,omitempty"`
	TRNA        *TRNAConfig        `json:"trna,omitempty"`
	// Notifiers lists the notifier IDs that receive this model's events.
	Notifiers []string `json:"notifiers,omitempty"`
}
