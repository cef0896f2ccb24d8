package kinetics

import (
	"fmt"
	"strings"
)

// ValidationError collects multiple validation issues
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid model: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "model validation errors: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

// ValidateModelConfig performs comprehensive validation of a ModelConfig
func ValidateModelConfig(cfg ModelConfig) error {
	err := &ValidationError{}

	if cfg.Name == "" {
		err.Add("model name is required")
	}
	if cfg.Volume <= 0 {
		err.Add(fmt.Sprintf("volume must be positive, got %g", cfg.Volume))
	}

	// Every name a reaction may reference.
	known := make(map[string]bool)

	for _, sp := range cfg.Species {
		if sp.Name == "" {
			err.Add("species name is required")
			continue
		}
		if SpeciesName(sp.Name).IsReserved() {
			err.Add("species '" + sp.Name + "': names prefixed with '" + ReservedPrefix + "' are reserved")
		}
		if known[sp.Name] {
			err.Add("duplicate species name: " + sp.Name)
		}
		known[sp.Name] = true
		if sp.Count < 0 {
			err.Add(fmt.Sprintf("species '%s': count must be nonnegative, got %d", sp.Name, sp.Count))
		}
	}

	for i, pc := range cfg.Polymerases {
		prefix := fmt.Sprintf("polymerase at index %d", i)
		if pc.Name != "" {
			prefix = "polymerase '" + pc.Name + "'"
		}
		if pc.Name == "" {
			err.Add(prefix + ": name is required")
		} else if SpeciesName(pc.Name).IsReserved() {
			err.Add(prefix + ": names prefixed with '" + ReservedPrefix + "' are reserved")
		}
		if known[pc.Name] {
			err.Add("duplicate species name: " + pc.Name)
		}
		known[pc.Name] = true
		validateMobile(prefix, pc.Footprint, pc.Speed, pc.Count, err)
	}

	if cfg.Ribosome != nil {
		validateMobile("ribosome", cfg.Ribosome.Footprint, cfg.Ribosome.Speed, cfg.Ribosome.Count, err)
		known[string(RibosomeName)] = true
	}

	if cfg.TRNA != nil {
		validateTRNA(cfg.TRNA, known, err)
	}

	reactionIDs := make(map[string]bool)
	for i, rc := range cfg.Reactions {
		prefix := fmt.Sprintf("reaction at index %d", i)
		if rc.ID != "" {
			prefix = "reaction '" + rc.ID + "'"
		}

		if rc.ID == "" {
			err.Add(prefix + ": reaction ID is required")
		} else if reactionIDs[rc.ID] {
			err.Add("duplicate reaction ID: " + rc.ID)
		} else {
			reactionIDs[rc.ID] = true
		}

		if rc.Rate < 0 {
			err.Add(fmt.Sprintf("%s: rate must be nonnegative, got %g", prefix, rc.Rate))
		}
		if len(rc.Reactants) > 2 {
			err.Add(fmt.Sprintf("%s: at most two reactants are supported, got %d", prefix, len(rc.Reactants)))
		}
		for _, name := range rc.Reactants {
			if !known[name] {
				err.Add(prefix + ": reactant '" + name + "' does not exist")
			}
		}
		for _, name := range rc.Products {
			if !known[name] {
				err.Add(prefix + ": product '" + name + "' does not exist")
			}
		}
	}

	if err.HasIssues() {
		return err
	}
	return nil
}

func validateMobile(prefix string, footprint int, speed float64, count int, err *ValidationError) {
	if footprint <= 0 {
		err.Add(fmt.Sprintf("%s: footprint must be positive, got %d", prefix, footprint))
	}
	if speed <= 0 {
		err.Add(fmt.Sprintf("%s: speed must be positive, got %g", prefix, speed))
	}
	if count < 0 {
		err.Add(fmt.Sprintf("%s: count must be nonnegative, got %d", prefix, count))
	}
}

// validateTRNA checks the pools and registers their charged and uncharged
// species names as known.
func validateTRNA(cfg *TRNAConfig, known map[string]bool, err *ValidationError) {
	for name, pool := range cfg.Pools {
		prefix := "tRNA '" + name + "'"
		if name == "" {
			err.Add("tRNA name is required")
			continue
		}
		if SpeciesName(name).IsReserved() {
			err.Add(prefix + ": names prefixed with '" + ReservedPrefix + "' are reserved")
		}
		if pool.Charged < 0 || pool.Uncharged < 0 {
			err.Add(prefix + ": pool sizes must be nonnegative")
		}
		if pool.Rate < 0 {
			err.Add(fmt.Sprintf("%s: charging rate must be nonnegative, got %g", prefix, pool.Rate))
		}
		known[string(Charged(name))] = true
		known[string(Uncharged(name))] = true
	}
	for codon, anticodons := range cfg.Codons {
		if len(anticodons) == 0 {
			err.Add("codon '" + codon + "' has no anticodons")
		}
		for _, a := range anticodons {
			if _, ok := cfg.Pools[a]; !ok {
				err.Add("codon '" + codon + "' references unknown tRNA '" + a + "'")
			}
		}
	}
}
