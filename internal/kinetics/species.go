package kinetics

import (
	"fmt"
	"strings"
)

// SpeciesName is the name/identifier of a species tracked by copy number.
type SpeciesName string

// ReservedPrefix marks species synthesized internally (ribosomes, nuclease
// sites). User-facing APIs reject names that start with it.
const ReservedPrefix = "__"

// Internal species names.
const (
	RibosomeName        SpeciesName = "__ribosome"
	NucleaseSite        SpeciesName = "__rnase_site"
	NucleaseSiteExt     SpeciesName = "__rnase_site_ext"
	chargedSuffix                   = "_charged"
	unchargedSuffix                 = "_uncharged"
	terminationSuffix               = "_total"
)

// IsReserved reports whether name uses the internal prefix.
func (n SpeciesName) IsReserved() bool {
	return strings.HasPrefix(string(n), ReservedPrefix)
}

// ValidateSpeciesName checks a user-declared species name.
func ValidateSpeciesName(name SpeciesName) error {
	if name == "" {
		return fmt.Errorf("species name is required")
	}
	if name.IsReserved() {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	return nil
}

// Charged returns the charged pool name of a tRNA.
func Charged(trna string) SpeciesName { return SpeciesName(trna + chargedSuffix) }

// Uncharged returns the uncharged pool name of a tRNA.
func Uncharged(trna string) SpeciesName { return SpeciesName(trna + unchargedSuffix) }

// Polymerase describes a mobile element type moving along templates:
// RNA polymerases on genomes, ribosomes on transcripts.
type Polymerase struct {
	Name      SpeciesName `json:"name"`
	Footprint int         `json:"footprint"`
	Speed     float64     `json:"speed"`
}
