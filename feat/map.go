package feat

// Canonical feature names shared by the loading, assembly and processing
// stages. The set mirrors the records produced by the feature-generation
// pipeline; only names used for control flow in this module are listed.
const (
	KeyMSA              = "msa"
	KeyDeletionMatrix   = "deletion_matrix"
	KeySpeciesIDs       = "msa_species_identifiers"
	KeyAatype           = "aatype"
	KeyAllAtomPositions = "all_atom_positions"
	KeyAllAtomMask      = "all_atom_mask"
	KeyResolution       = "resolution"
	KeySeqLength        = "seq_length"
	KeyResidueIndex     = "residue_index"
	KeyAsymID           = "asym_id"
	KeyEntityID         = "entity_id"
	KeySymID            = "sym_id"
	KeyAsymLen          = "asym_len"
	KeyMSAChains        = "msa_chains"
	KeyNumRecycling     = "num_recycling_iters"
	KeyUseClampedFAPE   = "use_clamped_fape"
	KeyIsDistillation   = "is_distillation"
	KeyCropSeed         = "crop_and_fix_size_seed"
	KeyTemplateAatype   = "template_aatype"
	KeyTemplateMask     = "template_mask"
	KeyCrossLink        = "xl"

	// AllSeqSuffix marks alignment fields taken from the full-database
	// (uniprot) search when attached to a multimer chain without merging.
	AllSeqSuffix = "_all_seq"
)

// LabelKeys are the fields a ground-truth label record is projected down to.
var LabelKeys = []string{KeyAatype, KeyAllAtomPositions, KeyAllAtomMask, KeyResolution}

// Map is one feature or label record: feature name to dense array.
type Map map[string]*Array

// Clone deep-copies the record; mutating the result never affects the
// receiver.
func (m Map) Clone() Map {
	c := make(Map, len(m))
	for k, v := range m {
		c[k] = v.Clone()
	}
	return c
}

// Update merges o into m in place, overwriting existing keys. Arrays are
// shared, not copied, matching the in-place label merge performed during
// assembly.
func (m Map) Update(o Map) {
	for k, v := range o {
		m[k] = v
	}
}

// Filter returns a new record retaining only the named keys. Unknown names
// are ignored.
func (m Map) Filter(names []string) Map {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	out := make(Map, len(names))
	for k, v := range m {
		if keep[k] {
			out[k] = v
		}
	}
	return out
}

// Has reports whether the record carries the named feature.
func (m Map) Has(name string) bool {
	_, ok := m[name]
	return ok
}

// SeqLength returns the residue count recorded under seq_length.
func (m Map) SeqLength() int {
	if a, ok := m[KeySeqLength]; ok {
		return int(a.ScalarInt())
	}
	return 0
}

// Keys returns the feature names in unspecified order.
func (m Map) Keys() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
