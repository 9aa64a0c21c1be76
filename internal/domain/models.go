// Package domain provides domain models and business logic for the Evidence Search Service.
package domain

// SourceType identifies the registry that produced a study record.
// The string value is the label exposed to API callers.
type SourceType string

const (
	SourceTypePubMed         SourceType = "PubMed"
	SourceTypeClinicalTrials SourceType = "ClinicalTrials"
	SourceTypeEuropePMC      SourceType = "EuropePMC"
	SourceTypeOpenAlex       SourceType = "OpenAlex"
)

// sourcePriority is the fixed order in which sources are queried and merged.
var sourcePriority = [...]SourceType{
	SourceTypePubMed,
	SourceTypeClinicalTrials,
	SourceTypeEuropePMC,
	SourceTypeOpenAlex,
}

// IsValid reports whether s is one of the four known sources.
func (s SourceType) IsValid() bool {
	for _, known := range sourcePriority {
		if s == known {
			return true
		}
	}
	return false
}

// String returns the display label of the source.
func (s SourceType) String() string {
	return string(s)
}

// SourceTypes returns all sources in priority order.
func SourceTypes() []SourceType {
	out := make([]SourceType, len(sourcePriority))
	copy(out, sourcePriority[:])
	return out
}

// SourcesQueried returns the list of source labels reported on every search
// result. It records which sources a search targets, not which succeeded.
func SourcesQueried() []string {
	out := make([]string, len(sourcePriority))
	for i, s := range sourcePriority {
		out[i] = string(s)
	}
	return out
}
