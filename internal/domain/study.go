package domain

// Study is the source-agnostic record every adapter normalises into.
// Optional upstream fields default to the empty string; Authors is never nil
// once a record has passed through NewStudy.
type Study struct {
	Title           string     `json:"title"`
	Authors         []string   `json:"authors"`
	Abstract        string     `json:"abstract"`
	Source          SourceType `json:"source"`
	URL             string     `json:"url"`
	PublicationDate string     `json:"publication_date"`
	Journal         string     `json:"journal"`
	DOI             string     `json:"doi"`
}

// NewStudy returns a Study tagged with its source and an empty author list.
func NewStudy(source SourceType) Study {
	return Study{
		Source:  source,
		Authors: []string{},
	}
}

// SearchResult is the response of a single evidence search.
type SearchResult struct {
	// Query is the caller's raw query, unchanged even when a correction was applied.
	Query string `json:"query"`

	// CorrectedQuery is the spelling correction that was used for searching,
	// or empty when none was applied.
	CorrectedQuery string `json:"corrected_query"`

	// TotalResults is the number of studies after deduplication.
	TotalResults int `json:"total_results"`

	// Studies holds the deduplicated records in source priority order.
	Studies []Study `json:"studies"`

	// Summary is the synthesised evidence summary, or empty.
	Summary string `json:"summary"`

	// SourcesQueried always lists all four sources.
	SourcesQueried []string `json:"sources_queried"`
}

// NewSearchResult assembles a SearchResult from the pipeline outputs.
func NewSearchResult(query, correctedQuery string, studies []Study, summary string) *SearchResult {
	if studies == nil {
		studies = []Study{}
	}
	return &SearchResult{
		Query:          query,
		CorrectedQuery: correctedQuery,
		TotalResults:   len(studies),
		Studies:        studies,
		Summary:        summary,
		SourcesQueried: SourcesQueried(),
	}
}
