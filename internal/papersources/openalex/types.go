// Package openalex provides a client for the OpenAlex API.
//
// OpenAlex is a free, open catalog of scholarly works. This package
// implements the papersources.Source interface on top of the works search
// endpoint, ranking results by relevance.
//
// API Documentation: https://docs.openalex.org/
package openalex

// SearchResponse represents the top-level response from the OpenAlex works search endpoint.
type SearchResponse struct {
	Meta    Meta   `json:"meta"`
	Results []Work `json:"results"`
}

// Meta contains metadata about the search results.
type Meta struct {
	Count   int `json:"count"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Work represents a scholarly work in OpenAlex.
type Work struct {
	ID              string       `json:"id"`
	DOI             string       `json:"doi"`
	Title           string       `json:"title"`
	PublicationDate string       `json:"publication_date"`
	Authorships     []Authorship `json:"authorships"`
	PrimaryLocation *Location    `json:"primary_location"`

	// Abstract is stored as an inverted index of word to positions.
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// Authorship represents an author's contribution to a work.
type Authorship struct {
	Author AuthorInfo `json:"author"`
}

// AuthorInfo contains basic author information.
type AuthorInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Location represents where a work is available.
type Location struct {
	Source *Venue `json:"source"`
}

// Venue represents a publication venue (journal, repository, etc.).
type Venue struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
