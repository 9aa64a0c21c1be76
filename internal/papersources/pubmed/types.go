// Package pubmed provides a client for the NCBI PubMed E-utilities API.
//
// PubMed is a biomedical literature database maintained by NCBI.
// This package implements the papersources.Source interface using the
// two-step esearch/efetch flow: the query is first resolved to PMIDs and the
// matching article records are then fetched as XML.
//
// The E-utilities API documentation is available at:
// https://www.ncbi.nlm.nih.gov/books/NBK25499/
package pubmed

import (
	"encoding/xml"
	"strings"
)

// ESearchResult represents the response from the esearch.fcgi endpoint.
type ESearchResult struct {
	XMLName   xml.Name   `xml:"eSearchResult"`
	Count     int        `xml:"Count"`
	RetMax    int        `xml:"RetMax"`
	IDList    IDList     `xml:"IdList"`
	ErrorList *ErrorList `xml:"ErrorList,omitempty"`
	ERROR     string     `xml:"ERROR,omitempty"`
}

// IDList contains the list of PMIDs returned by a search.
type IDList struct {
	IDs []string `xml:"Id"`
}

// ErrorList contains errors from the E-utilities API.
type ErrorList struct {
	PhraseNotFound []string `xml:"PhraseNotFound,omitempty"`
	FieldNotFound  []string `xml:"FieldNotFound,omitempty"`
}

// PubmedArticleSet represents the response from the efetch.fcgi endpoint.
type PubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []PubmedArticle `xml:"PubmedArticle"`
}

// PubmedArticle represents a single article in the PubMed database.
type PubmedArticle struct {
	MedlineCitation MedlineCitation `xml:"MedlineCitation"`
}

// MedlineCitation contains the core bibliographic information.
type MedlineCitation struct {
	PMID    PMID    `xml:"PMID"`
	Article Article `xml:"Article"`
}

// PMID represents the PubMed identifier with optional version.
type PMID struct {
	Version int    `xml:"Version,attr,omitempty"`
	Value   string `xml:",chardata"`
}

// Article contains the article metadata.
type Article struct {
	Journal      Journal       `xml:"Journal"`
	ArticleTitle Text          `xml:"ArticleTitle"`
	ELocationID  []ELocationID `xml:"ELocationID,omitempty"`
	Abstract     *Abstract     `xml:"Abstract,omitempty"`
	AuthorList   *AuthorList   `xml:"AuthorList,omitempty"`
}

// Journal contains journal information.
type Journal struct {
	JournalIssue    JournalIssue `xml:"JournalIssue"`
	Title           Text         `xml:"Title"`
	ISOAbbreviation string       `xml:"ISOAbbreviation,omitempty"`
}

// JournalIssue contains the volume, issue, and publication date.
type JournalIssue struct {
	Volume  string  `xml:"Volume,omitempty"`
	Issue   string  `xml:"Issue,omitempty"`
	PubDate PubDate `xml:"PubDate"`
}

// PubDate represents the publication date, whose parts are each optional.
type PubDate struct {
	Year        Text   `xml:"Year"`
	Month       Text   `xml:"Month"`
	Day         Text   `xml:"Day"`
	MedlineDate string `xml:"MedlineDate,omitempty"`
}

// ELocationID represents an electronic location identifier such as a DOI.
type ELocationID struct {
	EIdType string `xml:"EIdType,attr"`
	ValidYN string `xml:"ValidYN,attr,omitempty"`
	Value   string `xml:",chardata"`
}

// Abstract contains the article abstract, possibly split into labelled sections.
type Abstract struct {
	AbstractTexts []AbstractText `xml:"AbstractText"`
}

// AbstractText is one abstract section. Its text may contain inline markup.
type AbstractText struct {
	Label string
	Text  string
}

// UnmarshalXML reads the Label attribute and the flattened section text.
func (a *AbstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			a.Label = attr.Value
		}
	}
	text, err := readText(d)
	if err != nil {
		return err
	}
	a.Text = text
	return nil
}

// AuthorList contains the list of authors.
type AuthorList struct {
	Authors []Author `xml:"Author"`
}

// Author represents an article author.
type Author struct {
	ValidYN        string `xml:"ValidYN,attr,omitempty"`
	LastName       Text   `xml:"LastName"`
	ForeName       Text   `xml:"ForeName"`
	Initials       string `xml:"Initials,omitempty"`
	CollectiveName string `xml:"CollectiveName,omitempty"`
}

// Text is the character data of an element with any inline markup
// (<i>, <sup>, <b> ...) flattened away and surrounding whitespace trimmed.
type Text string

// UnmarshalXML collects all nested character data of the element.
func (t *Text) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	text, err := readText(d)
	if err != nil {
		return err
	}
	*t = Text(text)
	return nil
}

// String returns the flattened text.
func (t Text) String() string {
	return string(t)
}

// readText consumes tokens up to the end of the current element and returns
// the concatenated character data, trimmed.
func readText(d *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return strings.TrimSpace(b.String()), nil
			}
			depth--
		case xml.CharData:
			b.Write(el)
		}
	}
}
