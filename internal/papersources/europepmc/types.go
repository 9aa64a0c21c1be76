// Package europepmc provides a client for the Europe PMC REST search API.
//
// Searches request the "core" result type so abstracts, full author lists
// and nested journal information are included in a single call.
//
// API Documentation: https://europepmc.org/RestfulWebService
package europepmc

// SearchResponse is the top-level response of the search endpoint.
type SearchResponse struct {
	Version    string     `json:"version"`
	HitCount   int        `json:"hitCount"`
	ResultList ResultList `json:"resultList"`
}

// ResultList wraps the result array.
type ResultList struct {
	Result []Result `json:"result"`
}

// Result is a single Europe PMC record.
type Result struct {
	ID                   string      `json:"id"`
	Source               string      `json:"source"`
	PMID                 string      `json:"pmid"`
	PMCID                string      `json:"pmcid"`
	DOI                  string      `json:"doi"`
	Title                string      `json:"title"`
	AbstractText         string      `json:"abstractText"`
	AuthorList           AuthorList  `json:"authorList"`
	JournalInfo          JournalInfo `json:"journalInfo"`
	JournalTitle         string      `json:"journalTitle"`
	FirstPublicationDate string      `json:"firstPublicationDate"`
}

// AuthorList wraps the author array.
type AuthorList struct {
	Author []Author `json:"author"`
}

// Author is a single author entry.
type Author struct {
	FullName  string `json:"fullName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// JournalInfo carries the nested journal record.
type JournalInfo struct {
	Journal Journal `json:"journal"`
}

// Journal is the journal record.
type Journal struct {
	Title       string `json:"title"`
	ISOAbbrev   string `json:"isoabbreviation"`
	MedlineAbbr string `json:"medlineAbbreviation"`
}
