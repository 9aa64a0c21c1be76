// Package clinicaltrials provides a client for the ClinicalTrials.gov v2 API.
//
// Registered trials are mapped to studies: the lead sponsor and overall
// officials stand in for authors, the brief summary for the abstract and
// the start date for the publication date.
//
// API Documentation: https://clinicaltrials.gov/data-api/api
package clinicaltrials

// SearchResponse is the top-level response of the studies endpoint.
type SearchResponse struct {
	Studies       []Trial `json:"studies"`
	NextPageToken string  `json:"nextPageToken"`
}

// Trial is a single registered study.
type Trial struct {
	ProtocolSection ProtocolSection `json:"protocolSection"`
}

// ProtocolSection holds the protocol modules used for mapping.
type ProtocolSection struct {
	IdentificationModule       IdentificationModule       `json:"identificationModule"`
	StatusModule               StatusModule               `json:"statusModule"`
	DescriptionModule          DescriptionModule          `json:"descriptionModule"`
	SponsorCollaboratorsModule SponsorCollaboratorsModule `json:"sponsorCollaboratorsModule"`
	ContactsLocationsModule    ContactsLocationsModule    `json:"contactsLocationsModule"`
}

// IdentificationModule carries the NCT identifier and titles.
type IdentificationModule struct {
	NCTID         string `json:"nctId"`
	BriefTitle    string `json:"briefTitle"`
	OfficialTitle string `json:"officialTitle"`
}

// StatusModule carries the trial dates.
type StatusModule struct {
	OverallStatus   string     `json:"overallStatus"`
	StartDateStruct DateStruct `json:"startDateStruct"`
}

// DateStruct is a partial date such as "2021-03" or "2021-03-15".
type DateStruct struct {
	Date string `json:"date"`
	Type string `json:"type"`
}

// DescriptionModule carries the trial summaries.
type DescriptionModule struct {
	BriefSummary string `json:"briefSummary"`
}

// SponsorCollaboratorsModule carries the lead sponsor.
type SponsorCollaboratorsModule struct {
	LeadSponsor Party `json:"leadSponsor"`
}

// ContactsLocationsModule carries the overall officials.
type ContactsLocationsModule struct {
	OverallOfficials []Party `json:"overallOfficials"`
}

// Party is a named sponsor or official.
type Party struct {
	Name string `json:"name"`
}
