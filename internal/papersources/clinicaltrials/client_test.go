package clinicaltrials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/evidence-search-service/internal/domain"
	"github.com/helixir/evidence-search-service/internal/papersources"
)

const studiesResponseJSON = `{
	"studies": [
		{
			"protocolSection": {
				"identificationModule": {"nctId": "NCT01234567", "briefTitle": "Low-dose Aspirin in Older Adults"},
				"statusModule": {"overallStatus": "COMPLETED", "startDateStruct": {"date": "2010-03"}},
				"descriptionModule": {"briefSummary": "A randomized trial of daily aspirin."},
				"sponsorCollaboratorsModule": {"leadSponsor": {"name": "Monash University"}},
				"contactsLocationsModule": {"overallOfficials": [{"name": "John McNeil"}, {"name": ""}, {"name": "Anne Murray"}]}
			}
		},
		{
			"protocolSection": {
				"identificationModule": {"briefTitle": "Trial Without Identifier"}
			}
		}
	]
}`

func TestClient_Search(t *testing.T) {
	t.Run("maps trials to studies", func(t *testing.T) {
		var received url.Values
		var headers http.Header
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/studies", r.URL.Path)
			received = r.URL.Query()
			headers = r.Header.Clone()
			_, _ = w.Write([]byte(studiesResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		result, err := client.Search(context.Background(), papersources.SearchParams{Query: "aspirin elderly", MaxResults: 3})
		require.NoError(t, err)

		assert.Equal(t, "aspirin elderly", received.Get("query.term"))
		assert.Equal(t, "3", received.Get("pageSize"))
		assert.Equal(t, BrowserUserAgent, headers.Get("User-Agent"))
		assert.Equal(t, "application/json", headers.Get("Accept"))
		assert.Equal(t, "en-US,en;q=0.9", headers.Get("Accept-Language"))
		assert.Equal(t, "https://clinicaltrials.gov/", headers.Get("Referer"))

		assert.Equal(t, domain.SourceTypeClinicalTrials, result.Source)
		require.Len(t, result.Studies, 2)

		first := result.Studies[0]
		assert.Equal(t, "Low-dose Aspirin in Older Adults", first.Title)
		assert.Equal(t, "A randomized trial of daily aspirin.", first.Abstract)
		assert.Equal(t, []string{"Monash University", "John McNeil", "Anne Murray"}, first.Authors)
		assert.Equal(t, "2010-03", first.PublicationDate)
		assert.Equal(t, "ClinicalTrials.gov", first.Journal)
		assert.Equal(t, "https://clinicaltrials.gov/study/NCT01234567", first.URL)
		assert.Empty(t, first.DOI)

		second := result.Studies[1]
		assert.Equal(t, "Trial Without Identifier", second.Title)
		assert.Empty(t, second.URL)
		assert.Empty(t, second.Authors)
		assert.Equal(t, "ClinicalTrials.gov", second.Journal)
	})

	t.Run("forbidden response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		_, err := client.Search(context.Background(), papersources.SearchParams{Query: "x", MaxResults: 1})
		require.Error(t, err)
		assert.Equal(t, "http_status", papersources.ClassifyError(err))
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>blocked</html>`))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		_, err := client.Search(context.Background(), papersources.SearchParams{Query: "x", MaxResults: 1})
		assert.ErrorIs(t, err, papersources.ErrMalformedResponse)
	})

	t.Run("empty studies", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		result, err := client.Search(context.Background(), papersources.SearchParams{Query: "x"})
		require.NoError(t, err)
		assert.NotNil(t, result.Studies)
		assert.Empty(t, result.Studies)
	})

	t.Run("disabled", func(t *testing.T) {
		client := createTestClient("http://127.0.0.1:1", false)
		_, err := client.Search(context.Background(), papersources.SearchParams{Query: "x"})
		assert.ErrorIs(t, err, domain.ErrSourceDisabled)
	})
}

func TestNew(t *testing.T) {
	client := New(Config{Enabled: true})

	assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
	assert.Equal(t, DefaultMaxResults, client.config.MaxResults)
	assert.Equal(t, domain.SourceTypeClinicalTrials, client.SourceType())
	assert.Equal(t, "ClinicalTrials", client.Name())
	assert.True(t, client.IsEnabled())

	httpCfg := client.config.HTTPClientConfig()
	assert.Equal(t, BrowserUserAgent, httpCfg.UserAgent)
	assert.Equal(t, "https://clinicaltrials.gov/", httpCfg.Headers["Referer"])
}

func createTestClient(baseURL string, enabled bool) *Client {
	cfg := Config{BaseURL: baseURL, Enabled: enabled, RateLimit: 100, BurstSize: 10}
	cfg.applyDefaults()
	return NewWithHTTPClient(cfg, papersources.NewHTTPClient(cfg.HTTPClientConfig()))
}
