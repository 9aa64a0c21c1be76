package spellcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/evidence-search-service/internal/papersources"
)

const espellResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE eSpellResult PUBLIC "-//NLM//DTD eSpellResult, 23 November 2004//EN" "https://eutils.ncbi.nlm.nih.gov/eutils/dtd/20041123/espell.dtd">
<eSpellResult>
	<Database>pubmed</Database>
	<Query>asprin</Query>
	<CorrectedQuery> aspirin </CorrectedQuery>
	<SpelledQuery><Replaced>aspirin</Replaced></SpelledQuery>
	<ERROR/>
</eSpellResult>`

const espellNoCorrectionXML = `<?xml version="1.0" encoding="UTF-8" ?>
<eSpellResult>
	<Database>pubmed</Database>
	<Query>aspirin</Query>
	<CorrectedQuery></CorrectedQuery>
</eSpellResult>`

func TestESpellClient_Suggest(t *testing.T) {
	t.Run("returns trimmed corrected query", func(t *testing.T) {
		var received url.Values
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/espell.fcgi", r.URL.Path)
			received = r.URL.Query()
			_, _ = w.Write([]byte(espellResponseXML))
		}))
		defer server.Close()

		client := createTestClient(ESpellConfig{BaseURL: server.URL, APIKey: "ncbi-key"})

		got, err := client.Suggest(context.Background(), "asprin")
		require.NoError(t, err)
		assert.Equal(t, "aspirin", got)
		assert.Equal(t, "pubmed", received.Get("db"))
		assert.Equal(t, "asprin", received.Get("term"))
		assert.Equal(t, "ncbi-key", received.Get("api_key"))
	})

	t.Run("empty correction", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.URL.Query().Get("api_key"))
			_, _ = w.Write([]byte(espellNoCorrectionXML))
		}))
		defer server.Close()

		client := createTestClient(ESpellConfig{BaseURL: server.URL})

		got, err := client.Suggest(context.Background(), "aspirin")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("malformed xml", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<eSpellResult><CorrectedQuery>`))
		}))
		defer server.Close()

		client := createTestClient(ESpellConfig{BaseURL: server.URL})

		_, err := client.Suggest(context.Background(), "x")
		assert.ErrorIs(t, err, papersources.ErrMalformedResponse)
	})

	t.Run("http error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := createTestClient(ESpellConfig{BaseURL: server.URL})

		_, err := client.Suggest(context.Background(), "x")
		assert.Error(t, err)
	})

	t.Run("own timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		client := createTestClient(ESpellConfig{BaseURL: server.URL, Timeout: 20 * time.Millisecond})

		_, err := client.Suggest(context.Background(), "x")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNewESpellClient_Defaults(t *testing.T) {
	client := NewESpellClient(ESpellConfig{})
	assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
	assert.Equal(t, DefaultTimeout, client.config.Timeout)
	assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
}

func createTestClient(cfg ESpellConfig) *ESpellClient {
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit: 100,
		BurstSize: 10,
	})
	return NewESpellClientWithHTTPClient(cfg, httpClient)
}
