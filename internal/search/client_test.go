package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingCredentialsDegradesToEmpty", func(t *testing.T) {
		c := NewClient(Config{})
		results := c.Search(ctx, []string{"q1", "q2"})

		require.Len(t, results, 2)
		for i, q := range []string{"q1", "q2"} {
			assert.Equal(t, q, results[i].Query)
			assert.Empty(t, results[i].Items)
			assert.Empty(t, results[i].RelatedQuestions)
			assert.NotEmpty(t, results[i].Error)
		}
	})

	t.Run("ParsesItemsAndFacets", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "k", r.URL.Query().Get("key"))
			assert.Equal(t, "cx1", r.URL.Query().Get("cx"))
			assert.Equal(t, "aspirin uses", r.URL.Query().Get("q"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"items": [{"title": "Aspirin", "link": "https://x", "snippet": "pain relief"}],
				"context": {"facets": [[{"anchor": "Related searches", "label": "aspirin dosage"}]]}
			}`))
		}))
		defer srv.Close()

		c := NewClient(Config{APIKey: "k", EngineID: "cx1", BaseURL: srv.URL})
		results := c.Search(ctx, []string{"aspirin uses"})

		require.Len(t, results, 1)
		require.Len(t, results[0].Items, 1)
		assert.Equal(t, "Aspirin", results[0].Items[0].Title)
		assert.Equal(t, []string{"aspirin dosage"}, results[0].RelatedSearches)
		assert.Equal(t, results[0].RelatedSearches, results[0].RelatedQuestions)
		assert.Empty(t, results[0].Error)
	})

	t.Run("ServerErrorDegradesPerQuery", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClient(Config{APIKey: "k", EngineID: "cx1", BaseURL: srv.URL})
		results := c.Search(ctx, []string{"a", "b"})

		require.Len(t, results, 2)
		for _, res := range results {
			assert.Empty(t, res.Items)
			assert.NotEmpty(t, res.Error)
		}
	})
}
