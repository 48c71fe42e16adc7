package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaboost/pharmaboost/internal/cmn/pool"
	"github.com/pharmaboost/pharmaboost/internal/content"
	"github.com/pharmaboost/pharmaboost/internal/llm"
	"github.com/pharmaboost/pharmaboost/internal/prompt"
	"github.com/pharmaboost/pharmaboost/internal/search"
)

// scriptedProvider returns canned responses in order, repeating the last
// one once the script runs out.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Generate(_ context.Context, _ *llm.Request) (*llm.Response, error) {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return &llm.Response{Text: s.responses[idx]}, nil
}

func testDeps(t *testing.T, provider llm.Provider, searchURL string) Deps {
	t.Helper()

	dir := t.TempDir()
	templates := map[string]string{
		"sensitive_term_identifier": "Identify terms in: {{.leaflet_text}}",
		"medicine_generator":        "Write about {{.product_name}} avoiding {{.blacklist}}",
		"medicine_auditor":          "Audit: {{.page_json}}",
		"medicine_refiner":          "Refine {{.previous_json}} per {{.previous_audit}}",
		"beauty_generator":          "Write about {{.product_name}} using {{.faq_context}}",
		"beauty_auditor":            "Audit: {{.page_json}}",
		"beauty_refiner":            "Refine {{.previous_json}}",
	}
	for name, tmpl := range templates {
		data := "template: |\n  " + tmpl + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(data), 0600))
	}
	store, err := prompt.NewStore(dir)
	require.NoError(t, err)

	searchCfg := search.Config{}
	if searchURL != "" {
		searchCfg = search.Config{APIKey: "k", EngineID: "cx", BaseURL: searchURL}
	}

	return Deps{
		Prompts:    store,
		Executor:   llm.NewExecutor(provider, llm.WithMaxRetries(1)),
		Search:     search.NewClient(searchCfg),
		SearchPool: pool.New(5),
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		name     string
		fullName string
		brand    string
		want     string
	}{
		{"StripsDosage", "Dipirona 500mg", "", "Dipirona"},
		{"StripsPackSuffix", "Aspirina Prevent 100mg - Caixa com 30 comprimidos", "", "Aspirina Prevent"},
		{"StripsPharmaceuticalForm", "Neosoro Gotas 30ml", "", "Neosoro"},
		{"StripsSunProtectionFactor", "Protetor Solar FPS 60", "", "Protetor Solar"},
		{"AppendsMissingBrand", "Dipirona 500mg", "Medley", "Dipirona Medley"},
		{"SkipsBrandAlreadyPresent", "Aspirina Bayer 100mg", "Bayer", "Aspirina Bayer"},
		{"FallsBackWhenTooShort", "Gel", "", "Gel"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BaseName(tc.fullName, tc.brand))
		})
	}
}

func TestForType(t *testing.T) {
	deps := testDeps(t, &scriptedProvider{responses: []string{"{}"}}, "")

	t.Run("Medicine", func(t *testing.T) {
		p, err := ForType(TypeMedicine, deps)
		require.NoError(t, err)
		assert.Equal(t, "medicine", p.Name())
	})

	t.Run("Beauty", func(t *testing.T) {
		p, err := ForType(TypeBeauty, deps)
		require.NoError(t, err)
		assert.Equal(t, "beauty", p.Name())
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := ForType("grocery", deps)
		assert.Error(t, err)
	})
}

func TestMedicinePipeline(t *testing.T) {
	ctx := context.Background()

	t.Run("PrepareRequiresLeaflet", func(t *testing.T) {
		deps := testDeps(t, &scriptedProvider{responses: []string{"{}"}}, "")
		p, err := ForType(TypeMedicine, deps)
		require.NoError(t, err)

		err = p.Prepare(ctx, &Product{Name: "Dipirona 500mg"})
		assert.ErrorIs(t, err, ErrLeafletRequired)
	})

	t.Run("PrepareBuildsBlacklist", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{
			`{"prohibited_terms": ["cura", "trata", "previne"]}`,
		}}
		p, err := ForType(TypeMedicine, testDeps(t, provider, ""))
		require.NoError(t, err)

		product := &Product{Name: "Dipirona 500mg", LeafletText: "bula..."}
		require.NoError(t, p.Prepare(ctx, product))
		assert.Equal(t, []string{"cura", "trata", "previne"}, product.Blacklist)
		assert.Equal(t, "Dipirona", product.BaseName)
	})

	t.Run("PrepareDegradesOnBadIdentifierOutput", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{"not json at all"}}
		p, err := ForType(TypeMedicine, testDeps(t, provider, ""))
		require.NoError(t, err)

		product := &Product{Name: "Dipirona", LeafletText: "bula..."}
		require.NoError(t, p.Prepare(ctx, product))
		assert.Empty(t, product.Blacklist)
	})

	t.Run("GenerateReturnsContent", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{
			"```json\n{\"seo_title\": \"Dipirona 500mg\", \"html_content\": \"<p>x</p>\"}\n```",
		}}
		p, err := ForType(TypeMedicine, testDeps(t, provider, ""))
		require.NoError(t, err)

		c, ok := p.Generate(ctx, &Product{Name: "Dipirona"})
		require.True(t, ok)
		assert.Equal(t, "Dipirona 500mg", c.SEOTitle())
	})

	t.Run("GenerateFailsOnMalformedResponse", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{"no structure here"}}
		p, err := ForType(TypeMedicine, testDeps(t, provider, ""))
		require.NoError(t, err)

		_, ok := p.Generate(ctx, &Product{Name: "Dipirona"})
		assert.False(t, ok)
	})

	t.Run("AuditFallsBackToZeroScore", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{"garbage"}}
		p, err := ForType(TypeMedicine, testDeps(t, provider, ""))
		require.NoError(t, err)

		audit := p.Audit(ctx, &Product{Name: "Dipirona"}, content.NewGenerated(nil))
		assert.Zero(t, audit.TotalScore)
	})

	t.Run("RefineKeepsPreviousOnFailure", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{"garbage"}}
		p, err := ForType(TypeMedicine, testDeps(t, provider, ""))
		require.NoError(t, err)

		prev := content.NewGenerated(map[string]any{"seo_title": "Keep"})
		audit := content.NewAudit(map[string]any{"total_score": float64(60)})
		got, ok := p.Refine(ctx, &Product{Name: "Dipirona"}, prev, audit)
		require.True(t, ok)
		assert.Equal(t, "Keep", got.SEOTitle())
	})
}

func TestBeautyPipeline(t *testing.T) {
	ctx := context.Background()

	t.Run("PrepareGathersSearchContext", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"context": {"facets": [[
					{"anchor": "Related", "label": "protetor solar facial"},
					{"anchor": "Related", "label": "protetor solar corporal"}
				]]}
			}`))
		}))
		defer srv.Close()

		provider := &scriptedProvider{responses: []string{"{}"}}
		p, err := ForType(TypeBeauty, testDeps(t, provider, srv.URL))
		require.NoError(t, err)

		product := &Product{Name: "Protetor Solar FPS 60", Brand: "Episol"}
		require.NoError(t, p.Prepare(ctx, product))

		assert.Equal(t, "Protetor Solar Episol", product.BaseName)
		assert.Contains(t, product.FAQContext, "- protetor solar facial")
		// Duplicates across the three query variations collapse.
		assert.Equal(t, 1, strings.Count(product.FAQContext, "protetor solar facial"))
		assert.Contains(t, product.KeywordContext, "protetor solar facial, protetor solar corporal")
	})

	t.Run("PrepareDegradesWithoutSearchBackend", func(t *testing.T) {
		provider := &scriptedProvider{responses: []string{"{}"}}
		p, err := ForType(TypeBeauty, testDeps(t, provider, ""))
		require.NoError(t, err)

		product := &Product{Name: "Shampoo Anticaspa"}
		require.NoError(t, p.Prepare(ctx, product))
		assert.NotEmpty(t, product.FAQContext)
		assert.NotEmpty(t, product.KeywordContext)
	})
}
