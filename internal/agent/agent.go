// Package agent implements the specialized content agents. Each product
// type gets a Pipeline with a generate, audit, and refine stage; all three
// stages follow the same shape: render a prompt, execute it against the
// model, extract the JSON object from the response.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
	"github.com/pharmaboost/pharmaboost/internal/cmn/pool"
	"github.com/pharmaboost/pharmaboost/internal/content"
	"github.com/pharmaboost/pharmaboost/internal/extract"
	"github.com/pharmaboost/pharmaboost/internal/llm"
	"github.com/pharmaboost/pharmaboost/internal/prompt"
	"github.com/pharmaboost/pharmaboost/internal/search"
)

// Product type identifiers accepted by ForType.
const (
	TypeMedicine = "medicine"
	TypeBeauty   = "beauty"
)

// Product carries everything the agents know about one catalog item.
// Prepare fills the derived fields (BaseName, Blacklist, search contexts).
type Product struct {
	Name        string
	Brand       string
	BaseName    string
	LeafletText string
	ContextText string

	Blacklist      []string
	FAQContext     string
	KeywordContext string

	// Memory and Strategies are preformatted prompt blocks supplied by the
	// orchestrator from the success memory and the strategy ledger.
	Memory     string
	Strategies string
}

// Pipeline is one product type's agent set. Generate and Refine report
// failure through the ok flag; Audit and Prepare degrade internally so a
// run is never aborted past preparation.
type Pipeline interface {
	Name() string
	Prepare(ctx context.Context, p *Product) error
	Generate(ctx context.Context, p *Product) (*content.Generated, bool)
	Audit(ctx context.Context, p *Product, c *content.Generated) *content.Audit
	Refine(ctx context.Context, p *Product, prev *content.Generated, audit *content.Audit) (*content.Generated, bool)
}

// Deps are the shared services a pipeline runs on.
type Deps struct {
	Prompts  *prompt.Store
	Executor *llm.Executor
	Search   *search.Client
	// SearchPool bounds concurrent search backend calls.
	SearchPool *pool.Pool
}

// ForType returns the pipeline for a product type.
func ForType(productType string, deps Deps) (Pipeline, error) {
	switch productType {
	case TypeMedicine:
		return &medicinePipeline{runner: runner{deps}}, nil
	case TypeBeauty:
		return &beautyPipeline{runner: runner{deps}}, nil
	default:
		return nil, fmt.Errorf("unknown product type %q", productType)
	}
}

// runner is the render-execute-extract core shared by all pipelines.
type runner struct {
	deps Deps
}

// runJSON renders the named template, executes it, and extracts the JSON
// object from the model's reply. Any stage failing yields nil, false.
func (r runner) runJSON(ctx context.Context, template string, vars map[string]any, timeout time.Duration) (map[string]any, bool) {
	rendered, err := r.deps.Prompts.Render(template, vars)
	if err != nil {
		logger.Error(ctx, "Failed to render prompt", "template", template, "err", err)
		return nil, false
	}
	raw, ok := r.deps.Executor.Execute(ctx, rendered, timeout, true)
	if !ok {
		return nil, false
	}
	return extract.JSON(ctx, raw)
}

func (p *Product) vars() map[string]any {
	return map[string]any{
		"product_name":      p.Name,
		"brand":             p.Brand,
		"base_name":         p.BaseName,
		"leaflet_text":      p.LeafletText,
		"context_text":      p.ContextText,
		"blacklist":         p.Blacklist,
		"faq_context":       p.FAQContext,
		"keyword_context":   p.KeywordContext,
		"success_memory":    p.Memory,
		"proven_strategies": p.Strategies,
	}
}
