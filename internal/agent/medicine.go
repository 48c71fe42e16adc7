package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
	"github.com/pharmaboost/pharmaboost/internal/content"
)

// ErrLeafletRequired is returned when a medicine product has no leaflet
// text to ground the generated content on.
var ErrLeafletRequired = errors.New("leaflet text is required for the medicine pipeline")

type medicinePipeline struct {
	runner
}

func (m *medicinePipeline) Name() string { return TypeMedicine }

// Prepare derives the base name and builds the dynamic blacklist of
// sensitive leaflet terms. Blacklist extraction degrades to empty; a
// missing leaflet is the one hard precondition.
func (m *medicinePipeline) Prepare(ctx context.Context, p *Product) error {
	p.BaseName = BaseName(p.Name, p.Brand)

	if strings.TrimSpace(p.LeafletText) == "" {
		return ErrLeafletRequired
	}

	obj, ok := m.runJSON(ctx, "sensitive_term_identifier", map[string]any{
		"leaflet_text": p.LeafletText,
	}, 90*time.Second)
	if !ok {
		logger.Warn(ctx, "Sensitive term identification failed; continuing with empty blacklist", "product", p.Name)
		p.Blacklist = []string{}
		return nil
	}

	terms := []string{}
	if raw, found := obj["prohibited_terms"].([]any); found {
		for _, t := range raw {
			if s, isStr := t.(string); isStr && s != "" {
				terms = append(terms, s)
			}
		}
	}
	p.Blacklist = terms
	logger.Info(ctx, "Built sensitive term blacklist", "product", p.Name, "terms", len(terms))
	return nil
}

func (m *medicinePipeline) Generate(ctx context.Context, p *Product) (*content.Generated, bool) {
	obj, ok := m.runJSON(ctx, "medicine_generator", p.vars(), 180*time.Second)
	if !ok {
		return nil, false
	}
	return content.NewGenerated(obj), true
}

func (m *medicinePipeline) Audit(ctx context.Context, p *Product, c *content.Generated) *content.Audit {
	vars := p.vars()
	vars["page_json"] = c.JSON()
	obj, ok := m.runJSON(ctx, "medicine_auditor", vars, 180*time.Second)
	if !ok {
		logger.Warn(ctx, "Audit failed; scoring zero", "product", p.Name)
		return content.NewAudit(map[string]any{"total_score": float64(0), "feedback": "audit failed"})
	}
	return content.NewAudit(obj)
}

// Refine asks the model to fix the previous attempt using the audit
// feedback. On failure the previous content is kept so the loop can still
// audit and rank it.
func (m *medicinePipeline) Refine(ctx context.Context, p *Product, prev *content.Generated, audit *content.Audit) (*content.Generated, bool) {
	vars := p.vars()
	vars["previous_json"] = prev.JSON()
	vars["previous_audit"] = audit.JSON()
	obj, ok := m.runJSON(ctx, "medicine_refiner", vars, 180*time.Second)
	if !ok {
		logger.Warn(ctx, "Refinement failed; keeping previous content", "product", p.Name)
		return prev, true
	}
	return content.NewGenerated(obj), true
}
