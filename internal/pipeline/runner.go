package pipeline

import (
	"context"
	"fmt"

	"github.com/pharmaboost/pharmaboost/internal/agent"
	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
	"github.com/pharmaboost/pharmaboost/internal/content"
	"github.com/pharmaboost/pharmaboost/internal/ledger"
	"github.com/pharmaboost/pharmaboost/internal/memory"
)

const (
	// MaxAttempts bounds the quality loop per product.
	MaxAttempts = 2
	// MinScoreTarget is the audit score that ends the loop early.
	MinScoreTarget = 95.0
	// strategyTopN is how many ledger entries feed the prompts.
	strategyTopN = 3
)

// Result is the final content for one product.
type Result struct {
	FinalScore      float64
	FinalContent    string
	SEOTitle        string
	MetaDescription string
	Raw             map[string]any
}

// Runner orchestrates the quality loop.
type Runner struct {
	deps   agent.Deps
	ledger *ledger.Ledger
	memory *memory.Store
}

// NewRunner creates a quality loop runner on shared services.
func NewRunner(deps agent.Deps, led *ledger.Ledger, mem *memory.Store) *Runner {
	return &Runner{deps: deps, ledger: led, memory: mem}
}

// Seed primes the quality loop with previously generated content and
// curator feedback, so the first attempt refines that content instead of
// generating from scratch.
type Seed struct {
	Previous *content.Generated
	Feedback string
}

// audit wraps the curator feedback in the shape the refiner prompts
// expect from an audit.
func (s *Seed) audit() *content.Audit {
	return content.NewAudit(map[string]any{
		"total_score":    float64(0),
		"feedback_geral": s.Feedback,
	})
}

// Run processes one product through generate, audit, and refine until the
// score target is reached or the attempt budget runs out. All failures
// surface as events; Run never panics and returns nil when no usable
// content was produced.
func (r *Runner) Run(ctx context.Context, productType string, product *agent.Product, emit Sink) *Result {
	return r.run(ctx, productType, product, nil, emit)
}

// Reprocess re-runs a rejected product. When the seed carries the
// rejected content, the first attempt refines it against the curator
// feedback; otherwise the loop generates from scratch as in Run.
func (r *Runner) Reprocess(ctx context.Context, productType string, product *agent.Product, seed *Seed, emit Sink) *Result {
	return r.run(ctx, productType, product, seed, emit)
}

func (r *Runner) run(ctx context.Context, productType string, product *agent.Product, seed *Seed, emit Sink) (result *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error(ctx, "Pipeline panicked", "product", product.Name, "panic", rec)
			emit(Event{Type: EventError, Payload: map[string]any{
				"message": fmt.Sprintf("Critical pipeline failure: %v", rec),
				"type":    "error",
			}})
			result = nil
		}
	}()

	pl, err := agent.ForType(productType, r.deps)
	if err != nil {
		emit(Event{Type: EventError, Payload: map[string]any{"message": err.Error(), "type": "error"}})
		return nil
	}

	product.Memory = r.memory.FormatForPrompt()
	proven, avoid := r.ledger.Rank(productType, strategyTopN)
	product.Strategies = formatStrategies(proven, avoid)

	emit(Log(fmt.Sprintf("Preparing %s pipeline for '%s'...", pl.Name(), product.Name), "info"))
	if err := pl.Prepare(ctx, product); err != nil {
		emit(Event{Type: EventError, Payload: map[string]any{"message": err.Error(), "type": "error"}})
		return nil
	}

	var (
		best      *content.Generated
		bestScore = float64(-1)
		lastAudit *content.Audit
	)

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		emit(Log(fmt.Sprintf("<b>--- Quality cycle %d/%d ---</b>", attempt, MaxAttempts), "info"))

		var (
			current *content.Generated
			ok      bool
			refined bool
		)
		if attempt == 1 && seed != nil && seed.Previous != nil {
			current, ok = pl.Refine(ctx, product, seed.Previous, seed.audit())
		} else if attempt == 1 || best == nil {
			// A failed first attempt leaves nothing to refine, so later
			// attempts regenerate from scratch.
			current, ok = pl.Generate(ctx, product)
		} else {
			current, ok = pl.Refine(ctx, product, best, lastAudit)
			refined = true
		}
		if !ok {
			emit(Log(fmt.Sprintf("Generation or decoding failed on attempt %d; the model reply may be malformed.", attempt), "warning"))
			continue
		}

		audit := pl.Audit(ctx, product, current)
		emit(Log(fmt.Sprintf("<b>Attempt %d score: %s/100</b>", attempt, formatScore(audit.TotalScore)), "info"))

		if refined && lastAudit != nil {
			if err := r.ledger.Log(ctx, lastAudit, audit, productType); err != nil {
				logger.Warn(ctx, "Failed to record strategy", "err", err)
			}
		}

		if audit.TotalScore > bestScore {
			bestScore = audit.TotalScore
			best = current
		}
		lastAudit = audit

		if audit.TotalScore >= MinScoreTarget {
			break
		}
	}

	if best == nil {
		emit(Log(fmt.Sprintf("<b>Processing failed for '%s'.</b> No valid content after %d attempts.", product.Name, MaxAttempts), "error"))
		return nil
	}

	finalHTML := content.Finalize(ctx, best.HTMLContent(), product.Name)

	seoTitle := best.SEOTitle()
	if seoTitle == "" {
		seoTitle = product.Name
	}

	result = &Result{
		FinalScore:      bestScore,
		FinalContent:    finalHTML,
		SEOTitle:        seoTitle,
		MetaDescription: best.MetaDescription(),
		Raw:             best.Fields,
	}
	emit(Event{Type: EventDone, Payload: map[string]any{
		"final_score":      result.FinalScore,
		"final_content":    result.FinalContent,
		"seo_title":        result.SEOTitle,
		"meta_description": result.MetaDescription,
		"raw_json_content": result.Raw,
	}})
	return result
}

func formatStrategies(proven, avoid string) string {
	return fmt.Sprintf("### ESTRATÉGIAS COMPROVADAS:\n%s\n\n### ESTRATÉGIAS A EVITAR:\n%s", proven, avoid)
}

func formatScore(v float64) string {
	return fmt.Sprintf("%g", v)
}
