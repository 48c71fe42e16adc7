package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
	"github.com/pharmaboost/pharmaboost/internal/content"
)

// Fallback context strings are in Portuguese because they are injected
// verbatim into the pt-BR prompts.
const (
	noQuestionsFound = "Nenhuma pergunta frequente relevante encontrada na pesquisa."
	noTopicsFound    = "Nenhuma palavra-chave relacionada encontrada na pesquisa."
)

type beautyPipeline struct {
	runner
}

func (b *beautyPipeline) Name() string { return TypeBeauty }

// Prepare derives the base name and gathers FAQ and keyword research from
// the search backend. Both searches degrade to fallback text; beauty
// products carry no hard preconditions.
func (b *beautyPipeline) Prepare(ctx context.Context, p *Product) error {
	p.BaseName = BaseName(p.Name, p.Brand)
	p.FAQContext = b.searchQuestions(ctx, p.BaseName)
	p.KeywordContext = b.searchTopics(ctx, p.BaseName)
	return nil
}

// searchQuestions collects people-also-ask style questions across three
// query variations, deduplicated in order.
func (b *beautyPipeline) searchQuestions(ctx context.Context, baseName string) string {
	if err := b.deps.SearchPool.Acquire(ctx); err != nil {
		logger.Warn(ctx, "Could not acquire search permit", "err", err)
		return noQuestionsFound
	}
	results := b.deps.Search.Search(ctx, []string{
		fmt.Sprintf("perguntas frequentes sobre %s", baseName),
		fmt.Sprintf("como usar %s", baseName),
		fmt.Sprintf("para que serve %s", baseName),
	})
	b.deps.SearchPool.Release()

	questions := []string{}
	for _, res := range results {
		questions = append(questions, res.RelatedQuestions...)
	}
	questions = lo.Uniq(lo.Filter(questions, func(q string, _ int) bool { return q != "" }))
	if len(questions) == 0 {
		logger.Warn(ctx, "No related questions found", "query", baseName)
		return noQuestionsFound
	}

	lines := lo.Map(questions, func(q string, _ int) string { return "- " + q })
	return strings.Join(lines, "\n")
}

// searchTopics collects related search topics for keyword context.
func (b *beautyPipeline) searchTopics(ctx context.Context, baseName string) string {
	if err := b.deps.SearchPool.Acquire(ctx); err != nil {
		logger.Warn(ctx, "Could not acquire search permit", "err", err)
		return noTopicsFound
	}
	results := b.deps.Search.Search(ctx, []string{fmt.Sprintf("tópicos sobre %s", baseName)})
	b.deps.SearchPool.Release()

	if len(results) == 0 {
		return noTopicsFound
	}
	topics := lo.Filter(results[0].RelatedSearches, func(s string, _ int) bool { return s != "" })
	if len(topics) == 0 {
		logger.Warn(ctx, "No related topics found", "query", baseName)
		return noTopicsFound
	}
	return strings.Join(topics, ", ")
}

func (b *beautyPipeline) Generate(ctx context.Context, p *Product) (*content.Generated, bool) {
	obj, ok := b.runJSON(ctx, "beauty_generator", p.vars(), 120*time.Second)
	if !ok {
		return nil, false
	}
	return content.NewGenerated(obj), true
}

func (b *beautyPipeline) Audit(ctx context.Context, p *Product, c *content.Generated) *content.Audit {
	vars := p.vars()
	vars["page_json"] = c.JSON()
	obj, ok := b.runJSON(ctx, "beauty_auditor", vars, 180*time.Second)
	if !ok {
		logger.Warn(ctx, "Audit failed; scoring zero", "product", p.Name)
		return content.NewAudit(map[string]any{"total_score": float64(0), "feedback": "audit failed"})
	}
	return content.NewAudit(obj)
}

func (b *beautyPipeline) Refine(ctx context.Context, p *Product, prev *content.Generated, audit *content.Audit) (*content.Generated, bool) {
	vars := p.vars()
	vars["previous_json"] = prev.JSON()
	vars["previous_audit"] = audit.JSON()
	obj, ok := b.runJSON(ctx, "beauty_refiner", vars, 120*time.Second)
	if !ok {
		logger.Warn(ctx, "Refinement failed; keeping previous content", "product", p.Name)
		return prev, true
	}
	return content.NewGenerated(obj), true
}
