// Package content defines the structured page content produced by the
// generation agents and the HTML finalization applied before publishing.
package content

import "encoding/json"

// Field names used in the generated page JSON.
const (
	FieldSEOTitle        = "seo_title"
	FieldMetaDescription = "meta_description"
	FieldHTMLContent     = "html_content"
)

// Generated is the page content produced by a generator or refiner run.
// It is backed by the raw extracted object so fields beyond the known
// three survive the round trip back into prompts.
type Generated struct {
	Fields map[string]any
}

// NewGenerated wraps an extracted object as page content.
func NewGenerated(fields map[string]any) *Generated {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Generated{Fields: fields}
}

func (g *Generated) stringField(key string) string {
	if v, ok := g.Fields[key].(string); ok {
		return v
	}
	return ""
}

// SEOTitle returns the generated SEO title.
func (g *Generated) SEOTitle() string { return g.stringField(FieldSEOTitle) }

// MetaDescription returns the generated meta description.
func (g *Generated) MetaDescription() string { return g.stringField(FieldMetaDescription) }

// HTMLContent returns the generated HTML body.
func (g *Generated) HTMLContent() string { return g.stringField(FieldHTMLContent) }

// SetHTMLContent replaces the HTML body.
func (g *Generated) SetHTMLContent(html string) { g.Fields[FieldHTMLContent] = html }

// JSON renders the content as a compact JSON string for prompt embedding.
func (g *Generated) JSON() string {
	data, err := json.Marshal(g.Fields)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Audit is the auditor's verdict on a generated page.
type Audit struct {
	TotalScore float64
	Fields     map[string]any
}

// NewAudit wraps an extracted auditor object. A missing or non-numeric
// total_score reads as zero.
func NewAudit(fields map[string]any) *Audit {
	if fields == nil {
		fields = map[string]any{}
	}
	score, _ := fields["total_score"].(float64)
	return &Audit{TotalScore: score, Fields: fields}
}

// JSON renders the audit as a compact JSON string for prompt embedding.
func (a *Audit) JSON() string {
	data, err := json.Marshal(a.Fields)
	if err != nil {
		return "{}"
	}
	return string(data)
}
