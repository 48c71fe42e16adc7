// Package coordinator fans a batch of catalog rows out over the quality
// loop, bounded by permit pools, and folds the per-row outcomes into a
// single ordered event stream plus an output spreadsheet.
package coordinator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/pharmaboost/pharmaboost/internal/agent"
	"github.com/pharmaboost/pharmaboost/internal/catalog"
	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
	"github.com/pharmaboost/pharmaboost/internal/cmn/pool"
	"github.com/pharmaboost/pharmaboost/internal/content"
	"github.com/pharmaboost/pharmaboost/internal/document"
	"github.com/pharmaboost/pharmaboost/internal/pipeline"
)

// Default permit pool capacities.
const (
	DefaultRowCap      = 50
	DefaultDownloadCap = 10
	DefaultSearchCap   = 5
)

const noContextFallback = "Nenhum contexto adicional fornecido."

// Pools are the shared permit pools bounding batch work.
type Pools struct {
	Rows      *pool.Pool
	Downloads *pool.Pool
	Searches  *pool.Pool
}

// DefaultPools builds pools at the default capacities.
func DefaultPools() Pools {
	return Pools{
		Rows:      pool.New(DefaultRowCap),
		Downloads: pool.New(DefaultDownloadCap),
		Searches:  pool.New(DefaultSearchCap),
	}
}

// Batch is one upload: the items spreadsheet, an optional leaflet catalog
// (its presence selects the medicine pipeline), and optional free-text
// client context.
type Batch struct {
	Items       []byte
	Catalog     []byte
	ContextText string
}

// Summary counts batch outcomes.
type Summary struct {
	Success int
	Skipped int
}

// Coordinator runs batches.
type Coordinator struct {
	runner  *pipeline.Runner
	fetcher *document.Fetcher
	pools   Pools
}

// New creates a coordinator.
func New(runner *pipeline.Runner, fetcher *document.Fetcher, pools Pools) *Coordinator {
	return &Coordinator{runner: runner, fetcher: fetcher, pools: pools}
}

type outcome struct {
	update  *catalog.Update
	skipped bool
}

// Process runs the batch and streams events until the channel closes. Row
// failures become skips; only an unreadable input spreadsheet is fatal,
// reported as an error-severity log with no finished event.
func (c *Coordinator) Process(ctx context.Context, batch Batch) <-chan pipeline.Event {
	events := make(chan pipeline.Event, 64)

	go func() {
		defer close(events)
		emit := func(e pipeline.Event) { events <- e }

		sheet, err := catalog.ParseItems(batch.Items)
		if err != nil {
			logger.Error(ctx, "Fatal batch error", "err", err)
			emit(pipeline.Log(fmt.Sprintf("Fatal batch error: %v", err), "error"))
			return
		}

		medicineMode := batch.Catalog != nil
		var leaflets *catalog.Catalog
		if medicineMode {
			emit(pipeline.Log("<b>Catalog detected.</b> Processing in MEDICINE mode.", "info"))
			leaflets, err = catalog.ParseCatalog(batch.Catalog)
			if err != nil {
				logger.Error(ctx, "Fatal batch error", "err", err)
				emit(pipeline.Log(fmt.Sprintf("Fatal batch error: %v", err), "error"))
				return
			}
		} else {
			emit(pipeline.Log("<b>No catalog provided.</b> Processing in BEAUTY mode.", "info"))
		}

		items := sheet.Items()
		total := len(items)
		emit(pipeline.Log(fmt.Sprintf("Spreadsheet read. %d items to process...", total), "info"))

		var (
			wg         sync.WaitGroup
			dispatched atomic.Int64
		)
		outcomes := make(chan outcome, total)

		for _, item := range items {
			wg.Add(1)
			go func(item catalog.Item) {
				defer wg.Done()
				if err := c.pools.Rows.Acquire(ctx); err != nil {
					logger.Warn(ctx, "Item skipped", "sku", item.SKU, "reason", err)
					emit(pipeline.Log(fmt.Sprintf("<b>[SKU: %s]</b> Skipped. Reason: Batch canceled before processing.", item.SKU), "warning"))
					outcomes <- outcome{skipped: true}
					return
				}
				defer c.pools.Rows.Release()

				current := dispatched.Add(1)
				emit(pipeline.Event{Type: pipeline.EventProgress, Payload: map[string]any{
					"current": current,
					"total":   total,
					"sku":     item.SKU,
				}})

				outcomes <- c.processRow(ctx, item, leaflets, batch.ContextText, medicineMode, emit)
			}(item)
		}
		wg.Wait()
		close(outcomes)

		var summary Summary
		var updates []catalog.Update
		for out := range outcomes {
			if out.skipped {
				summary.Skipped++
				continue
			}
			summary.Success++
			updates = append(updates, *out.update)
		}

		emit(pipeline.Log(fmt.Sprintf("<b>Batch processing finished.</b> Summary: %d succeeded, %d skipped.",
			summary.Success, summary.Skipped), "info"))

		if summary.Success == 0 {
			emit(pipeline.Log("<b>WARNING:</b> No product was processed successfully.", "warning"))
			return
		}

		emit(pipeline.Log("<b>Building the review draft...</b>", "info"))
		sheet.ApplyUpdates(updates)
		data, err := sheet.ExportCSV()
		if err != nil {
			logger.Error(ctx, "Fatal batch error", "err", err)
			emit(pipeline.Log(fmt.Sprintf("Fatal batch error: %v", err), "error"))
			return
		}
		emit(pipeline.Event{Type: pipeline.EventFinished, Payload: map[string]any{
			"filename":  "review_draft.csv",
			"file_data": base64.StdEncoding.EncodeToString(data),
		}})
	}()

	return events
}

// SingleItem is one manually uploaded product. Manual runs are always
// medicine: the caller attaches the leaflet document directly instead of
// going through the catalog.
type SingleItem struct {
	SKU     string
	Name    string
	Leaflet []byte
}

// ProcessSingle runs one product through the medicine pipeline from an
// uploaded leaflet and streams events until the channel closes. The done
// event is retyped to done_manual so clients can tell it apart from
// batch results.
func (c *Coordinator) ProcessSingle(ctx context.Context, item SingleItem) <-chan pipeline.Event {
	events := make(chan pipeline.Event, 64)

	go func() {
		defer close(events)
		emit := func(e pipeline.Event) { events <- e }

		leafletText := c.fetcher.Extract(item.Leaflet)
		if strings.TrimSpace(leafletText) == "" {
			logger.Error(ctx, "Manual run failed", "sku", item.SKU, "reason", "no text extracted from leaflet")
			emit(pipeline.Log("Could not extract text from the leaflet document.", "error"))
			return
		}
		emit(pipeline.Log("Leaflet document read successfully.", "success"))

		product := &agent.Product{Name: item.Name, LeafletText: leafletText}
		sink := func(e pipeline.Event) {
			if e.Type == pipeline.EventDone {
				e.Type = pipeline.EventDoneManual
				e.Payload["sku"] = item.SKU
				e.Payload["product_name"] = item.Name
			}
			emit(e)
		}
		c.runner.Run(ctx, agent.TypeMedicine, product, sink)
	}()

	return events
}

// ReprocessItem is one rejected row sent back with curator feedback.
type ReprocessItem struct {
	SKU        string          `json:"sku"`
	Name       string          `json:"productName"`
	Feedback   string          `json:"feedback"`
	RawContent json.RawMessage `json:"rawJsonContent"`
}

// ReprocessBatch is a set of rejected rows to run again. Mode selection
// follows Batch: a catalog means medicine, none means beauty.
type ReprocessBatch struct {
	Items       []ReprocessItem
	Catalog     []byte
	ContextText string
}

// Reprocess re-runs rejected rows one at a time, seeding each run with
// the rejected content and the curator's feedback. Per-item failures are
// reported on the stream and never abort the batch.
func (c *Coordinator) Reprocess(ctx context.Context, batch ReprocessBatch) <-chan pipeline.Event {
	events := make(chan pipeline.Event, 64)

	go func() {
		defer close(events)
		emit := func(e pipeline.Event) { events <- e }

		medicineMode := batch.Catalog != nil
		var leaflets *catalog.Catalog
		if medicineMode {
			emit(pipeline.Log("<b>Catalog detected.</b> Reprocessing in MEDICINE mode.", "info"))
			var err error
			leaflets, err = catalog.ParseCatalog(batch.Catalog)
			if err != nil {
				logger.Error(ctx, "Fatal reprocess error", "err", err)
				emit(pipeline.Log(fmt.Sprintf("Fatal reprocess error: %v", err), "error"))
				return
			}
		} else {
			emit(pipeline.Log("<b>No catalog provided.</b> Reprocessing in BEAUTY mode.", "info"))
		}

		for _, item := range batch.Items {
			c.reprocessItem(ctx, item, leaflets, batch.ContextText, medicineMode, emit)
		}
	}()

	return events
}

// reprocessItem rebuilds the product for one rejected row and runs a
// seeded quality loop on it.
func (c *Coordinator) reprocessItem(ctx context.Context, item ReprocessItem, leaflets *catalog.Catalog, contextText string, medicineMode bool, emit pipeline.Sink) {
	fail := func(reason string) {
		logger.Warn(ctx, "Reprocessing failed", "sku", item.SKU, "reason", reason)
		emit(pipeline.Log(fmt.Sprintf("<b>[SKU: %s]</b> Reprocessing failed. Reason: %s", item.SKU, reason), "error"))
	}

	product := &agent.Product{Name: item.Name}
	productType := agent.TypeBeauty

	if medicineMode {
		productType = agent.TypeMedicine
		entry, found := leaflets.Lookup(item.SKU)
		if !found {
			fail("SKU not found in catalog.")
			return
		}
		if entry.LeafletLink == "" {
			fail("Leaflet link missing in catalog.")
			return
		}
		leafletText := c.fetcher.LeafletText(ctx, item.SKU, entry.LeafletLink)
		if strings.TrimSpace(leafletText) == "" {
			fail("Could not read the leaflet document.")
			return
		}
		product.LeafletText = leafletText
	} else {
		if contextText == "" {
			contextText = noContextFallback
		}
		product.ContextText = contextText
	}

	seed := &pipeline.Seed{Previous: parseRawContent(item.RawContent), Feedback: item.Feedback}
	sink := func(e pipeline.Event) {
		if e.Type == pipeline.EventDone {
			e.Payload["sku"] = item.SKU
			e.Payload["product_name"] = item.Name
		}
		emit(e)
	}
	c.runner.Reprocess(ctx, productType, product, seed, sink)
}

// parseRawContent decodes the rejected content a client sends back. It
// arrives either as a JSON object or as a string holding one.
func parseRawContent(raw json.RawMessage) *content.Generated {
	if len(raw) == 0 {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil && len(fields) > 0 {
		return content.NewGenerated(fields)
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil && encoded != "" {
		if err := json.Unmarshal([]byte(encoded), &fields); err == nil && len(fields) > 0 {
			return content.NewGenerated(fields)
		}
	}
	return nil
}

// processRow checks the row's preconditions, runs the quality loop, and
// reports the outcome. Any per-row failure is a skip.
func (c *Coordinator) processRow(ctx context.Context, item catalog.Item, leaflets *catalog.Catalog, contextText string, medicineMode bool, emit pipeline.Sink) outcome {
	skip := func(reason string) outcome {
		logger.Warn(ctx, "Item skipped", "sku", item.SKU, "reason", reason)
		emit(pipeline.Log(fmt.Sprintf("<b>[SKU: %s]</b> Skipped. Reason: %s", item.SKU, reason), "warning"))
		return outcome{skipped: true}
	}

	product := &agent.Product{Name: item.Name, Brand: item.Brand}
	productType := agent.TypeBeauty

	if medicineMode {
		productType = agent.TypeMedicine
		entry, found := leaflets.Lookup(item.SKU)
		if !found {
			return skip("SKU not found in catalog.")
		}
		if !entry.Validated {
			return skip("Item not validated in catalog.")
		}
		if entry.LeafletLink == "" {
			return skip("Leaflet link missing in catalog.")
		}
		leafletText := c.fetcher.LeafletText(ctx, item.SKU, entry.LeafletLink)
		if strings.TrimSpace(leafletText) == "" {
			return skip("Could not read the leaflet document.")
		}
		product.LeafletText = leafletText
	} else {
		product.ContextText = beautyContext(item, contextText)
	}

	// Tag done events with the row identity for the frontend.
	sink := func(e pipeline.Event) {
		if e.Type == pipeline.EventDone {
			e.Payload["sku"] = item.SKU
			e.Payload["product_name"] = item.Name
		}
		emit(e)
	}

	result := c.runner.Run(ctx, productType, product, sink)
	if result == nil {
		return outcome{skipped: true}
	}
	return outcome{update: &catalog.Update{
		SKU:             item.SKU,
		SEOTitle:        result.SEOTitle,
		MetaDescription: result.MetaDescription,
		HTMLContent:     result.FinalContent,
	}}
}

// beautyContext builds the enriched prompt context from the row's current
// description and the client-supplied context file. Portuguese because it
// is injected into the prompts.
func beautyContext(item catalog.Item, contextText string) string {
	if contextText == "" {
		contextText = noContextFallback
	}
	return fmt.Sprintf(`- Nome do Produto: %s
- Marca: %s
- Informações Adicionais: %s
- Contexto Geral do Cliente: %s`,
		item.Name, item.Brand, stripHTML(item.Description), contextText)
}

// stripHTML reduces an HTML fragment to its visible text.
func stripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var parts []string
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, " ")
}
