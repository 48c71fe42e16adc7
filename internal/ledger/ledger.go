// Package ledger persists the outcome of refinement attempts so future
// runs can be steered by which editing strategies actually moved audit
// scores. The ledger is a JSON file shared between processes; a file lock
// guards the read-modify-write cycle.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
	"github.com/pharmaboost/pharmaboost/internal/content"
)

// Default prompt blocks when no history exists. Portuguese because they
// are injected into the pt-BR prompts.
const (
	noSuccessfulStrategies = "Nenhuma estratégia de sucesso registrada. Usando conhecimento geral."
	noFailedStrategies     = "Nenhuma estratégia de falha registrada."
)

// Record is one refinement outcome.
type Record struct {
	Strategy    string    `json:"strategy"`
	ProductType string    `json:"product_type"`
	ScoreBefore float64   `json:"score_before"`
	ScoreAfter  float64   `json:"score_after"`
	ScoreDelta  float64   `json:"score_delta"`
	Timestamp   time.Time `json:"timestamp"`
}

// Ledger is the append-only strategy history.
type Ledger struct {
	path string
	lock *flock.Flock
}

// New creates a ledger backed by the JSON file at path.
func New(path string) *Ledger {
	return &Ledger{path: path, lock: flock.New(path + ".lock")}
}

// read returns the stored records. A missing or corrupt file reads as an
// empty history.
func (l *Ledger) read() []Record {
	data, err := os.ReadFile(l.path)
	if err != nil || len(data) == 0 {
		return []Record{}
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return []Record{}
	}
	return records
}

func (l *Ledger) write(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode strategy ledger: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write strategy ledger: %w", err)
	}
	return nil
}

// Log appends a record for a refinement that changed the score. Unchanged
// scores are not recorded.
func (l *Ledger) Log(ctx context.Context, before, after *content.Audit, productType string) error {
	delta := after.TotalScore - before.TotalScore
	if delta == 0 {
		return nil
	}

	record := Record{
		Strategy:    deriveStrategy(before, after),
		ProductType: productType,
		ScoreBefore: before.TotalScore,
		ScoreAfter:  after.TotalScore,
		ScoreDelta:  delta,
		Timestamp:   time.Now().UTC(),
	}

	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock strategy ledger: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	records := append(l.read(), record)
	if err := l.write(records); err != nil {
		return err
	}
	logger.Info(ctx, "Strategy recorded", "strategy", record.Strategy, "delta", delta)
	return nil
}

// Rank returns prompt-ready summaries of the best and worst strategies
// for a product type, at most topN each. Records for other product types
// are consulted only when the type has no history of its own.
func (l *Ledger) Rank(productType string, topN int) (successful, failed string) {
	if err := l.lock.RLock(); err != nil {
		return noSuccessfulStrategies, noFailedStrategies
	}
	records := l.read()
	_ = l.lock.Unlock()

	if len(records) == 0 {
		return noSuccessfulStrategies, noFailedStrategies
	}

	relevant := make([]Record, 0, len(records))
	for _, r := range records {
		if r.ProductType == productType {
			relevant = append(relevant, r)
		}
	}
	if len(relevant) == 0 {
		relevant = records
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].ScoreDelta > relevant[j].ScoreDelta
	})

	var good, bad []string
	for i, r := range relevant {
		if i < topN && r.ScoreDelta > 0 {
			good = append(good, fmt.Sprintf("- %s (Melhora de Score: +%s)", r.Strategy, formatScore(r.ScoreDelta)))
		}
	}
	for _, r := range relevant {
		if r.ScoreDelta <= 0 {
			bad = append(bad, fmt.Sprintf("- %s (Piora de Score: %s)", r.Strategy, formatScore(r.ScoreDelta)))
			if len(bad) == topN {
				break
			}
		}
	}

	successful = joinOrDefault(good, noSuccessfulStrategies)
	failed = joinOrDefault(bad, noFailedStrategies)
	return successful, failed
}

// deriveStrategy names the refinement by the feedback point it resolved:
// any feedback present before the refinement and absent after it. Without
// a resolved point the record is a generic optimization.
func deriveStrategy(before, after *content.Audit) string {
	beforeSet := feedbackSet(before)
	afterSet := feedbackSet(after)

	resolved := []string{}
	for fb := range beforeSet {
		if _, still := afterSet[fb]; !still {
			resolved = append(resolved, fb)
		}
	}
	if len(resolved) == 0 {
		return "Otimização geral de SEO."
	}
	sort.Strings(resolved)
	return fmt.Sprintf("Correção aplicada: '%s'", resolved[0])
}

func feedbackSet(a *content.Audit) map[string]struct{} {
	set := map[string]struct{}{}
	breakdown, _ := a.Fields["breakdown"].(map[string]any)
	for _, category := range breakdown {
		cat, ok := category.(map[string]any)
		if !ok {
			continue
		}
		items, _ := cat["feedback"].([]any)
		for _, item := range items {
			if s, isStr := item.(string); isStr {
				set[s] = struct{}{}
			}
		}
	}
	return set
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinOrDefault(lines []string, fallback string) string {
	if len(lines) == 0 {
		return fallback
	}
	return strings.Join(lines, "\n")
}
