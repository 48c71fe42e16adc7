package ledger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaboost/pharmaboost/internal/content"
)

func auditWithFeedback(score float64, feedback ...string) *content.Audit {
	items := make([]any, len(feedback))
	for i, f := range feedback {
		items[i] = f
	}
	return content.NewAudit(map[string]any{
		"total_score": score,
		"breakdown": map[string]any{
			"seo": map[string]any{"feedback": items},
		},
	})
}

func TestLog(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordsScoreChange", func(t *testing.T) {
		l := New(filepath.Join(t.TempDir(), "ledger.json"))

		before := auditWithFeedback(70, "título muito curto", "faltam FAQs")
		after := auditWithFeedback(88, "faltam FAQs")
		require.NoError(t, l.Log(ctx, before, after, "medicine"))

		records := l.read()
		require.Len(t, records, 1)
		assert.Equal(t, "Correção aplicada: 'título muito curto'", records[0].Strategy)
		assert.Equal(t, "medicine", records[0].ProductType)
		assert.Equal(t, float64(18), records[0].ScoreDelta)
		assert.False(t, records[0].Timestamp.IsZero())
	})

	t.Run("SkipsUnchangedScore", func(t *testing.T) {
		l := New(filepath.Join(t.TempDir(), "ledger.json"))
		a := auditWithFeedback(80, "x")
		require.NoError(t, l.Log(ctx, a, a, "medicine"))
		assert.Empty(t, l.read())
	})

	t.Run("GenericStrategyWhenNothingResolved", func(t *testing.T) {
		l := New(filepath.Join(t.TempDir(), "ledger.json"))
		before := auditWithFeedback(70, "faltam FAQs")
		after := auditWithFeedback(75, "faltam FAQs")
		require.NoError(t, l.Log(ctx, before, after, "beauty"))

		records := l.read()
		require.Len(t, records, 1)
		assert.Equal(t, "Otimização geral de SEO.", records[0].Strategy)
	})

	t.Run("AppendsAcrossCalls", func(t *testing.T) {
		l := New(filepath.Join(t.TempDir(), "ledger.json"))
		require.NoError(t, l.Log(ctx, auditWithFeedback(70), auditWithFeedback(80), "medicine"))
		require.NoError(t, l.Log(ctx, auditWithFeedback(80), auditWithFeedback(75), "medicine"))
		assert.Len(t, l.read(), 2)
	})
}

func TestRank(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyLedgerReturnsDefaults", func(t *testing.T) {
		l := New(filepath.Join(t.TempDir(), "ledger.json"))
		good, bad := l.Rank("medicine", 3)
		assert.Equal(t, noSuccessfulStrategies, good)
		assert.Equal(t, noFailedStrategies, bad)
	})

	t.Run("SplitsByDeltaSign", func(t *testing.T) {
		l := New(filepath.Join(t.TempDir(), "ledger.json"))
		require.NoError(t, l.Log(ctx, auditWithFeedback(70, "a"), auditWithFeedback(90), "medicine"))
		require.NoError(t, l.Log(ctx, auditWithFeedback(80, "b"), auditWithFeedback(75), "medicine"))

		good, bad := l.Rank("medicine", 3)
		assert.Contains(t, good, "Melhora de Score: +20")
		assert.Contains(t, bad, "Piora de Score: -5")
	})

	t.Run("FallsBackToAllTypes", func(t *testing.T) {
		l := New(filepath.Join(t.TempDir(), "ledger.json"))
		require.NoError(t, l.Log(ctx, auditWithFeedback(70, "a"), auditWithFeedback(90), "beauty"))

		good, _ := l.Rank("medicine", 3)
		assert.Contains(t, good, "Melhora de Score: +20")
	})

	t.Run("EqualDeltasRankInInsertionOrder", func(t *testing.T) {
		l := New(filepath.Join(t.TempDir(), "ledger.json"))
		require.NoError(t, l.Log(ctx, auditWithFeedback(70, "primeiro ajuste"), auditWithFeedback(80), "medicine"))
		require.NoError(t, l.Log(ctx, auditWithFeedback(60, "segundo ajuste"), auditWithFeedback(70), "medicine"))

		good, _ := l.Rank("medicine", 3)
		first := strings.Index(good, "primeiro ajuste")
		second := strings.Index(good, "segundo ajuste")
		require.GreaterOrEqual(t, first, 0)
		require.GreaterOrEqual(t, second, 0)
		assert.Less(t, first, second)
	})

	t.Run("LimitsToTopN", func(t *testing.T) {
		l := New(filepath.Join(t.TempDir(), "ledger.json"))
		for _, delta := range []float64{5, 10, 15, 20} {
			require.NoError(t, l.Log(ctx, auditWithFeedback(50, "x"), auditWithFeedback(50+delta), "medicine"))
		}

		good, _ := l.Rank("medicine", 2)
		assert.Contains(t, good, "+20")
		assert.Contains(t, good, "+15")
		assert.NotContains(t, good, "+10")
	})

	t.Run("CorruptFileReadsAsEmpty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ledger.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

		good, bad := New(path).Rank("medicine", 3)
		assert.Equal(t, noSuccessfulStrategies, good)
		assert.Equal(t, noFailedStrategies, bad)
	})
}
