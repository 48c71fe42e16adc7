package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("BareObject", func(t *testing.T) {
		obj, ok := JSON(ctx, `{"seo_title": "Aspirin 100mg", "total_score": 88}`)
		require.True(t, ok)
		assert.Equal(t, "Aspirin 100mg", obj["seo_title"])
		assert.Equal(t, float64(88), obj["total_score"])
	})

	t.Run("FencedBlock", func(t *testing.T) {
		text := "Here is the result:\n```json\n{\"seo_title\": \"Aspirin\"}\n```\nHope it helps!"
		obj, ok := JSON(ctx, text)
		require.True(t, ok)
		assert.Equal(t, "Aspirin", obj["seo_title"])
	})

	t.Run("IdempotentAcrossFencing", func(t *testing.T) {
		raw := `{"a": 1, "b": {"c": [1, 2, 3]}}`
		bare, ok := JSON(ctx, raw)
		require.True(t, ok)
		fenced, ok := JSON(ctx, "```json\n"+raw+"\n```")
		require.True(t, ok)
		assert.Equal(t, bare, fenced)
	})

	t.Run("SurroundingNarrative", func(t *testing.T) {
		obj, ok := JSON(ctx, `Sure! The content is {"html_content": "<p>x</p>"} as requested.`)
		require.True(t, ok)
		assert.Equal(t, "<p>x</p>", obj["html_content"])
	})

	t.Run("StripsControlCharacters", func(t *testing.T) {
		obj, ok := JSON(ctx, "{\"a\": \"x\x07y\", \n\"b\": 2}")
		require.True(t, ok)
		assert.Equal(t, "xy", obj["a"])
	})

	t.Run("PreservesNewlinesAndTabs", func(t *testing.T) {
		obj, ok := JSON(ctx, "{\n\t\"a\": 1\n}")
		require.True(t, ok)
		assert.Equal(t, float64(1), obj["a"])
	})

	t.Run("NoDelimiters", func(t *testing.T) {
		_, ok := JSON(ctx, "no json here")
		assert.False(t, ok)
	})

	t.Run("Empty", func(t *testing.T) {
		_, ok := JSON(ctx, "")
		assert.False(t, ok)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		_, ok := JSON(ctx, `{"unterminated": `)
		assert.False(t, ok)
	})

	t.Run("ReversedBraces", func(t *testing.T) {
		_, ok := JSON(ctx, `} nothing {`)
		assert.False(t, ok)
	})
}
