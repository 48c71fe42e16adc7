// Package extract pulls structured content out of free-form model output.
package extract

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
)

var fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// JSON extracts a JSON object from model output text. The text may wrap the
// object in surrounding narrative or a fenced code block. Control characters
// other than newline, tab, and carriage return are stripped before parsing,
// since models occasionally emit stray control bytes that break strict
// decoding. Returns (nil, false) when no object can be recovered; never
// returns an error.
func JSON(ctx context.Context, text string) (map[string]any, bool) {
	if text == "" {
		return nil, false
	}

	var jsonStr string
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		jsonStr = m[1]
	} else {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start == -1 || end == -1 || end <= start {
			return nil, false
		}
		jsonStr = text[start : end+1]
	}

	jsonStr = stripControlChars(jsonStr)

	var obj map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &obj); err != nil {
		logger.Error(ctx, "Failed to decode JSON from model output", "err", err)
		return nil, false
	}
	return obj, true
}

func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 31 || r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		return -1
	}, s)
}
