// Package memory keeps the short history of human-approved content used
// as few-shot examples in prompts. The history is a JSON file capped at
// the most recent successes; a file lock guards concurrent writers.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gofrs/flock"

	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
)

const (
	// maxEntries bounds the prompt context cost of the memory block.
	maxEntries = 3
	// snippetLen keeps only enough of each HTML body to show the
	// transformation, not the whole page.
	snippetLen = 800
)

const noHistory = "Nenhum histórico recente disponível. Siga as regras base rigorosamente."

// Entry is one approved product.
type Entry struct {
	Product         string `json:"product"`
	OriginalSnippet string `json:"original_text_snippet"`
	ApprovedSnippet string `json:"approved_text_snippet"`
}

// Store is the success memory file.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore creates a store backed by the JSON file at path.
func NewStore(path string) *Store {
	return &Store{path: path, lock: flock.New(path + ".lock")}
}

func (s *Store) read() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil || len(data) == 0 {
		return []Entry{}
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return []Entry{}
	}
	return entries
}

// RecordSuccess stores an approved product. A product already in memory is
// skipped to keep the examples diverse; beyond capacity the oldest entry
// is evicted.
func (s *Store) RecordSuccess(ctx context.Context, product, originalHTML, approvedHTML string) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock success memory: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	entries := s.read()
	for _, e := range entries {
		if e.Product == product {
			return nil
		}
	}

	entries = append(entries, Entry{
		Product:         product,
		OriginalSnippet: snippet(originalHTML),
		ApprovedSnippet: snippet(approvedHTML),
	})
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode success memory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write success memory: %w", err)
	}
	logger.Info(ctx, "Approved content recorded in success memory", "product", product, "entries", len(entries))
	return nil
}

// FormatForPrompt renders the memory as the few-shot block injected into
// generation prompts. The block is Portuguese, matching the prompts.
func (s *Store) FormatForPrompt() string {
	entries := s.read()
	if len(entries) == 0 {
		return noHistory
	}

	out := "### EXEMPLOS RECENTES DE SUCESSO (APRENDA COM ELES E REPLIQUE A ABORDAGEM):\n"
	out += "Note como os termos médicos originais foram camuflados no texto aprovado:\n\n"
	for _, e := range entries {
		out += fmt.Sprintf("- Produto: %s\n", e.Product)
		out += fmt.Sprintf("  Trecho Original: %s\n", e.OriginalSnippet)
		out += fmt.Sprintf("  Como ficou Aprovado (Seguro): %s\n\n", e.ApprovedSnippet)
	}
	return out
}

// snippet truncates on rune boundaries and marks the cut.
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLen {
		return text + "..."
	}
	return string(runes[:snippetLen]) + "..."
}
