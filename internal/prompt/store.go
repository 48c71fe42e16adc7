// Package prompt loads and renders the prompt templates used by the
// content agents. Templates live as .yaml files in a prompt directory; the
// file name (without extension) is the template name and the file must
// contain a top-level "template" key.
package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/goccy/go-yaml"
)

// ErrTemplateNotFound is returned when a named template does not exist.
var ErrTemplateNotFound = errors.New("prompt template not found")

// Store holds all parsed prompt templates.
type Store struct {
	templates map[string]*template.Template
}

type promptFile struct {
	Template string `yaml:"template"`
}

// NewStore loads every .yaml/.yml file under dir. A missing directory or a
// malformed template file is a startup-class configuration error.
func NewStore(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt directory %s: %w", dir, err)
	}

	templates := make(map[string]*template.Template)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ext)
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt %s: %w", entry.Name(), err)
		}

		var pf promptFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return nil, fmt.Errorf("invalid prompt file %s: %w", entry.Name(), err)
		}
		if pf.Template == "" {
			return nil, fmt.Errorf("prompt file %s is missing the template key", entry.Name())
		}

		tmpl, err := template.New(name).Option("missingkey=zero").Parse(pf.Template)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt template %s: %w", name, err)
		}
		templates[name] = tmpl
	}

	return &Store{templates: templates}, nil
}

// Names returns the loaded template names.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	return names
}

// Render renders the named template with the given variables.
func (s *Store) Render(name string, vars map[string]any) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
