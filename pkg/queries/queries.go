// Package queries loads the saved GROQ queries a watcher polls.
package queries

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SavedQuery is one named GROQ query with optional parameters.
type SavedQuery struct {
	ID      string         `json:"id" yaml:"id"`
	Name    string         `json:"name" yaml:"name"`
	Query   string         `json:"query" yaml:"query"`
	Params  map[string]any `json:"params" yaml:"params"`
	Enabled *bool          `json:"enabled" yaml:"enabled"`
}

// IsEnabled reports whether the query should be polled. Queries are enabled unless set otherwise.
func (q SavedQuery) IsEnabled() bool {
	return q.Enabled == nil || *q.Enabled
}

type registryFile struct {
	Queries []SavedQuery `json:"queries" yaml:"queries"`
}

// Registry is an immutable, validated set of saved queries.
type Registry struct {
	queries []SavedQuery
	idx     map[string]SavedQuery
}

var paramNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadRegistry reads a YAML or JSON queries file.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("queries file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open queries file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read queries file: %w", err)
	}

	return ParseRegistry(raw, filepath.Ext(path))
}

// ParseRegistry decodes and validates registry data. ext selects the decoder (".yaml", ".yml",
// ".json"); an empty ext tries each in turn.
func ParseRegistry(data []byte, ext string) (*Registry, error) {
	file, err := decodeRegistry(data, ext)
	if err != nil {
		return nil, err
	}
	if len(file.Queries) == 0 {
		return nil, errors.New("queries file contains no queries entries")
	}

	reg := &Registry{
		queries: make([]SavedQuery, 0, len(file.Queries)),
		idx:     make(map[string]SavedQuery, len(file.Queries)),
	}
	for i := range file.Queries {
		q := sanitizeQuery(file.Queries[i])
		if err := validateQuery(q); err != nil {
			return nil, fmt.Errorf("query[%d]: %w", i, err)
		}
		if _, exists := reg.idx[q.ID]; exists {
			return nil, fmt.Errorf("duplicate query id %q", q.ID)
		}
		reg.queries = append(reg.queries, q)
		reg.idx[q.ID] = q
	}
	return reg, nil
}

// All returns every query in file order.
func (r *Registry) All() []SavedQuery {
	if r == nil || len(r.queries) == 0 {
		return nil
	}
	out := make([]SavedQuery, len(r.queries))
	copy(out, r.queries)
	return out
}

// Enabled returns the queries that should be polled, in file order.
func (r *Registry) Enabled() []SavedQuery {
	if r == nil {
		return nil
	}
	var out []SavedQuery
	for _, q := range r.queries {
		if q.IsEnabled() {
			out = append(out, q)
		}
	}
	return out
}

// ByID returns the query with the given id, if loaded.
func (r *Registry) ByID(id string) (SavedQuery, bool) {
	id = strings.TrimSpace(id)
	if r == nil || id == "" {
		return SavedQuery{}, false
	}
	q, ok := r.idx[id]
	return q, ok
}

type unmarshalFn func([]byte, any) error

func decodeRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	var lastErr error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var file registryFile
		if err := d.fn(data, &file); err != nil {
			lastErr = fmt.Errorf("decode %s queries: %w", d.name, err)
			continue
		}
		return file, nil
	}
	if lastErr != nil {
		return registryFile{}, lastErr
	}
	return registryFile{}, errors.New("queries file format not recognized (expected YAML or JSON)")
}

func sanitizeQuery(q SavedQuery) SavedQuery {
	q.ID = strings.TrimSpace(q.ID)
	q.Name = strings.TrimSpace(q.Name)
	q.Query = strings.TrimSpace(q.Query)
	if q.Name == "" {
		q.Name = q.ID
	}
	if len(q.Params) == 0 {
		q.Params = nil
	}
	return q
}

func validateQuery(q SavedQuery) error {
	if q.ID == "" {
		return errors.New("id is required")
	}
	if q.Query == "" {
		return fmt.Errorf("query is required for %q", q.ID)
	}
	for name, val := range q.Params {
		if !paramNamePattern.MatchString(name) {
			return fmt.Errorf("invalid param name %q for %q", name, q.ID)
		}
		if _, err := json.Marshal(val); err != nil {
			return fmt.Errorf("param %q for %q is not JSON encodable: %w", name, q.ID, err)
		}
	}
	return nil
}
