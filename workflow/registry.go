// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk shape of a template document, mirroring
// modelregistry's catalogFile / the teacher's AgentConfigFile layout.
type templateFile struct {
	APIVersion string             `yaml:"apiVersion"`
	Kind       string             `yaml:"kind"`
	Templates  []WorkflowTemplate `yaml:"templates"`
}

// Registry is the hot-reloadable set of WorkflowTemplates, keyed by id.
// order preserves registration order so evaluate() can hand rank() a
// stable tiebreak sequence per spec.md §4.7.4 ("equal relevance scores
// retain insertion order").
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*WorkflowTemplate
	order     []string
	version   uint64 // bumped on every mutation; invalidates the evaluation cache
}

// NewRegistry returns an empty template registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*WorkflowTemplate)}
}

// Load reads every *.yaml/*.yml file directly inside dir and merges their
// templates into the registry, in filename order. A later file overrides
// an earlier one with the same template id.
func (r *Registry) Load(dir string) error {
	files, err := findYAMLFiles(dir)
	if err != nil {
		return fmt.Errorf("workflow: scan template dir: %w", err)
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("workflow: read %s: %w", path, err)
		}
		var doc templateFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("workflow: parse %s: %w", path, err)
		}
		for _, t := range doc.Templates {
			t := t
			t.DurationEstimate = time.Duration(t.DurationMinutes) * time.Minute
			r.AddTemplate(&t)
		}
	}
	return nil
}

// AddTemplate registers or replaces a template. Replacing an existing id
// keeps its original position in insertion order.
func (r *Registry) AddTemplate(t *WorkflowTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.DurationEstimate == 0 && t.DurationMinutes > 0 {
		t.DurationEstimate = time.Duration(t.DurationMinutes) * time.Minute
	}
	if _, exists := r.templates[t.ID]; !exists {
		r.order = append(r.order, t.ID)
	}
	r.templates[t.ID] = t
	r.version++
}

// RemoveTemplate deletes a template by id. Returns false if it was not
// registered.
func (r *Registry) RemoveTemplate(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[id]; !ok {
		return false
	}
	delete(r.templates, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.version++
	return true
}

// ListTemplates returns every registered template in insertion order.
func (r *Registry) ListTemplates() []*WorkflowTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*WorkflowTemplate, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.templates[id])
	}
	return out
}

// Get returns one template by id.
func (r *Registry) Get(id string) (*WorkflowTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	return t, ok
}

func (r *Registry) snapshotVersion() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

func findYAMLFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != dir {
			return filepath.SkipDir
		}
		if !info.IsDir() {
			ext := strings.ToLower(filepath.Ext(path))
			if ext == ".yaml" || ext == ".yml" {
				files = append(files, path)
			}
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
