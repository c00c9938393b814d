// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package modelregistry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of a model catalog document, mirroring
// the teacher's agent_config.go YAML document layout.
type catalogFile struct {
	APIVersion string          `yaml:"apiVersion"`
	Kind       string          `yaml:"kind"`
	Models     []ModelMetadata `yaml:"models"`
}

// Catalog is the static, hot-reloadable set of ModelMetadata, keyed by
// model id. It is loaded from one or more YAML documents the way the
// teacher's AgentRegistry loads AgentConfigFile documents from a
// directory of YAML files.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]ModelMetadata
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{models: make(map[string]ModelMetadata)}
}

// Load reads every *.yaml/*.yml file directly inside dir and merges their
// models into the catalog. A later file overrides an earlier one with the
// same model id.
func (c *Catalog) Load(dir string) error {
	files, err := findYAMLFiles(dir)
	if err != nil {
		return fmt.Errorf("modelregistry: scan catalog dir: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("modelregistry: read %s: %w", path, err)
		}
		var doc catalogFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("modelregistry: parse %s: %w", path, err)
		}
		for _, m := range doc.Models {
			c.models[m.ModelID] = m
		}
	}
	return nil
}

// LoadModels registers models directly, bypassing the filesystem — used by
// tests and by callers embedding a catalog without a config directory.
func (c *Catalog) LoadModels(models ...ModelMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range models {
		c.models[m.ModelID] = m
	}
}

// Get returns a model's metadata by id.
func (c *Catalog) Get(modelID string) (ModelMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[modelID]
	return m, ok
}

// List returns every registered model, sorted by id for determinism.
func (c *Catalog) List() []ModelMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ModelMetadata, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out
}

// ListByCapability returns every enabled model carrying tag.
func (c *Catalog) ListByCapability(tag string) []ModelMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []ModelMetadata
	for _, m := range c.models {
		if !m.Enabled {
			continue
		}
		for _, t := range m.CapabilityTags {
			if t == tag {
				out = append(out, m)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out
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
	return files, err
}
