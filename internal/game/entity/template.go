package entity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Template defines a reusable NPC archetype loaded from YAML.
type Template struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	MaxHealth   int    `yaml:"max_health"`
	MinDamage   int    `yaml:"min_damage"`
	MaxDamage   int    `yaml:"max_damage"`
	// Hostile NPCs initiate attacks on players in their room.
	Hostile bool `yaml:"hostile"`
	// Passive NPCs never attack even when registered in combat.
	Passive bool `yaml:"passive"`
	// Merchant marks the merchant variant: never hostile, always passive.
	Merchant bool `yaml:"merchant"`
	// AttackTexts are fmt templates with one %s verb for the target label,
	// e.g. "The goblin slashes wildly at %s".
	AttackTexts []string `yaml:"attack_texts"`
}

// Validate checks that the template satisfies basic invariants.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty, MaxHealth >= 1,
// 0 <= MinDamage <= MaxDamage, and every attack text carries a target verb;
// returns an error on the first violation otherwise.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("npc template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("npc template %q: name must not be empty", t.ID)
	}
	if t.MaxHealth < 1 {
		return fmt.Errorf("npc template %q: max_health must be >= 1", t.ID)
	}
	if t.MinDamage < 0 {
		return fmt.Errorf("npc template %q: min_damage must be >= 0", t.ID)
	}
	if t.MinDamage > t.MaxDamage {
		return fmt.Errorf("npc template %q: min_damage (%d) must be <= max_damage (%d)", t.ID, t.MinDamage, t.MaxDamage)
	}
	for i, text := range t.AttackTexts {
		if !strings.Contains(text, "%s") {
			return fmt.Errorf("npc template %q: attack_texts[%d] must contain a %%s target verb", t.ID, i)
		}
	}
	if t.Merchant && t.Hostile {
		return fmt.Errorf("npc template %q: merchant templates must not be hostile", t.ID)
	}
	return nil
}

// LoadTemplateFromBytes parses a single NPC template from raw YAML bytes.
//
// Precondition: data must be valid YAML for a single Template.
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads all *.yaml files in dir and returns the parsed templates.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse or
// validate failure; on error, the partial result is discarded.
func LoadTemplates(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading npc dir %q: %w", dir, err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}

// Registry provides thread-safe lookup of NPC templates by ID.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry creates an empty template Registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Register adds tmpl to the registry, replacing any existing entry.
//
// Precondition: tmpl must be non-nil with a non-empty ID.
func (r *Registry) Register(tmpl *Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[tmpl.ID] = tmpl
}

// Get returns the template with the given ID.
//
// Postcondition: Returns (tmpl, true) if found, or (nil, false) otherwise.
func (r *Registry) Get(id string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tmpl, ok := r.templates[id]
	return tmpl, ok
}

// Count returns the number of registered templates.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}
