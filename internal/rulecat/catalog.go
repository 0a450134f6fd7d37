package rulecat

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"

	"github.com/park285/gomoku-kakao-bot/internal/gomoku"
)

//go:embed rules.yaml
var defaultFiles embed.FS

var ErrRuleNotFound = errors.New("rule not found")

type file struct {
	Rules []gomoku.RuleSet `yaml:"rules"`
}

// Catalog holds the rule sets matches may be played under. Embedded defaults
// load first; an override file may replace or add rules by id.
type Catalog struct {
	mu    sync.RWMutex
	rules map[int64]gomoku.RuleSet
}

// New loads the embedded rules and then applies overridePath if provided.
// Every rule must build a rule engine, so unsupported variants are rejected
// here rather than when a match starts.
func New(overridePath string) (*Catalog, error) {
	c := &Catalog{rules: make(map[int64]gomoku.RuleSet)}
	raw, err := fs.ReadFile(defaultFiles, "rules.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded rules: %w", err)
	}
	if err := c.apply(raw, "rules.yaml"); err != nil {
		return nil, err
	}
	if p := strings.TrimSpace(overridePath); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read rules override: %w", err)
		}
		if err := c.apply(b, p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) apply(b []byte, name string) error {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	seen := make(map[int64]bool, len(f.Rules))
	for _, rs := range f.Rules {
		if rs.ID <= 0 {
			return fmt.Errorf("%s: rule id must be positive, got %d", name, rs.ID)
		}
		if seen[rs.ID] {
			return fmt.Errorf("%s: duplicate rule id %d", name, rs.ID)
		}
		seen[rs.ID] = true
		if rs.Opening == "" {
			rs.Opening = gomoku.OpeningNone
		}
		if _, err := gomoku.RulesFor(rs); err != nil {
			return fmt.Errorf("%s: rule %d: %w", name, rs.ID, err)
		}
	}
	c.mu.Lock()
	for _, rs := range f.Rules {
		if rs.Opening == "" {
			rs.Opening = gomoku.OpeningNone
		}
		c.rules[rs.ID] = rs
	}
	c.mu.Unlock()
	return nil
}

// Rule returns the rule set with the given id.
func (c *Catalog) Rule(id int64) (gomoku.RuleSet, error) {
	c.mu.RLock()
	rs, ok := c.rules[id]
	c.mu.RUnlock()
	if !ok {
		return gomoku.RuleSet{}, fmt.Errorf("%w: %d", ErrRuleNotFound, id)
	}
	return rs, nil
}

// ListRules returns every rule ordered by id.
func (c *Catalog) ListRules() []gomoku.RuleSet {
	c.mu.RLock()
	out := make([]gomoku.RuleSet, 0, len(c.rules))
	for _, rs := range c.rules {
		out = append(out, rs)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
