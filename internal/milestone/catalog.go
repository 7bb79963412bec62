package milestone

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

const FallbackIcon = "🏆"

type Milestone struct {
	Name     string `yaml:"-" json:"-"`
	ID       string `yaml:"id" json:"-"`
	ImageKey string `yaml:"image_key" json:"image_key"`
	Icon     string `yaml:"icon" json:"icon"`
}

// Catalog is the fixed set of milestones, immutable after load.
type Catalog struct {
	byName map[string]Milestone
	byID   map[string]Milestone
	order  []string
}

func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	entries := map[string]Milestone{}
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(entries)
}

func NewCatalog(entries map[string]Milestone) (*Catalog, error) {
	c := &Catalog{
		byName: make(map[string]Milestone, len(entries)),
		byID:   make(map[string]Milestone, len(entries)),
	}
	for name, m := range entries {
		m.Name = name
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" || m.ImageKey == "" {
			return nil, fmt.Errorf("catalog entry %s: id and image_key are required", name)
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("catalog entry %s: duplicate id", name)
		}
		c.byName[name] = m
		c.byID[m.ID] = m
		c.order = append(c.order, name)
	}
	sort.Strings(c.order)
	return c, nil
}

func (c *Catalog) Lookup(id string) (Milestone, bool) {
	m, ok := c.byID[id]
	return m, ok
}

func (c *Catalog) ByName(name string) (Milestone, bool) {
	m, ok := c.byName[name]
	return m, ok
}

// All returns the milestones ordered by symbolic name.
func (c *Catalog) All() []Milestone {
	out := make([]Milestone, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

func (c *Catalog) Len() int { return len(c.order) }

// IconFor returns the catalog icon or the generic fallback for unknown ids.
func (c *Catalog) IconFor(id string) string {
	if m, ok := c.byID[id]; ok && m.Icon != "" {
		return m.Icon
	}
	return FallbackIcon
}
