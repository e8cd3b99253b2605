package catalog

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog marks a malformed catalog document.
var ErrInvalidCatalog = errors.New("invalid work catalog")

// Document is the on-disk catalog schema. JSON documents are accepted as-is
// since JSON is a subset of YAML.
type Document struct {
	Root        string              `yaml:"root" json:"root"`
	Groups      map[string][]string `yaml:"groups" json:"groups"`
	ShowInTable []string            `yaml:"show_in_table,omitempty" json:"show_in_table,omitempty"`
}

// Catalog is the immutable universe of leaf tasks and named aggregates.
type Catalog struct {
	root        string
	groups      map[string][]string
	leaves      []string
	leafSet     TaskSet
	showInTable []string
}

// Load reads and validates a catalog document from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse: %w", ErrInvalidCatalog, err)
	}
	return New(doc)
}

// New validates doc and builds a Catalog. The root aggregate's membership,
// minus the root name itself, is the leaf-task universe.
func New(doc Document) (*Catalog, error) {
	root := strings.TrimSpace(doc.Root)
	if root == "" {
		return nil, fmt.Errorf("%w: root must be set", ErrInvalidCatalog)
	}
	if err := validateToken(root); err != nil {
		return nil, fmt.Errorf("%w: root: %w", ErrInvalidCatalog, err)
	}
	members, ok := doc.Groups[root]
	if !ok {
		return nil, fmt.Errorf("%w: root aggregate %q missing from groups", ErrInvalidCatalog, root)
	}

	leafSet := NewTaskSet()
	for _, name := range members {
		name = strings.TrimSpace(name)
		if name == root {
			continue
		}
		if err := validateToken(name); err != nil {
			return nil, fmt.Errorf("%w: leaf task: %w", ErrInvalidCatalog, err)
		}
		leafSet.Add(name)
	}
	if len(leafSet) == 0 {
		return nil, fmt.Errorf("%w: root aggregate %q has no leaf tasks", ErrInvalidCatalog, root)
	}

	groups := make(map[string][]string, len(doc.Groups))
	for name, list := range doc.Groups {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty aggregate name", ErrInvalidCatalog)
		}
		set := NewTaskSet()
		for _, member := range list {
			if member = strings.TrimSpace(member); member != "" && member != name {
				set.Add(member)
			}
		}
		if name == root {
			set = leafSet
		}
		groups[name] = set.Sorted()
	}

	return &Catalog{
		root:        root,
		groups:      groups,
		leaves:      leafSet.Sorted(),
		leafSet:     leafSet,
		showInTable: slices.Clone(doc.ShowInTable),
	}, nil
}

func validateToken(name string) error {
	if name == "" {
		return errors.New("empty name")
	}
	if strings.ContainsAny(name, "_+ \t\n") {
		return fmt.Errorf("%q must not contain underscores, '+', or whitespace", name)
	}
	return nil
}

// RootAggregate returns the name of the aggregate covering every leaf task.
func (c *Catalog) RootAggregate() string {
	return c.root
}

// AllLeafTasks returns the leaf-task universe in sorted order.
func (c *Catalog) AllLeafTasks() []string {
	return slices.Clone(c.leaves)
}

// Aggregates returns a copy of every aggregate's sorted membership.
func (c *Catalog) Aggregates() map[string][]string {
	out := make(map[string][]string, len(c.groups))
	for name, members := range c.groups {
		out[name] = slices.Clone(members)
	}
	return out
}

// ShowInTable returns the aggregates highlighted in reports.
func (c *Catalog) ShowInTable() []string {
	return slices.Clone(c.showInTable)
}

// IsUniverse reports whether tasks covers exactly the full leaf-task universe.
func (c *Catalog) IsUniverse(tasks []string) bool {
	set := NewTaskSet(tasks...)
	if len(set) != len(c.leaves) {
		return false
	}
	return set.ContainsAll(c.leaves)
}

// Expand maps raw result keys onto leaf tasks. A leaf task that names a
// non-root aggregate is completed only when all of its members are keys; the
// aggregate's own summary key does not count. Any other leaf is completed
// when its name is a key.
func (c *Catalog) Expand(keys TaskSet) TaskSet {
	done := NewTaskSet()
	for _, leaf := range c.leaves {
		if members, ok := c.groups[leaf]; ok && leaf != c.root && len(members) > 0 {
			if keys.ContainsAll(members) {
				done.Add(leaf)
			}
			continue
		}
		if keys.Has(leaf) {
			done.Add(leaf)
		}
	}
	return done
}

// Satisfied returns, sorted, every aggregate whose members are all present in
// status. Leaf tasks that are also aggregates count as satisfied members when
// present in status themselves.
func (c *Catalog) Satisfied(status TaskSet) []string {
	var out []string
	for name, members := range c.groups {
		if c.leafSet.Has(name) && name != c.root {
			if status.Has(name) {
				out = append(out, name)
			}
			continue
		}
		if len(members) > 0 && status.ContainsAll(members) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
