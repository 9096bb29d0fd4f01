// Package catalog provides the fixed, ordered set of subscriptions shown on
// the dashboard.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"subtrack/internal/core"
)

var (
	ErrDuplicateID = errors.New("duplicate subscription id")
	ErrUnknownID   = errors.New("unknown subscription id")
)

// Catalog is immutable once built.
type Catalog struct {
	items []core.Subscription
	byID  map[int]int
}

// Seed returns the built-in subscriptions.
func Seed() []core.Subscription {
	return []core.Subscription{
		{
			ID:          1,
			Name:        "Netflix",
			Category:    "Entertainment",
			YearlyCost:  core.Dollars(120),
			NextPayment: core.NewDate(2024, 3, 15),
			Logo:        "https://upload.wikimedia.org/wikipedia/commons/thumb/7/75/Netflix_icon.svg/2048px-Netflix_icon.svg.png",
		},
		{
			ID:          2,
			Name:        "Spotify",
			Category:    "Entertainment",
			YearlyCost:  core.Dollars(100),
			NextPayment: core.NewDate(2024, 4, 10),
			Logo:        "https://upload.wikimedia.org/wikipedia/commons/thumb/1/1b/Spotify_logo_2023.svg/2048px-Spotify_logo_2023.svg.png",
		},
		{
			ID:          3,
			Name:        "Gym Membership",
			Category:    "Fitness",
			YearlyCost:  core.Dollars(500),
			NextPayment: core.NewDate(2024, 5, 1),
			Logo:        "https://upload.wikimedia.org/wikipedia/commons/thumb/b/b2/Yogacentral.svg/1137px-Yogacentral.svg.png",
		},
	}
}

// New validates items and builds a catalog preserving their order.
func New(items []core.Subscription) (*Catalog, error) {
	c := &Catalog{
		items: make([]core.Subscription, 0, len(items)),
		byID:  make(map[int]int, len(items)),
	}
	for i, s := range items {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("subscription #%d (%q): %w", i+1, s.Name, err)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("subscription #%d: %w: %d", i+1, ErrDuplicateID, s.ID)
		}
		c.byID[s.ID] = len(c.items)
		c.items = append(c.items, s)
	}
	return c, nil
}

// Default returns the catalog built from Seed.
func Default() *Catalog {
	c, err := New(Seed())
	if err != nil {
		panic(fmt.Sprintf("invalid built-in catalog: %v", err))
	}
	return c
}

// All returns a copy of every subscription in catalog order.
func (c *Catalog) All() []core.Subscription {
	out := make([]core.Subscription, len(c.items))
	copy(out, c.items)
	return out
}

// Get looks up a subscription by id.
func (c *Catalog) Get(id int) (core.Subscription, bool) {
	i, ok := c.byID[id]
	if !ok {
		return core.Subscription{}, false
	}
	return c.items[i], true
}

func (c *Catalog) Has(id int) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *Catalog) Len() int {
	return len(c.items)
}

// IDs returns every id in catalog order.
func (c *Catalog) IDs() []int {
	out := make([]int, len(c.items))
	for i, s := range c.items {
		out[i] = s.ID
	}
	return out
}

// file is the YAML layout accepted by LoadFile.
type file struct {
	Subscriptions []entry `yaml:"subscriptions"`
}

type entry struct {
	ID          int    `yaml:"id"`
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	YearlyCost  string `yaml:"yearly_cost"`
	NextPayment string `yaml:"next_payment,omitempty"`
	Logo        string `yaml:"logo,omitempty"`
}

// LoadFile reads a catalog from a YAML file. The file replaces the seed; it
// is read once and never written.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	if len(f.Subscriptions) == 0 {
		return nil, errors.New("catalog file has no subscriptions")
	}

	items := make([]core.Subscription, 0, len(f.Subscriptions))
	for i, e := range f.Subscriptions {
		cost, err := core.ParseMoney(e.YearlyCost)
		if err != nil {
			return nil, fmt.Errorf("subscription #%d (%q): yearly_cost %q: %w", i+1, e.Name, e.YearlyCost, err)
		}
		var next core.Date
		if e.NextPayment != "" {
			next, err = core.ParseDate(e.NextPayment)
			if err != nil {
				return nil, fmt.Errorf("subscription #%d (%q): next_payment: %w", i+1, e.Name, err)
			}
		}
		items = append(items, core.Subscription{
			ID:          e.ID,
			Name:        e.Name,
			Category:    e.Category,
			YearlyCost:  cost,
			NextPayment: next,
			Logo:        e.Logo,
		})
	}
	return New(items)
}
