package game

import (
	"encoding/json"
	"math/rand/v2"
	"slices"
	"sync"
)

// Template is one entry of the read-only content catalog.
type Template struct {
	Name     string   `json:"name"`
	ImageURL string   `json:"image_url"`
	Slots    int      `json:"slots"`
	Example  []string `json:"example,omitempty"`
}

// DefaultTemplateChoices is how many distinct templates a player is offered
// per round.
const DefaultTemplateChoices = 5

// Catalog supplies template options and the default content seeded for
// every player at the start of a round. Templates named in exclude have
// already been offered in the session and are only reused once the catalog
// runs out.
type Catalog interface {
	Templates() []Template
	DefaultContent(exclude []string) (json.RawMessage, error)
}

// DefaultEntry is the content shape seeded by StaticCatalog. The engine only
// reads Choices back to avoid offering a template twice in a session.
// Template, ImageURL and Texts describe the selected choice.
type DefaultEntry struct {
	Template    string     `json:"template"`
	ImageURL    string     `json:"image_url,omitempty"`
	Texts       []string   `json:"texts"`
	Choices     []Template `json:"choices,omitempty"`
	ChoiceIndex int        `json:"choice_index"`
}

type StaticCatalog struct {
	mu        sync.Mutex
	templates []Template
	choices   int
	rng       *rand.Rand
}

// NewStaticCatalog offers choices templates per entry. Non-positive choices
// fall back to DefaultTemplateChoices.
func NewStaticCatalog(templates []Template, choices int, seed uint64) *StaticCatalog {
	if choices <= 0 {
		choices = DefaultTemplateChoices
	}
	return &StaticCatalog{
		templates: slices.Clone(templates),
		choices:   choices,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (c *StaticCatalog) Templates() []Template {
	return slices.Clone(c.templates)
}

func (c *StaticCatalog) DefaultContent(exclude []string) (json.RawMessage, error) {
	if len(c.templates) == 0 {
		return emptyContent(), nil
	}
	choices := c.pick(exclude)
	first := choices[0]
	slots := first.Slots
	if slots <= 0 {
		slots = 2
	}
	return json.Marshal(DefaultEntry{
		Template: first.Name,
		ImageURL: first.ImageURL,
		Texts:    make([]string, slots),
		Choices:  choices,
	})
}

// pick draws up to c.choices distinct templates, preferring ones not in
// exclude.
func (c *StaticCatalog) pick(exclude []string) []Template {
	c.mu.Lock()
	order := c.rng.Perm(len(c.templates))
	c.mu.Unlock()

	fresh := make([]Template, 0, len(order))
	var used []Template
	for _, i := range order {
		tmpl := c.templates[i]
		if slices.Contains(exclude, tmpl.Name) {
			used = append(used, tmpl)
			continue
		}
		fresh = append(fresh, tmpl)
	}
	picked := append(fresh, used...)
	if len(picked) > c.choices {
		picked = picked[:c.choices]
	}
	return picked
}

// offeredTemplates lists every template named in content seeded by
// StaticCatalog. Other content shapes contribute nothing.
func offeredTemplates(content json.RawMessage) []string {
	var entry DefaultEntry
	if err := json.Unmarshal(content, &entry); err != nil {
		return nil
	}
	names := make([]string, 0, len(entry.Choices)+1)
	for _, choice := range entry.Choices {
		names = append(names, choice.Name)
	}
	if entry.Template != "" && !slices.Contains(names, entry.Template) {
		names = append(names, entry.Template)
	}
	return names
}

func emptyContent() json.RawMessage {
	return json.RawMessage(`{}`)
}
