package game

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"testing"
)

func numberedTemplates(n int) []Template {
	templates := make([]Template, 0, n)
	for i := 0; i < n; i++ {
		templates = append(templates, Template{Name: fmt.Sprintf("tmpl-%02d", i), Slots: 1 + i%3})
	}
	return templates
}

func decodeEntry(t *testing.T, content json.RawMessage) DefaultEntry {
	t.Helper()
	var entry DefaultEntry
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	return entry
}

func TestDefaultContentOffersDistinctChoices(t *testing.T) {
	catalog := NewStaticCatalog(numberedTemplates(8), 0, 3)
	entry := decodeEntry(t, mustContent(t, catalog, nil))

	if len(entry.Choices) != DefaultTemplateChoices {
		t.Fatalf("expected %d choices, got %d", DefaultTemplateChoices, len(entry.Choices))
	}
	seen := map[string]bool{}
	for _, choice := range entry.Choices {
		if seen[choice.Name] {
			t.Fatalf("template %s offered twice", choice.Name)
		}
		seen[choice.Name] = true
	}
	first := entry.Choices[0]
	if entry.Template != first.Name || entry.ChoiceIndex != 0 || len(entry.Texts) != first.Slots {
		t.Fatalf("expected the first choice to be selected, got %+v", entry)
	}

	small := decodeEntry(t, mustContent(t, NewStaticCatalog(numberedTemplates(2), 5, 3), nil))
	if len(small.Choices) != 2 {
		t.Fatalf("expected choices capped by catalog size, got %d", len(small.Choices))
	}
}

func TestDefaultContentPrefersUnusedTemplates(t *testing.T) {
	templates := numberedTemplates(6)
	catalog := NewStaticCatalog(templates, 3, 9)
	exclude := []string{templates[0].Name, templates[1].Name, templates[2].Name}

	for i := 0; i < 20; i++ {
		entry := decodeEntry(t, mustContent(t, catalog, exclude))
		for _, choice := range entry.Choices {
			if slices.Contains(exclude, choice.Name) {
				t.Fatalf("offered excluded template %s while fresh ones remain", choice.Name)
			}
		}
	}

	exclude = append(exclude, templates[3].Name, templates[4].Name)
	entry := decodeEntry(t, mustContent(t, catalog, exclude))
	if len(entry.Choices) != 3 || entry.Choices[0].Name != templates[5].Name {
		t.Fatalf("expected the last fresh template first then reuse, got %+v", entry.Choices)
	}
}

func TestSessionNeverRepeatsTemplates(t *testing.T) {
	catalog := NewStaticCatalog(numberedTemplates(12), 2, 5)
	h := newCatalogHarness(t, unwrapped, catalog)
	id := h.startGame(t, testConfig(3), "ada", "ben")

	offered := map[string]string{}
	for round := 1; round <= 3; round++ {
		h.forceUntil(t, id, "ada", StatusCreating)
		if got := h.session(t, id).CurrentRound; got != round {
			t.Fatalf("expected round %d, got %d", round, got)
		}
		err := h.store.Tx(context.Background(), func(tx Tx) error {
			subs, err := tx.RoundSubmissions(id, round)
			if err != nil {
				return err
			}
			for _, sub := range subs {
				for _, choice := range decodeEntry(t, sub.Content).Choices {
					if prev, ok := offered[choice.Name]; ok {
						t.Fatalf("template %s offered to %s in round %d after %s", choice.Name, sub.PlayerID, round, prev)
					}
					offered[choice.Name] = fmt.Sprintf("%s round %d", sub.PlayerID, round)
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("load round: %v", err)
		}
		if err := h.engine.ForceAdvance(context.Background(), id, "ada"); err != nil {
			t.Fatalf("force advance: %v", err)
		}
	}
	if len(offered) != 12 {
		t.Fatalf("expected all 12 templates offered once, got %d", len(offered))
	}
}

func mustContent(t *testing.T, catalog *StaticCatalog, exclude []string) json.RawMessage {
	t.Helper()
	content, err := catalog.DefaultContent(exclude)
	if err != nil {
		t.Fatalf("default content: %v", err)
	}
	return content
}
