// Package i18n holds the UI message catalogs for the respondent-facing
// pages (instructions, navigation, result texts).
package i18n

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const fallbackLocale = "en"

// Catalog resolves message keys per locale, falling back to English when a
// locale or key is missing.
type Catalog struct {
	messages map[string]map[string]string
}

// builtin covers the core page cycle so a study works without any catalog
// files on disk.
var builtin = map[string]map[string]string{
	"en": {
		"page.instructions": "Instructions",
		"page.demographics": "About you",
		"page.results":      "Your results",
		"nav.next":          "Next",
		"nav.previous":      "Back",
		"nav.finish":        "Finish",
		"session.resumed":   "Welcome back. Your test continues where you left off.",
		"session.complete":  "The test is complete. Thank you for participating.",
	},
	"de": {
		"page.instructions": "Anleitung",
		"page.demographics": "Angaben zur Person",
		"page.results":      "Ihre Ergebnisse",
		"nav.next":          "Weiter",
		"nav.previous":      "Zurück",
		"nav.finish":        "Abschließen",
		"session.resumed":   "Willkommen zurück. Ihr Test wird fortgesetzt.",
		"session.complete":  "Der Test ist abgeschlossen. Vielen Dank für Ihre Teilnahme.",
	},
}

// NewCatalog returns a catalog with the built-in messages.
func NewCatalog() *Catalog {
	messages := make(map[string]map[string]string, len(builtin))
	for locale, msgs := range builtin {
		copied := make(map[string]string, len(msgs))
		for k, v := range msgs {
			copied[k] = v
		}
		messages[locale] = copied
	}
	return &Catalog{messages: messages}
}

// LoadLocaleFile merges a YAML file of key/value messages into the catalog,
// overriding built-in entries for that locale.
func (c *Catalog) LoadLocaleFile(locale, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read locale file: %w", err)
	}

	var msgs map[string]string
	if err := yaml.Unmarshal(data, &msgs); err != nil {
		return fmt.Errorf("failed to parse locale file: %w", err)
	}

	if c.messages[locale] == nil {
		c.messages[locale] = make(map[string]string, len(msgs))
	}
	for k, v := range msgs {
		c.messages[locale][k] = v
	}
	return nil
}

// T resolves a message key for a locale, falling back to English and then
// to the key itself.
func (c *Catalog) T(locale, key string) string {
	if msgs, ok := c.messages[locale]; ok {
		if msg, ok := msgs[key]; ok {
			return msg
		}
	}
	if msgs, ok := c.messages[fallbackLocale]; ok {
		if msg, ok := msgs[key]; ok {
			return msg
		}
	}
	return key
}

// Messages returns a copy of all messages for a locale, with English filling
// the gaps. The front end fetches this once per session.
func (c *Catalog) Messages(locale string) map[string]string {
	merged := make(map[string]string)
	for k, v := range c.messages[fallbackLocale] {
		merged[k] = v
	}
	if locale != fallbackLocale {
		for k, v := range c.messages[locale] {
			merged[k] = v
		}
	}
	return merged
}

// Locales lists the locales the catalog has messages for.
func (c *Catalog) Locales() []string {
	locales := make([]string, 0, len(c.messages))
	for locale := range c.messages {
		locales = append(locales, locale)
	}
	return locales
}
