package command

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// builtinLanguages maps human language names (lowercase) to ISO 639-1 codes.
type languageMap map[string]string

var builtinLanguages = languageMap{
	"arabic":     "ar",
	"chinese":    "zh",
	"czech":      "cs",
	"danish":     "da",
	"dutch":      "nl",
	"english":    "en",
	"finnish":    "fi",
	"french":     "fr",
	"german":     "de",
	"hebrew":     "he",
	"hindi":      "hi",
	"indonesian": "id",
	"italian":    "it",
	"japanese":   "ja",
	"korean":     "ko",
	"malay":      "ms",
	"norwegian":  "no",
	"persian":    "fa",
	"polish":     "pl",
	"portuguese": "pt",
	"russian":    "ru",
	"spanish":    "es",
	"swedish":    "sv",
	"turkish":    "tr",
}

// Catalog resolves between human language names and language codes.
type Catalog struct {
	byName languageMap
	byCode map[string]string
}

// NewCatalog returns the built-in catalog.
func NewCatalog() *Catalog {
	return newCatalog(builtinLanguages)
}

// LoadCatalog reads a YAML name->code mapping from path, replacing the
// built-in catalog. A missing file falls back to the built-in set.
func LoadCatalog(path string, logger *slog.Logger) (*Catalog, error) {
	if path == "" {
		return NewCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Debug("language catalog file does not exist, using builtin", "path", path)
		return NewCatalog(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read language catalog: %w", err)
	}

	langs := languageMap{}
	if err := yaml.Unmarshal(data, &langs); err != nil {
		return nil, fmt.Errorf("parse language catalog %s: %w", path, err)
	}
	if len(langs) == 0 {
		return nil, fmt.Errorf("language catalog %s is empty", path)
	}

	normalized := languageMap{}
	for name, code := range langs {
		normalized[strings.ToLower(name)] = code
	}
	logger.Info("loaded language catalog", "path", path, "languages", len(normalized))
	return newCatalog(normalized), nil
}

func newCatalog(langs languageMap) *Catalog {
	byCode := make(map[string]string, len(langs))
	for name, code := range langs {
		byCode[code] = name
	}
	return &Catalog{byName: langs, byCode: byCode}
}

// Code returns the language code for a human name, case-insensitively.
func (c *Catalog) Code(name string) (string, bool) {
	code, ok := c.byName[strings.ToLower(name)]
	return code, ok
}

// Name returns the capitalized human name for a language code.
func (c *Catalog) Name(code string) (string, bool) {
	name, ok := c.byCode[code]
	if !ok {
		return "", false
	}
	return capitalize(name), true
}

// Names returns all language names, capitalized and sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, capitalize(name))
	}
	sort.Strings(names)
	return names
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
