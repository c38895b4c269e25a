// Package command implements the language preference commands a user issues
// by direct message: set language, get language, list languages, help.
// Dispatch is a closed, ordered table of entries matched by exact name or
// prefix, each carrying its own argument parser.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"hermes/internal/domain"
)

// matchMode decides how a command name matches the input text.
type matchMode int

const (
	matchExact matchMode = iota
	matchPrefix
)

type entry struct {
	name        string
	description string
	args        []string
	mode        matchMode
	// parse extracts arguments from the full command text.
	parse func(text string) []string
	run   func(ctx context.Context, c *Commander, req request, args []string) string
}

type request struct {
	workspace string
	userID    string
}

// Commander dispatches preference commands against the store.
type Commander struct {
	store   domain.PreferenceStore
	catalog *Catalog
	entries []entry
	logger  *slog.Logger
}

func NewCommander(store domain.PreferenceStore, catalog *Catalog, logger *slog.Logger) *Commander {
	c := &Commander{store: store, catalog: catalog, logger: logger}
	c.entries = []entry{
		{
			name:        "set language",
			description: "Set preferred language",
			args:        []string{"language"},
			mode:        matchPrefix,
			parse: func(text string) []string {
				fields := strings.Fields(text)
				if len(fields) == 0 {
					return nil
				}
				return fields[len(fields)-1:]
			},
			run: runSetLanguage,
		},
		{
			name:        "get language",
			description: "Get preferred language",
			mode:        matchExact,
			run:         runGetLanguage,
		},
		{
			name:        "list languages",
			description: "List all available languages",
			mode:        matchExact,
			run:         runListLanguages,
		},
	}
	return c
}

// Execute runs the command in text and returns the reply. Unknown commands
// get the help text.
func (c *Commander) Execute(ctx context.Context, workspace, userID, text string) string {
	text = strings.TrimSpace(text)
	req := request{workspace: workspace, userID: userID}

	if text == "help" {
		return c.help()
	}

	for _, e := range c.entries {
		if !e.matches(text) {
			continue
		}
		var args []string
		if e.parse != nil {
			args = e.parse(text)
		}
		c.logger.Info("command executed", "workspace", workspace, "user", userID, "command", e.name)
		return e.run(ctx, c, req, args)
	}

	return "Command not found :(\n\n" + c.help()
}

func (e entry) matches(text string) bool {
	switch e.mode {
	case matchPrefix:
		return strings.Contains(text, e.name)
	default:
		return text == e.name
	}
}

func (c *Commander) help() string {
	lines := []string{"help - Display this help message"}
	for _, e := range c.entries {
		name := e.name
		for _, arg := range e.args {
			name += fmt.Sprintf(" <%s>", arg)
		}
		lines = append(lines, name+" - "+e.description)
	}
	return strings.Join(lines, "\n")
}

func runSetLanguage(ctx context.Context, c *Commander, req request, args []string) string {
	if len(args) == 0 {
		return "Invalid language"
	}
	lang := args[0]
	code, ok := c.catalog.Code(lang)
	if !ok {
		return "Invalid language"
	}

	if err := c.store.Set(ctx, req.workspace, req.userID, code); err != nil {
		c.logger.Error("preference set failed",
			"workspace", req.workspace, "user", req.userID, "language", code, "err", err)
		return "Something went wrong, please try again"
	}
	return "Language set to " + capitalize(strings.ToLower(lang))
}

func runGetLanguage(ctx context.Context, c *Commander, req request, _ []string) string {
	code, err := c.store.Get(ctx, req.workspace, req.userID)
	if err != nil {
		c.logger.Error("preference get failed",
			"workspace", req.workspace, "user", req.userID, "err", err)
		return "Something went wrong, please try again"
	}
	if code == "" {
		return "None set"
	}
	name, ok := c.catalog.Name(code)
	if !ok {
		return "Language set to " + code
	}
	return "Language set to " + name
}

func runListLanguages(_ context.Context, c *Commander, _ request, _ []string) string {
	return strings.Join(c.catalog.Names(), ", ")
}
