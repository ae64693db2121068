package services

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-synth/internal/logger"
)

// promptRenderer fills prompt templates, preferring user-edited ones from the store.
type promptRenderer struct {
	store driven.PromptStore
}

// render executes the template called name with data.
// A missing or broken user template falls back to the built-in one.
func (r *promptRenderer) render(name string, data any) (string, error) {
	def, ok := domain.DefaultPrompt(name)
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}

	text := def
	if r.store != nil {
		if custom, err := r.store.Load(name); err == nil && strings.TrimSpace(custom) != "" {
			text = custom
		}
	}

	out, err := execute(name, text, data)
	if err != nil && text != def {
		logger.Warn("Prompt %q is invalid, using built-in: %v", name, err)
		return execute(name, def, data)
	}
	return out, err
}

func execute(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse prompt %q: %w", name, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return sb.String(), nil
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// lastRunes returns the final n runes of s.
func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
