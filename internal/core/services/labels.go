package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

// themeLabel is the parsed answer of a labelling prompt.
type themeLabel struct {
	Label       string
	Description string
}

var (
	// Accepts "Theme:", "Thème:", "Thema:", "Tema:" and "Label:" after markup is stripped.
	labelPrefix       = regexp.MustCompile(`(?i)^(?:th[eè]me|thema|tema|label)\s*[:：]\s*`)
	descriptionPrefix = regexp.MustCompile(`(?i)^description\s*[:：]\s*`)
	markupChars       = strings.NewReplacer("**", "", "__", "", "`", "", "*", "", "#", "")
	orderLine         = regexp.MustCompile(`(?i)^(?:chapter\s+)?(\d+)\s*[.:)]\s*.+`)
)

// parseThemeLabel extracts a label and description from a model answer.
func parseThemeLabel(response string) domain.ParseResult[themeLabel] {
	var out themeLabel
	for _, raw := range strings.Split(response, "\n") {
		line := cleanMarkup(raw)
		if line == "" {
			continue
		}
		if loc := labelPrefix.FindStringIndex(line); loc != nil && out.Label == "" {
			out.Label = cleanValue(line[loc[1]:])
			continue
		}
		if loc := descriptionPrefix.FindStringIndex(line); loc != nil && out.Description == "" {
			out.Description = cleanValue(line[loc[1]:])
		}
	}
	if out.Label == "" {
		return domain.Fallback[themeLabel]("no theme label in response")
	}
	return domain.Ok(out)
}

// cleanMarkup strips list bullets and emphasis decoration from a line.
func cleanMarkup(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-•> ")
	line = markupChars.Replace(line)
	return strings.TrimSpace(line)
}

// cleanValue removes surrounding quotes and trailing punctuation from a parsed value.
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, `"'“”«»`)
	v = strings.TrimSpace(v)
	return strings.TrimRight(v, ".")
}

// defaultThemeLabel is the fallback label for the cluster at 1-based position n.
func defaultThemeLabel(n int) string {
	return fmt.Sprintf("Theme %d", n)
}

// parseChapterOrder reads a 1-based ordering of n themes, one per line.
// The result holds 0-based theme indices in chapter order and is only Ok
// when it is a permutation of all n indices.
func parseChapterOrder(response string, n int) domain.ParseResult[[]int] {
	var order []int
	seen := make(map[int]bool, n)
	for _, raw := range strings.Split(response, "\n") {
		line := cleanMarkup(raw)
		m := orderLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if idx < 1 || idx > n {
			return domain.Fallback[[]int](fmt.Sprintf("theme number %d out of range", idx))
		}
		if seen[idx] {
			return domain.Fallback[[]int](fmt.Sprintf("theme number %d repeated", idx))
		}
		seen[idx] = true
		order = append(order, idx-1)
	}
	if len(order) != n {
		return domain.Fallback[[]int](fmt.Sprintf("expected %d themes, parsed %d", n, len(order)))
	}
	return domain.Ok(order)
}
