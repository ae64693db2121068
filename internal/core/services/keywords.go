package services

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// minKeywordLength is the shortest token, in runes, that can become a keyword.
const minKeywordLength = 4

// stopWords covers common English and French function words.
var stopWords = func() map[string]struct{} {
	words := []string{
		// English
		"about", "above", "after", "again", "against", "also", "among", "because", "been", "before",
		"being", "below", "between", "both", "could", "does", "doing", "down", "during", "each",
		"either", "even", "every", "from", "further", "have", "having", "here", "however", "into",
		"itself", "just", "like", "many", "more", "most", "much", "must", "neither", "only",
		"other", "ought", "ours", "over", "same", "shall", "should", "since", "some", "such",
		"than", "that", "their", "theirs", "them", "then", "there", "these", "they", "this",
		"those", "through", "thus", "under", "until", "upon", "very", "were", "what", "when",
		"where", "whether", "which", "while", "whom", "whose", "will", "with", "within", "without",
		"would", "your", "yours", "yourself", "said", "says", "page", "also", "well", "therefore",
		// French
		"alors", "au-dessus", "aussi", "autre", "avant", "avec", "avoir", "cela", "celle", "celles",
		"celui", "cependant", "certains", "chaque", "comme", "comment", "dans", "depuis", "donc", "elle",
		"elles", "encore", "entre", "était", "étaient", "être", "fait", "faire", "leur", "leurs",
		"mais", "même", "mêmes", "nous", "notre", "nos", "ont", "pour", "pourquoi", "quand",
		"quel", "quelle", "quelles", "quels", "sans", "sera", "seront", "sont", "sous", "tous",
		"tout", "toute", "toutes", "très", "vous", "votre", "cette", "ces", "peut", "plus",
		"selon", "ainsi", "après", "auprès", "lors", "parce", "puis", "dont", "sur", "par",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// extractKeywords returns up to limit terms ranked by frequency across texts.
// Tokens are case-folded, stripped of punctuation, longer than three runes and
// not stop words. Equal counts keep first-seen order.
func extractKeywords(texts []string, limit int) []string {
	counts := make(map[string]int)
	var order []string
	for _, text := range texts {
		for _, tok := range tokenize(text) {
			if utf8.RuneCountInString(tok) < minKeywordLength {
				continue
			}
			if _, stop := stopWords[tok]; stop {
				continue
			}
			if _, seen := counts[tok]; !seen {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

// tokenize splits text on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// mergeKeywords unions keyword lists in order, without duplicates, capped at limit.
func mergeKeywords(limit int, lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, k := range list {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}
