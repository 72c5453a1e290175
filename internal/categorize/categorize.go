// Package categorize assigns blogs and resources to a topic using a fixed
// keyword and regular expression table.
package categorize

import (
	_ "embed"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Other is returned when no rule matches.
const Other = "other"

//go:embed rules.yml
var rulesYAML []byte

type ruleFile struct {
	Categories []struct {
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"categories"`
}

type rule struct {
	name     string
	keywords []string
	patterns []*regexp.Regexp
}

// Table is a parsed, ordered rule table. It is safe for concurrent use.
type Table struct {
	rules []rule
}

// Result is the outcome of categorizing a piece of text.
type Result struct {
	Category string         `json:"category"`
	Scores   map[string]int `json:"scores"`
}

// Parse builds a Table from YAML rule data.
func Parse(data []byte) (*Table, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse category rules: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("parse category rules: no categories")
	}

	t := &Table{rules: make([]rule, 0, len(f.Categories))}
	seen := make(map[string]bool, len(f.Categories))
	for _, c := range f.Categories {
		if c.Name == "" || c.Name == Other || seen[c.Name] {
			return nil, fmt.Errorf("parse category rules: invalid or duplicate category %q", c.Name)
		}
		seen[c.Name] = true

		r := rule{name: c.Name}
		for _, kw := range c.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				r.keywords = append(r.keywords, kw)
			}
		}
		for _, p := range c.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("category %s: pattern %q: %w", c.Name, p, err)
			}
			r.patterns = append(r.patterns, re)
		}
		t.rules = append(t.rules, r)
	}
	return t, nil
}

var defaultTable = sync.OnceValue(func() *Table {
	t, err := Parse(rulesYAML)
	if err != nil {
		panic(err)
	}
	return t
})

// Default returns the table built from the embedded rules.
func Default() *Table {
	return defaultTable()
}

// Categorize scores texts against the embedded table.
func Categorize(texts ...string) Result {
	return Default().Categorize(texts...)
}

// SuggestTags returns up to n keywords from the embedded table found in text.
func SuggestTags(text string, n int) []string {
	return Default().SuggestTags(text, n)
}

// Valid reports whether category is known to the embedded table or is Other.
func Valid(category string) bool {
	return category == Other || slices.Contains(Default().Categories(), category)
}

// Categories lists the category names in table order.
func (t *Table) Categories() []string {
	names := make([]string, len(t.rules))
	for i, r := range t.rules {
		names[i] = r.name
	}
	return names
}

// Categorize joins texts, counts keyword occurrences and pattern matches per
// category and returns the highest scoring one. Ties go to the category listed
// first; a zero score yields Other. Scores holds only categories that matched.
func (t *Table) Categorize(texts ...string) Result {
	text := strings.ToLower(strings.Join(texts, " "))
	res := Result{Category: Other, Scores: map[string]int{}}

	best := 0
	for _, r := range t.rules {
		score := 0
		for _, kw := range r.keywords {
			score += strings.Count(text, kw)
		}
		for _, re := range r.patterns {
			score += len(re.FindAllStringIndex(text, -1))
		}
		if score == 0 {
			continue
		}
		res.Scores[r.name] = score
		if score > best {
			best = score
			res.Category = r.name
		}
	}
	return res
}

// SuggestTags returns up to n distinct keywords found in text, most frequent first.
func (t *Table) SuggestTags(text string, n int) []string {
	if n <= 0 {
		return nil
	}
	text = strings.ToLower(text)

	type hit struct {
		tag   string
		count int
		order int
	}
	var hits []hit
	seen := map[string]bool{}
	for _, r := range t.rules {
		for _, kw := range r.keywords {
			if seen[kw] {
				continue
			}
			if c := strings.Count(text, kw); c > 0 {
				seen[kw] = true
				hits = append(hits, hit{tag: kw, count: c, order: len(hits)})
			}
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if a.count != b.count {
			return b.count - a.count
		}
		return a.order - b.order
	})

	tags := make([]string, 0, min(n, len(hits)))
	for _, h := range hits {
		if len(tags) == n {
			break
		}
		tags = append(tags, h.tag)
	}
	return tags
}
