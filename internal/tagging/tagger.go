// Package tagging infers topic tags for stories and matches reader
// keywords against article text.
package tagging

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tagger maps topic tags to the keywords that trigger them
type Tagger struct {
	mu    sync.RWMutex
	rules map[string][]string
}

func defaultRules() map[string][]string {
	return map[string][]string{
		"Earnings":      {"earnings", "quarterly results", "revenue", "profit", "guidance", "eps", "beat estimates", "missed estimates"},
		"M&A":           {"merger", "acquisition", "acquire", "takeover", "buyout", "deal talks"},
		"Central Banks": {"fed", "federal reserve", "ecb", "bank of england", "boj", "rate hike", "rate cut", "interest rates", "monetary policy"},
		"Macro":         {"inflation", "cpi", "gdp", "unemployment", "jobs report", "recession", "payrolls"},
		"Markets":       {"stocks", "shares", "s&p 500", "nasdaq", "dow", "bond yields", "treasury", "selloff", "rally"},
		"Energy":        {"oil", "opec", "crude", "natural gas", "brent", "lng"},
		"Crypto":        {"bitcoin", "ethereum", "crypto", "stablecoin", "blockchain"},
		"Regulation":    {"sec", "antitrust", "regulator", "lawsuit", "fine", "probe", "sanctions"},
		"Tech":          {"ai", "artificial intelligence", "semiconductor", "chip", "chips", "cloud", "software"},
		"Labor":         {"layoffs", "job cuts", "strike", "union", "hiring freeze"},
		"IPO":           {"ipo", "initial public offering", "listing", "goes public"},
	}
}

func New() *Tagger {
	return &Tagger{rules: defaultRules()}
}

// InferTags returns the sorted set of tags whose keywords appear in the text
func (t *Tagger) InferTags(title, content string) []string {
	text := Normalize(title + " " + content)
	tags := []string{}
	if strings.TrimSpace(text) == "" {
		return tags
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	for tag, keywords := range t.rules {
		for _, kw := range keywords {
			if containsPhrase(text, Normalize(kw)) {
				tags = append(tags, tag)
				break
			}
		}
	}
	sort.Strings(tags)
	return tags
}

func (t *Tagger) AddRule(tag string, keywords []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rules[tag] = keywords
}

func (t *Tagger) RemoveRule(tag string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rules, tag)
}

// GetRules returns a copy of the rule table
func (t *Tagger) GetRules() map[string][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string][]string, len(t.rules))
	for tag, kws := range t.rules {
		out[tag] = append([]string(nil), kws...)
	}
	return out
}

var folder = cases.Fold()

// Normalize folds case, strips diacritics and reduces punctuation to single
// spaces. The result is padded with a space on both ends so whole-word
// phrases can be found with a plain substring search.
func Normalize(s string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		stripped = s
	}
	folded := folder.String(stripped)

	var b strings.Builder
	b.Grow(len(folded) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '&' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

func containsPhrase(normalizedText, normalizedPhrase string) bool {
	if strings.TrimSpace(normalizedPhrase) == "" {
		return false
	}
	return strings.Contains(normalizedText, normalizedPhrase)
}

// MatchKeywords returns the keywords found as whole words in title or
// content, in the order given and without duplicates.
func MatchKeywords(title, content string, keywords []string) []string {
	text := Normalize(title + " " + content)
	matched := []string{}
	seen := make(map[string]bool, len(keywords))

	for _, kw := range keywords {
		n := Normalize(kw)
		if seen[n] {
			continue
		}
		if containsPhrase(text, n) {
			seen[n] = true
			matched = append(matched, kw)
		}
	}
	return matched
}

// ContainsAny reports whether any of the phrases appears in the text
func ContainsAny(title, content string, phrases []string) bool {
	if len(phrases) == 0 {
		return false
	}
	text := Normalize(title + " " + content)
	for _, p := range phrases {
		if containsPhrase(text, Normalize(p)) {
			return true
		}
	}
	return false
}
