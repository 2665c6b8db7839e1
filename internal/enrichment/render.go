package enrichment

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/johnrirwin/newsradar/internal/models"
)

// FallbackDraft renders a draft locally when the drafter is unavailable
func FallbackDraft(story models.Story) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", story.Headline)
	fmt.Fprintf(&b, "**Why now:** %s\n", story.WhyNow)

	if len(story.Entities) > 0 {
		names := make([]string, 0, len(story.Entities))
		for _, e := range story.Entities {
			names = append(names, e.Name)
		}
		fmt.Fprintf(&b, "\n**Key entities:** %s\n", strings.Join(names, ", "))
	}

	if len(story.Timeline) > 0 {
		b.WriteString("\n## Timeline\n\n")
		for _, ev := range story.Timeline {
			fmt.Fprintf(&b, "- %s (%s): %s\n", ev.Timestamp.UTC().Format("2006-01-02 15:04 MST"), ev.EventType, ev.Description)
		}
	}

	if len(story.Sources) > 0 {
		b.WriteString("\n## Sources\n\n")
		for _, src := range story.Sources {
			fmt.Fprintf(&b, "- %s\n", src)
		}
	}

	b.WriteString("\n_Automatic summary: the full draft could not be generated._\n")
	return b.String()
}

// AppendResearch adds the research report under its own section
func AppendResearch(draft string, research ResearchResult) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(draft, "\n"))
	b.WriteString("\n\n---\n\n")
	b.WriteString(researchSectionTag)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(research.Report))
	b.WriteString("\n")

	if len(research.Sources) > 0 {
		b.WriteString("\n**Research sources:**\n\n")
		n := len(research.Sources)
		if n > maxStorySources {
			n = maxStorySources
		}
		for _, src := range research.Sources[:n] {
			fmt.Fprintf(&b, "- %s\n", src)
		}
	}
	return b.String()
}

// NormalizeURL gives the identity used when merging source lists
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	n := host + path
	if u.RawQuery != "" {
		n += "?" + u.RawQuery
	}
	return n
}

// MergeSources appends extra to existing, dropping duplicates by normalized
// URL and keeping first-seen order.
func MergeSources(existing, extra []string) []string {
	out := make([]string, 0, len(existing)+len(extra))
	seen := make(map[string]bool, len(existing)+len(extra))

	for _, list := range [][]string{existing, extra} {
		for _, src := range list {
			key := NormalizeURL(src)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(src))
		}
	}
	return out
}
