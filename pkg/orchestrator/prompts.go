package orchestrator

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/lokutor-ai/answerflow/pkg/providers/kmsearch"
)

// kmContextLimit caps how many knowledge-search hits are interpolated
// into the generator's {context} substitution; the source hardcodes 5
// regardless of the tenant's max_results.
const kmContextLimit = 5

// substitute replaces every {key} occurrence in template with vars[key].
func substitute(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

type kmContextFields struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Content string `json:"content"`
}

// formatKMContext renders the top kmContextLimit knowledge-search hits
// as a newline-separated block for the generator's {context} slot,
// followed by any service-supplied direct answers.
func formatKMContext(km kmsearch.Result) string {
	var b strings.Builder
	for i, item := range km.Data {
		if i >= kmContextLimit {
			break
		}
		var f kmContextFields
		_ = json.Unmarshal(item.Raw, &f)
		text := f.Snippet
		if text == "" {
			text = f.Content
		}
		if f.Title != "" {
			b.WriteString(f.Title)
			b.WriteString(": ")
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	for _, a := range km.Answers {
		b.WriteString(a)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func currentTimeRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// buildQuery joins the validator correction and any keywords into the
// single space-separated knowledge-search query, de-duplicated.
func buildQuery(correction string, keywords []string) string {
	parts := make([]string, 0, 1+len(keywords))
	if correction != "" {
		parts = append(parts, correction)
	}
	parts = append(parts, keywords...)
	return strings.Join(dedupeQueryParts(parts), " ")
}

func dedupeQueryParts(parts []string) []string {
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
