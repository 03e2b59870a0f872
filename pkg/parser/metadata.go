package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

var docIDPattern = regexp.MustCompile(`doc-[A-Za-z0-9_-]+`)

// finalizeMetadata scans the accumulated metadata buffer for the first
// complete JSON object, pulls "doc-ids" (a comma-separated string) out
// of it, and hands the result to the Metadata sink. If no JSON object
// parses, it falls back to a heuristic doc-id scrape; failing that, the
// raw buffer is surfaced untouched.
func (p *Parser) finalizeMetadata() {
	raw := p.metadataBuf.String()
	p.metadataBuf.Reset()
	p.state = StateCompleted

	if obj, ok := firstJSONObject(raw); ok {
		var parsed map[string]interface{}
		if json.Unmarshal([]byte(obj), &parsed) == nil {
			if docIDs, ok := parsed["doc-ids"].(string); ok && docIDs != "" {
				p.emitMetadata(splitDocIDs(docIDs))
				return
			}
		}
	}

	if ids := docIDPattern.FindAllString(raw, -1); len(ids) > 0 {
		p.emitMetadata(ids)
		return
	}

	if p.sinks.Metadata != nil {
		p.sinks.Metadata(MetadataResult{Raw: raw})
	}
}

func (p *Parser) emitMetadata(docIDs []string) {
	if p.sinks.Metadata != nil {
		p.sinks.Metadata(MetadataResult{DocIDs: docIDs})
	}
}

func splitDocIDs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// firstJSONObject returns the first balanced-brace {...} span in s.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
