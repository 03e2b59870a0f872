package parser

import "strings"

// freeTextResult is the outcome of scanning a span of plain response
// text for the two markers that can appear outside of section tags:
// the "[meta:docs]" bracket and the "{#NXENDX#}" session-end sentinel.
type freeTextResult struct {
	literal       string // resolved literal text safe to emit
	leftover      string // unresolved tail (mid-bracket or mid-sentinel), held for more input
	hitMeta       bool
	metaRemainder string // text following "[meta:docs]", the start of the metadata buffer
	hitSessionEnd bool
}

// scanFreeText walks buf left to right. Any "[...]" span is buffered
// until its closing bracket arrives; if the bracket's content is
// exactly "meta:docs" scanning stops there and hitMeta is set. Any
// other bracket content is literal and scanning continues past it.
// The "{#NXENDX#}" sentinel is matched as a whole literal token; a
// trailing '{' that could still grow into the sentinel holds scanning
// rather than being emitted as literal text.
func scanFreeText(buf string) freeTextResult {
	var out strings.Builder
	i := 0
	for i < len(buf) {
		c := buf[i]

		if c == '[' {
			rest := buf[i+1:]
			j := strings.IndexByte(rest, ']')
			if j == -1 {
				return freeTextResult{literal: out.String(), leftover: buf[i:]}
			}
			closeIdx := i + 1 + j
			content := buf[i+1 : closeIdx]
			if content == metaBracket {
				return freeTextResult{
					literal:       out.String(),
					hitMeta:       true,
					metaRemainder: buf[closeIdx+1:],
				}
			}
			out.WriteString(buf[i : closeIdx+1])
			i = closeIdx + 1
			continue
		}

		if c == '{' {
			rest := buf[i:]
			if len(rest) < len(sessionEndMarker) {
				if sessionEndMarker[:len(rest)] == rest {
					return freeTextResult{literal: out.String(), leftover: buf[i:]}
				}
				out.WriteByte(c)
				i++
				continue
			}
			if rest[:len(sessionEndMarker)] == sessionEndMarker {
				return freeTextResult{literal: out.String(), hitSessionEnd: true}
			}
			out.WriteByte(c)
			i++
			continue
		}

		out.WriteByte(c)
		i++
	}
	return freeTextResult{literal: out.String()}
}

// hasPartialTagSuffix reports whether the tail of buf could be the
// start of tag, so the caller should hold off deciding "no tag here"
// until more input arrives.
func hasPartialTagSuffix(buf, tag string) bool {
	max := len(tag) - 1
	if max > len(buf) {
		max = len(buf)
	}
	for k := max; k > 0; k-- {
		if buf[len(buf)-k:] == tag[:k] {
			return true
		}
	}
	return false
}
