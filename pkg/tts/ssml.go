package tts

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// VoiceModel carries the per-language voice settings a tenant
// configuration declares.
type VoiceModel struct {
	Name  string
	Pitch string // default "medium"
	Rate  string // default "1.0"
}

func (v VoiceModel) withDefaults() VoiceModel {
	if v.Pitch == "" {
		v.Pitch = "medium"
	}
	if v.Rate == "" {
		v.Rate = "1.0"
	}
	return v
}

var parentheticalPattern = regexp.MustCompile(`\([^)]*\)`)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// SSMLFormatter builds a complete SSML document from plain voice text,
// applying phoneme substitutions from the shared PhonemeCache.
type SSMLFormatter struct {
	Phonemes *PhonemeCache
}

// FormatOptions parameterizes one Format call.
type FormatOptions struct {
	Language          string
	Voice             VoiceModel
	LexiconURL        string
	PhonemeGlobalURL  string
	PhonemeLangURLs   map[string]string
	StripParentheticals bool
	DictionaryKey     string
}

// Result is the outcome of building an SSML document: the document
// itself plus the phoneme-substituted plain text, which is what the
// TTS cache key is derived from.
type Result struct {
	SSML        string
	PhonemeText string
	Language    string
}

// Format strips configured parentheticals, applies phoneme
// substitutions, and wraps the result in a complete SSML document with
// voice/prosody, an optional lexicon reference, and a trailing
// boundary silence override.
func (f *SSMLFormatter) Format(ctx context.Context, text string, opts FormatOptions) (Result, error) {
	if opts.StripParentheticals {
		text = parentheticalPattern.ReplaceAllString(text, "")
	}

	lang := NormalizeLanguage(opts.Language)
	voice := opts.Voice.withDefaults()

	var phonemeText string
	var applied bool
	if f.Phonemes != nil {
		terms, err := f.Phonemes.Patterns(ctx, opts.DictionaryKey, opts.PhonemeGlobalURL, opts.PhonemeLangURLs, lang)
		if err != nil {
			return Result{}, err
		}
		phonemeText, applied = applySubstitutions(text, terms)
	} else {
		phonemeText = escapeLiteral(text)
	}

	var b strings.Builder
	b.WriteString(`<speak version="1.0" xml:lang="`)
	b.WriteString(lang)
	b.WriteString(`">`)
	if opts.LexiconURL != "" && !applied {
		fmt.Fprintf(&b, `<lexicon uri="%s"/>`, xmlEscaper.Replace(opts.LexiconURL))
	}
	fmt.Fprintf(&b, `<voice name="%s">`, xmlEscaper.Replace(voice.Name))
	fmt.Fprintf(&b, `<prosody pitch="%s" rate="%s">`, voice.Pitch, voice.Rate)
	b.WriteString(phonemeText)
	b.WriteString(`<break time="150ms"/>`)
	b.WriteString(`</prosody></voice></speak>`)

	return Result{SSML: b.String(), PhonemeText: phonemeText, Language: lang}, nil
}

// applySubstitutions performs a single left-to-right scan of text,
// matching the longest-first term list at each word boundary. Because
// it only ever scans the original text, it never re-enters content it
// has already replaced with a tag - a simpler and RE2-compatible stand-in
// for lookaround-based "skip inside an existing tag" matching.
func applySubstitutions(text string, terms []PhonemeTerm) (string, bool) {
	if len(terms) == 0 {
		return escapeLiteral(text), false
	}
	protected := protectedTagRanges(text)

	runes := []rune(text)
	var out strings.Builder
	applied := false

	i := 0
	for i < len(runes) {
		if span, ok := protected.contains(i); ok {
			out.WriteString(string(runes[i:span.end]))
			i = span.end
			continue
		}

		matched := false
		for _, term := range terms {
			tr := []rune(term.Term)
			end := i + len(tr)
			if end > len(runes) {
				continue
			}
			if !strings.EqualFold(string(runes[i:end]), term.Term) {
				continue
			}
			if i > 0 && isWordChar(runes[i-1]) {
				continue
			}
			if end < len(runes) && isWordChar(runes[end]) {
				continue
			}
			out.WriteString(term.ReplacementTag)
			i = end
			matched = true
			applied = true
			break
		}
		if matched {
			continue
		}
		out.WriteString(xmlEscaper.Replace(string(runes[i])))
		i++
	}

	return out.String(), applied
}

func escapeLiteral(s string) string {
	return xmlEscaper.Replace(s)
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

type tagSpan struct{ start, end int }

type tagSpans []tagSpan

func (s tagSpans) contains(pos int) (tagSpan, bool) {
	for _, sp := range s {
		if pos >= sp.start && pos < sp.end {
			return sp, true
		}
	}
	return tagSpan{}, false
}

var taggedElementPattern = regexp.MustCompile(`(?s)<(phoneme|sub)[^>]*>.*?</(phoneme|sub)>`)

// protectedTagRanges flags rune-index ranges already covered by a
// <phoneme>/<sub> element in the source text, so substitution never
// re-processes content the caller already tagged.
func protectedTagRanges(text string) tagSpans {
	locs := taggedElementPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	spans := make(tagSpans, 0, len(locs))
	for _, loc := range locs {
		start := len([]rune(text[:loc[0]]))
		end := len([]rune(text[:loc[1]]))
		spans = append(spans, tagSpan{start: start, end: end})
	}
	return spans
}

var languageDefaults = map[string]string{
	"en": "en-US",
	"es": "es-ES",
	"fr": "fr-FR",
	"de": "de-DE",
	"it": "it-IT",
	"pt": "pt-BR",
	"ja": "ja-JP",
	"zh": "zh-CN",
	"th": "th-TH",
}

// NormalizeLanguage converts a bare language code or an already
// hyphenated tag into BCP-47 "xx-YY" form.
func NormalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "en-US"
	}
	if idx := strings.IndexAny(lang, "-_"); idx > 0 {
		primary := strings.ToLower(lang[:idx])
		region := strings.ToUpper(lang[idx+1:])
		return primary + "-" + region
	}
	low := strings.ToLower(lang)
	if def, ok := languageDefaults[low]; ok {
		return def
	}
	return low + "-" + strings.ToUpper(low)
}
