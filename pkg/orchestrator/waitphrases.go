package orchestrator

import (
	"math/rand/v2"

	"github.com/lokutor-ai/answerflow/pkg/tenant"
)

// fallbackProcessingPhrases backs languages a tenant's resources don't
// cover with something to say while the validator is working.
var fallbackProcessingPhrases = map[string][]string{
	"en": {"One moment please.", "Let me look into that for you.", "Just a second."},
	"es": {"Un momento por favor."},
	"fr": {"Un instant, s'il vous plaît."},
}

// pickProcessingPhrase resolves a random language-appropriate "please
// wait" line: tenant avatar/state resources first, then the fallback
// table, then a hard-coded last resort.
func pickProcessingPhrase(res tenant.Resources, language string) string {
	if phrase, ok := randomFrom(res.AvatarProcessing[language]); ok {
		return phrase
	}
	if phrase, ok := randomFrom(res.StateProcessing[language]); ok {
		return phrase
	}
	family := languageFamily(language)
	if phrase, ok := randomFrom(res.AvatarProcessing[family]); ok {
		return phrase
	}
	if phrase, ok := randomFrom(res.StateProcessing[family]); ok {
		return phrase
	}
	if phrase, ok := randomFrom(fallbackProcessingPhrases[language]); ok {
		return phrase
	}
	if phrase, ok := randomFrom(fallbackProcessingPhrases[family]); ok {
		return phrase
	}
	return "One moment please."
}

func randomFrom(list []string) (string, bool) {
	if len(list) == 0 {
		return "", false
	}
	return list[rand.IntN(len(list))], true
}

func languageFamily(language string) string {
	for i, r := range language {
		if r == '-' || r == '_' {
			return language[:i]
		}
	}
	return language
}
