// Package normalizer cleans raw instrument names before symbol resolution.
package normalizer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/divtrack/internal/common"
	"github.com/ternarybob/divtrack/internal/models"
)

// Normalizer rejects noise and strips corporate suffixes. Safe for concurrent use.
type Normalizer struct {
	maxLength int
	noise     []string
	suffixes  *regexp.Regexp // nil when no suffixes are configured
}

// New builds a Normalizer from the resolver settings.
func New(config common.ResolverConfig) *Normalizer {
	n := &Normalizer{
		maxLength: config.MaxNameLength,
	}

	for _, keyword := range config.NoiseKeywords {
		if keyword = strings.ToLower(strings.TrimSpace(keyword)); keyword != "" {
			n.noise = append(n.noise, keyword)
		}
	}

	var words []string
	for _, word := range config.CorporateWords {
		if word = strings.TrimSpace(word); word != "" {
			words = append(words, regexp.QuoteMeta(word))
		}
	}
	if len(words) > 0 {
		n.suffixes = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	}

	return n
}

// NewDefault builds a Normalizer with the default resolver settings.
func NewDefault() *Normalizer {
	return New(common.NewDefaultConfig().Resolver)
}

// Normalize returns the cleaned name, or false when the name is rejected.
// Normalize(Normalize(x)) == Normalize(x) for every accepted x.
func (n *Normalizer) Normalize(name string) (models.NormalizedInstrument, bool) {
	name = strings.TrimSpace(name)

	if n.maxLength > 0 && utf8.RuneCountInString(name) > n.maxLength {
		return models.NormalizedInstrument{}, false
	}
	if n.isNoise(name) {
		return models.NormalizedInstrument{}, false
	}

	if n.suffixes != nil {
		name = n.suffixes.ReplaceAllString(name, "")
	}
	name = strings.Join(strings.Fields(name), " ")

	if name == "" || n.isNoise(name) {
		return models.NormalizedInstrument{}, false
	}
	return models.NormalizedInstrument{Name: name}, true
}

func (n *Normalizer) isNoise(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range n.noise {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
