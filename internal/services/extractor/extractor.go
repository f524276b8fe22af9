// Package extractor pulls instrument/dividend pairs out of article text.
package extractor

import (
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/models"
)

// Extractor applies the rule table to every paragraph of an article.
type Extractor struct {
	rules     []Rule
	artifacts ArtifactWriter
	logger    arbor.ILogger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRules replaces the default rule table.
func WithRules(rules []Rule) Option {
	return func(e *Extractor) {
		e.rules = rules
	}
}

// WithArtifacts persists each article's text before extraction.
func WithArtifacts(w ArtifactWriter) Option {
	return func(e *Extractor) {
		e.artifacts = w
	}
}

// New creates an Extractor using DefaultRules.
func New(logger arbor.ILogger, opts ...Option) *Extractor {
	e := &Extractor{
		rules:  DefaultRules(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns every mention found in text. Units are the non-empty,
// trimmed lines of the text.
func (e *Extractor) Extract(text string) []models.DividendMention {
	var mentions []models.DividendMention
	for _, line := range strings.Split(text, "\n") {
		unit := strings.TrimSpace(line)
		if unit == "" {
			continue
		}
		mentions = append(mentions, apply(e.rules, unit)...)
	}
	return mentions
}

// ExtractArticle writes the article artifact, then extracts its mentions.
// A failed artifact write is logged and does not affect extraction.
func (e *Extractor) ExtractArticle(title, text string) []models.DividendMention {
	if e.artifacts != nil {
		if err := e.artifacts.Write(title, text); err != nil {
			e.logger.Warn().Err(err).Str("article", title).Msg("Failed to write article artifact")
		}
	}

	mentions := e.Extract(text)
	e.logger.Debug().
		Str("article", title).
		Int("mentions", len(mentions)).
		Msg("Extracted dividend mentions")
	return mentions
}
