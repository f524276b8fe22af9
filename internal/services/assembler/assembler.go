// Package assembler drives one pipeline run: extract, normalize, resolve and
// price every mention in a corpus, then emit sorted output rows.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/common"
	"github.com/ternarybob/divtrack/internal/interfaces"
	"github.com/ternarybob/divtrack/internal/models"
)

// ErrEmptyCorpus is returned when a run is started without any articles.
var ErrEmptyCorpus = errors.New("corpus is empty")

// Extractor finds dividend mentions in one article
type Extractor interface {
	ExtractArticle(title, text string) []models.DividendMention
}

// Normalizer cleans a raw instrument name; false rejects it
type Normalizer interface {
	Normalize(name string) (models.NormalizedInstrument, bool)
}

// Assembler turns a corpus into dividend records.
type Assembler struct {
	extractor  Extractor
	normalizer Normalizer
	resolver   interfaces.SymbolResolver
	prices     interfaces.PriceService
	logger     arbor.ILogger
}

// New creates an Assembler.
func New(extractor Extractor, normalizer Normalizer, resolver interfaces.SymbolResolver, prices interfaces.PriceService, logger arbor.ILogger) *Assembler {
	return &Assembler{
		extractor:  extractor,
		normalizer: normalizer,
		resolver:   resolver,
		prices:     prices,
		logger:     logger,
	}
}

// mention is a normalized instrument with its latest dividend text within one article
type mention struct {
	name     string
	dividend string
}

// Run processes the corpus. Per-instrument failures degrade to sentinel values;
// the only errors are an empty corpus and a cancelled context.
func (a *Assembler) Run(ctx context.Context, corpus models.Corpus) ([]models.DividendRecord, *models.RunReport, error) {
	if len(corpus) == 0 {
		return nil, nil, ErrEmptyCorpus
	}

	report := &models.RunReport{
		RunID:     common.NewRunID(),
		StartedAt: time.Now(),
		Articles:  len(corpus),
	}

	titles := make([]string, 0, len(corpus))
	for title := range corpus {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	var records []models.DividendRecord
	unknown := make(map[string]bool)

	for _, title := range titles {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("run cancelled: %w", err)
		}

		mentions := a.collect(title, corpus[title], report)
		for _, m := range mentions {
			record := a.assemble(ctx, title, m)
			records = append(records, record)

			if record.Region == models.RegionUnknown {
				unknown[fmt.Sprintf("%s (%s)", record.Instrument, record.Symbol)] = true
			}
		}

		a.logger.Info().
			Str("article", title).
			Int("entries", len(mentions)).
			Msg("Processed article")
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Region != records[j].Region {
			return records[i].Region < records[j].Region
		}
		return records[i].Instrument < records[j].Instrument
	})

	for entry := range unknown {
		report.Unknown = append(report.Unknown, entry)
	}
	sort.Strings(report.Unknown)
	if len(report.Unknown) > 0 {
		a.logger.Info().Strs("instruments", report.Unknown).Msg("Instruments in Unknown region")
	}

	report.Records = len(records)
	report.Duration = time.Since(report.StartedAt)

	a.logger.Info().
		Str("run_id", report.RunID).
		Int("articles", report.Articles).
		Int("mentions", report.Mentions).
		Int("rejected", report.Rejected).
		Int("records", report.Records).
		Dur("duration", report.Duration).
		Msg("Run completed")

	return records, report, nil
}

// collect extracts and normalizes the mentions of one article. A repeated
// instrument keeps its first position and takes the latest dividend text.
func (a *Assembler) collect(title, text string, report *models.RunReport) []mention {
	raw := a.extractor.ExtractArticle(title, text)
	report.Mentions += len(raw)

	var mentions []mention
	index := make(map[string]int)
	for _, m := range raw {
		normalized, ok := a.normalizer.Normalize(m.InstrumentName)
		if !ok {
			report.Rejected++
			a.logger.Debug().
				Str("article", title).
				Str("instrument", m.InstrumentName).
				Msg("Rejected instrument name")
			continue
		}

		if i, seen := index[normalized.Name]; seen {
			mentions[i].dividend = m.DividendText
			continue
		}
		index[normalized.Name] = len(mentions)
		mentions = append(mentions, mention{name: normalized.Name, dividend: m.DividendText})
	}
	return mentions
}

func (a *Assembler) assemble(ctx context.Context, title string, m mention) models.DividendRecord {
	resolved := a.resolver.Resolve(ctx, m.name)
	quote := a.prices.Quote(ctx, resolved)

	instrument := m.name
	if resolved.Source == models.SourceExchangeSearch && resolved.DisplayName != "" && resolved.DisplayName != models.SymbolUnresolved {
		instrument = resolved.DisplayName
	}

	symbol := resolved.Symbol
	if symbol == "" {
		symbol = models.SymbolUnresolved
	}

	region := resolved.Region
	if region == "" {
		region = models.RegionUnknown
	}

	return models.DividendRecord{
		Region:     region,
		Instrument: instrument,
		Symbol:     symbol,
		Dividend:   m.dividend,
		Price:      quote.Value,
		Article:    title,
		Source:     string(quote.Source),
	}
}
