package models

import (
	"strconv"
	"time"
)

const (
	// SymbolUnresolved is written to the Symbol column when no ticker could be found
	SymbolUnresolved = "N/A"
	// PriceUnavailable is the sentinel price returned when every price lookup failed
	PriceUnavailable = "0.00"
)

// Region is the coarse market bucket used to group output rows
type Region string

const (
	RegionSA      Region = "SA"
	RegionUSA     Region = "USA"
	RegionEUR     Region = "EUR"
	RegionUnknown Region = "Unknown"
)

// ResolutionSource identifies which waterfall step produced a ResolvedSymbol
type ResolutionSource string

const (
	SourceManualMapping     ResolutionSource = "Manual Mapping"
	SourceExchangeSearch    ResolutionSource = "Exchange Search"
	SourceWebSearch         ResolutionSource = "Web Search"
	SourceFallbackHeuristic ResolutionSource = "Fallback Heuristic"
)

// PriceSource identifies where a PriceQuote came from
type PriceSource string

const (
	PriceSourceManual      PriceSource = "Manual Mapping"
	PriceSourceExchange    PriceSource = "JSE"
	PriceSourceSearchQuote PriceSource = "Google Finance"
	PriceSourceMarketData  PriceSource = "EODHD"
)

// Article is a single blog post handed over by the crawler
type Article struct {
	Title string `json:"title"` // URL path, truncated
	Link  string `json:"link"`
	Text  string `json:"text"` // Paragraph texts joined with newlines
}

// Corpus maps article title to its concatenated paragraph text
type Corpus map[string]string

// DividendMention is a raw instrument/dividend pair pulled out of article text
type DividendMention struct {
	InstrumentName string `json:"instrument_name"`
	DividendText   string `json:"dividend_text"`
	Rule           string `json:"rule"` // Name of the extraction rule that matched
}

// NormalizedInstrument is a cleaned instrument name ready for resolution
type NormalizedInstrument struct {
	Name string `json:"name"`
}

// ResolvedSymbol is the outcome of the symbol waterfall for one instrument name
type ResolvedSymbol struct {
	Symbol      string           `json:"symbol"` // Empty when unresolved
	Region      Region           `json:"region"`
	Source      ResolutionSource `json:"source"`
	DisplayName string           `json:"display_name,omitempty"` // Name reported by the exchange, if any
	Link        string           `json:"link,omitempty"`         // Exchange detail page, if any
}

// Resolved reports whether a ticker symbol was found
func (r *ResolvedSymbol) Resolved() bool {
	return r != nil && r.Symbol != "" && r.Symbol != SymbolUnresolved
}

// ExchangeListing is the first instrument hit of an exchange search
type ExchangeListing struct {
	Name   string `json:"name"`   // "N/A" when the result had no link
	Symbol string `json:"symbol"` // Alpha code, "N/A" when absent
	Link   string `json:"link"`   // Absolute detail page URL, "N/A" when absent
}

// PriceQuote is a formatted price with the source that produced it
type PriceQuote struct {
	Value  string      `json:"value"` // Two decimal places
	Source PriceSource `json:"source"`
}

// Available reports whether the quote carries a real, positive price
func (q PriceQuote) Available() bool {
	v, err := strconv.ParseFloat(q.Value, 64)
	return err == nil && v > 0
}

// UnavailableQuote returns the sentinel quote for a source
func UnavailableQuote(source PriceSource) PriceQuote {
	return PriceQuote{Value: PriceUnavailable, Source: source}
}

// DividendRecord is one output row
type DividendRecord struct {
	Region     Region `json:"Region" csv:"Region"`
	Instrument string `json:"Instrument" csv:"Instrument"`
	Symbol     string `json:"Symbol" csv:"Symbol"`
	Dividend   string `json:"Dividend" csv:"Dividend"`
	Price      string `json:"Price" csv:"Price"`
	Article    string `json:"Article" csv:"Article"`
	Source     string `json:"Source" csv:"Source"`
}

// RecordHeader is the column order used by every tabular export
var RecordHeader = []string{"Region", "Instrument", "Symbol", "Dividend", "Price", "Article", "Source"}

// Row returns the record fields in RecordHeader order
func (r DividendRecord) Row() []string {
	return []string{string(r.Region), r.Instrument, r.Symbol, r.Dividend, r.Price, r.Article, r.Source}
}

// RunReport summarises a single pipeline run
type RunReport struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Articles  int           `json:"articles"`
	Mentions  int           `json:"mentions"`
	Rejected  int           `json:"rejected"` // Mentions dropped by the normalizer
	Records   int           `json:"records"`
	Unknown   []string      `json:"unknown"` // "Instrument (SYMBOL)" entries with an Unknown region
}

// Dataset is the persisted result of the latest run
type Dataset struct {
	Records []DividendRecord `json:"records"`
	Report  RunReport        `json:"report"`
}

// NewCorpus keys article text by title. A repeated title keeps the last text.
func NewCorpus(articles []Article) Corpus {
	corpus := make(Corpus, len(articles))
	for _, a := range articles {
		corpus[a.Title] = a.Text
	}
	return corpus
}
