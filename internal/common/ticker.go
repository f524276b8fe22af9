// Package common provides shared utilities across the application.
package common

import (
	"strings"

	"github.com/ternarybob/divtrack/internal/models"
)

// Ticker represents a parsed market symbol in the suffix form used by financial
// sites, e.g. "SBK.JO" (Johannesburg) or "SAP.DE" (XETRA). A bare code is a US listing.
type Ticker struct {
	// Code is the stock/security code (e.g., "SBK", "AAPL")
	Code string
	// Suffix is the market suffix without the dot (e.g., "JO"), empty for US listings
	Suffix string
	// Raw is the original ticker string
	Raw string
}

// SuffixToEODHD maps market suffixes to EODHD exchange suffixes.
var SuffixToEODHD = map[string]string{
	"":   "US",
	"JO": "JSE",
	"L":  "LSE",
	"DE": "XETRA",
	"PA": "PA",
	"AS": "AS",
}

// suffixRegions classifies a ticker by its suffix alone. Bare codes are not
// listed because they need a metadata lookup to be classified.
var suffixRegions = map[string]models.Region{
	"JO": models.RegionSA,
	"DE": models.RegionEUR,
	"PA": models.RegionEUR,
	"AS": models.RegionEUR,
	"L":  models.RegionUSA,
}

// ParseTicker parses a suffix-form ticker string.
// Supports formats:
//   - "SBK.JO" -> Code="SBK", Suffix="JO"
//   - "aapl"   -> Code="AAPL", Suffix=""
//   - "BRK.B"  -> Code="BRK.B", Suffix="" (unknown suffixes stay part of the code)
func ParseTicker(ticker string) Ticker {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return Ticker{}
	}

	upper := strings.ToUpper(ticker)
	if idx := strings.LastIndex(upper, "."); idx > 0 && idx < len(upper)-1 {
		suffix := upper[idx+1:]
		if _, ok := SuffixToEODHD[suffix]; ok {
			return Ticker{
				Code:   upper[:idx],
				Suffix: suffix,
				Raw:    ticker,
			}
		}
	}

	return Ticker{
		Code: upper,
		Raw:  ticker,
	}
}

// String returns the suffix-form ticker.
func (t Ticker) String() string {
	if t.Suffix == "" {
		return t.Code
	}
	return t.Code + "." + t.Suffix
}

// EODHDSymbol returns the EODHD API symbol format.
// Example: "SBK.JO" -> "SBK.JSE", "AAPL" -> "AAPL.US"
func (t Ticker) EODHDSymbol() string {
	if t.Code == "" {
		return ""
	}
	return t.Code + "." + SuffixToEODHD[t.Suffix]
}

// Region returns the region implied by the suffix. The second value is false when
// the suffix alone does not decide the region.
func (t Ticker) Region() (models.Region, bool) {
	region, ok := suffixRegions[t.Suffix]
	return region, ok
}

// ExchangeCode returns the code used in exchange detail URLs ("PSG.JO" -> "PSGJO").
func (t Ticker) ExchangeCode() string {
	return strings.ReplaceAll(t.String(), ".", "")
}
