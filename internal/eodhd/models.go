package eodhd

import (
	"time"
)

// EODData represents a single day's end-of-day price data.
type EODData struct {
	Date          time.Time `json:"-"`
	DateStr       string    `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// EODResponse is a slice of EODData.
type EODResponse []EODData

// Latest returns the most recent bar in the response.
func (r EODResponse) Latest() (EODData, bool) {
	if len(r) == 0 {
		return EODData{}, false
	}
	latest := r[0]
	for _, bar := range r[1:] {
		if bar.Date.After(latest.Date) {
			latest = bar
		}
	}
	return latest, true
}

// FundamentalsResponse holds the parts of /fundamentals used for region classification.
// Other sections of the payload are ignored on decode.
type FundamentalsResponse struct {
	General *GeneralInfo `json:"General"`
}

// GeneralInfo contains general company information.
type GeneralInfo struct {
	Code           string `json:"Code"`
	Type           string `json:"Type"`
	Name           string `json:"Name"`
	Exchange       string `json:"Exchange"`
	CurrencyCode   string `json:"CurrencyCode"`
	CurrencyName   string `json:"CurrencyName"`
	CurrencySymbol string `json:"CurrencySymbol"`
	CountryName    string `json:"CountryName"`
	CountryISO     string `json:"CountryISO"`
	ISIN           string `json:"ISIN"`
}
