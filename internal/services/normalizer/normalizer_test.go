package normalizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/divtrack/internal/common"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"strips limited", "XYZ Holdings Limited", "XYZ Holdings", true},
		{"strips ltd", "Unknown Corp Ltd", "Unknown Corp", true},
		{"case insensitive", "Sasol LIMITED", "Sasol", true},
		{"multiple suffixes", "Vodacom Group Limited", "Vodacom", true},
		{"whole words only", "Seriti Grouping", "Seriti Grouping", true},
		{"se suffix", "Siemens SE", "Siemens", true},
		{"collapses whitespace", "  Anglo   American\tPLC ", "Anglo American", true},
		{"noise tariff", "Tariff update for exporters", "", false},
		{"noise bear market", "Shares fell in the bear market", "", false},
		{"noise investor sentiment", "Investor Sentiment Index", "", false},
		{"only suffixes", "Group Limited", "", false},
		{"empty", "   ", "", false},
	}

	n := NewDefault()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.Normalize(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got.Name)
		})
	}
}

func TestNormalize_RejectsLongNames(t *testing.T) {
	n := NewDefault()

	_, ok := n.Normalize(strings.Repeat("a", 101))
	assert.False(t, ok)

	got, ok := n.Normalize(strings.Repeat("a", 100))
	require.True(t, ok)
	assert.Len(t, got.Name, 100)
}

func TestNormalize_LengthCountsRunes(t *testing.T) {
	n := NewDefault()
	_, ok := n.Normalize(strings.Repeat("é", 100))
	assert.True(t, ok)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"XYZ Holdings Limited",
		"Vodacom Group Limited",
		"  Anglo   American PLC ",
		"bear Limited market",
		"Group-SE Holdings",
		"PSG Financial Services Ltd",
		"Naspers",
	}

	n := NewDefault()
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, ok := n.Normalize(input)
			if !ok {
				return
			}
			second, ok := n.Normalize(first.Name)
			require.True(t, ok)
			assert.Equal(t, first, second)
		})
	}
}

func TestNormalize_NoiseRevealedByStripping(t *testing.T) {
	n := NewDefault()
	_, ok := n.Normalize("bear Limited market")
	assert.False(t, ok)
}

func TestNew_CustomTables(t *testing.T) {
	n := New(common.ResolverConfig{
		MaxNameLength:  20,
		NoiseKeywords:  []string{"Crypto"},
		CorporateWords: []string{"Holdings"},
	})

	got, ok := n.Normalize("Acme Holdings")
	require.True(t, ok)
	assert.Equal(t, "Acme", got.Name)

	got, ok = n.Normalize("Acme Limited")
	require.True(t, ok)
	assert.Equal(t, "Acme Limited", got.Name)

	_, ok = n.Normalize("crypto co")
	assert.False(t, ok)

	_, ok = n.Normalize("Acme Industrial Holdings Worldwide")
	assert.False(t, ok)
}
