package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/models"
)

var sample = []models.DividendRecord{
	{Region: models.RegionSA, Instrument: "XYZ Holdings", Symbol: "XYZ.JO", Dividend: "150 cents", Price: "25.10", Article: "dividends-update-october", Source: "Manual Mapping"},
	{Region: models.RegionUSA, Instrument: "Apple, Inc", Symbol: "AAPL", Dividend: "24 cents", Price: "0.00", Article: "october", Source: "EODHD"},
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sample))

	assert.Equal(t,
		"Region,Instrument,Symbol,Dividend,Price,Article,Source\n"+
			"SA,XYZ Holdings,XYZ.JO,150 cents,25.10,dividends-update-october,Manual Mapping\n"+
			"USA,\"Apple, Inc\",AAPL,24 cents,0.00,october,EODHD\n",
		buf.String())
}

func TestEncode_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil))
	assert.Equal(t, "Region,Instrument,Symbol,Dividend,Price,Article,Source\n", buf.String())
}

func TestCSVWriter_Write(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "static", "data", "dividends.csv")
	w := NewCSVWriter(path, arbor.NewLogger())

	assert.False(t, w.Exists())
	require.NoError(t, w.Write(sample))
	assert.True(t, w.Exists())
	assert.Equal(t, path, w.Path())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SA,XYZ Holdings,XYZ.JO")

	// A second write replaces the file and leaves no temp files behind
	require.NoError(t, w.Write(sample[:1]))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "AAPL")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
