package resolver

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/divtrack/internal/common"
	"github.com/ternarybob/divtrack/internal/models"
	"gopkg.in/yaml.v3"
)

// Override pins an instrument name to a symbol
type Override struct {
	Symbol string        `yaml:"symbol"`
	Region models.Region `yaml:"region,omitempty"` // Derived from the symbol suffix when empty
}

// overridesFile is the on-disk layout of the overrides YAML
type overridesFile struct {
	Overrides map[string]Override `yaml:"overrides"`
}

// DefaultOverrides are always present; file entries with the same name replace them.
func DefaultOverrides() map[string]Override {
	return map[string]Override{
		"PSG Financial Services":  {Symbol: "PSG.JO", Region: models.RegionSA},
		"PSGFINANCIALSERVICESLTD": {Symbol: "PSG.JO", Region: models.RegionSA},
	}
}

// LoadOverrides reads additional overrides from a YAML file:
//
//	overrides:
//	  Naspers:
//	    symbol: NPN.JO
//	  Siemens Healthineers:
//	    symbol: SHL.DE
//	    region: EUR
func LoadOverrides(path string) (map[string]Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides file %s: %w", path, err)
	}

	var file overridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse overrides file %s: %w", path, err)
	}

	for name, o := range file.Overrides {
		if strings.TrimSpace(o.Symbol) == "" {
			return nil, fmt.Errorf("override %q has no symbol", name)
		}
	}
	return file.Overrides, nil
}

// ManualStrategy answers from the override table without any remote call.
type ManualStrategy struct {
	overrides map[string]Override
}

// NewManualStrategy merges extra over DefaultOverrides.
func NewManualStrategy(extra map[string]Override) *ManualStrategy {
	overrides := DefaultOverrides()
	for name, o := range extra {
		overrides[name] = o
	}
	return &ManualStrategy{overrides: overrides}
}

func (s *ManualStrategy) Name() string {
	return string(models.SourceManualMapping)
}

// Attempt matches name exactly.
func (s *ManualStrategy) Attempt(ctx context.Context, name string) (*models.ResolvedSymbol, bool) {
	o, ok := s.overrides[name]
	if !ok {
		return nil, false
	}

	region := o.Region
	if region == "" {
		region = models.RegionUnknown
		if r, known := common.ParseTicker(o.Symbol).Region(); known {
			region = r
		}
	}

	return &models.ResolvedSymbol{
		Symbol: o.Symbol,
		Region: region,
		Source: models.SourceManualMapping,
	}, true
}
