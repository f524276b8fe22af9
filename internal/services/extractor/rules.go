package extractor

import (
	"regexp"
	"strings"

	"github.com/ternarybob/divtrack/internal/models"
)

const (
	RuleWillBePaying = "will_be_paying"
	RulePattern      = "pattern"
)

// dividendPattern captures <name> <dividend|pays|declares> ... <amount> [currency]
var dividendPattern = regexp.MustCompile(`(?i)(\w[\w\s]+?)\s+(?:dividend|pays|declares)\s+.*?(\d[\d.]*)\s*(ZAR|USD|EUR|\$|€|cents|pence)?`)

// Rule is one entry of the extraction table. Guard is a lowercase substring the
// unit must contain before Match runs; empty means always.
type Rule struct {
	Name  string
	Guard string
	Match func(unit string) (instrument, dividend string, ok bool)
}

// applies reports whether the guard admits the unit.
func (r Rule) applies(unit string) bool {
	return r.Guard == "" || strings.Contains(strings.ToLower(unit), r.Guard)
}

// DefaultRules returns the extraction table in evaluation order.
// Rules are independent: a unit can produce a mention from each.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:  RuleWillBePaying,
			Guard: "per share",
			Match: matchWillBePaying,
		},
		{
			Name:  RulePattern,
			Match: matchPattern,
		},
	}
}

func matchWillBePaying(unit string) (string, string, bool) {
	parts := strings.Split(unit, "will be paying")
	if len(parts) < 2 {
		return "", "", false
	}

	instrument := strings.TrimSpace(parts[0])
	dividend := strings.TrimSpace(strings.ReplaceAll(parts[len(parts)-1], "per share.", ""))
	if instrument == "" {
		return "", "", false
	}
	return instrument, dividend, true
}

func matchPattern(unit string) (string, string, bool) {
	m := dividendPattern.FindStringSubmatch(unit)
	if m == nil {
		return "", "", false
	}

	instrument := strings.TrimSpace(m[1])
	dividend := strings.TrimSpace(m[2] + " " + m[3])
	if instrument == "" {
		return "", "", false
	}
	return instrument, dividend, true
}

// apply runs every rule against a unit and returns the mentions in rule order.
func apply(rules []Rule, unit string) []models.DividendMention {
	var mentions []models.DividendMention
	for _, rule := range rules {
		if !rule.applies(unit) {
			continue
		}
		instrument, dividend, ok := rule.Match(unit)
		if !ok {
			continue
		}
		mentions = append(mentions, models.DividendMention{
			InstrumentName: instrument,
			DividendText:   dividend,
			Rule:           rule.Name,
		})
	}
	return mentions
}
