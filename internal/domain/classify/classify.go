// Package classify assigns category and impact levels to calendar events
// by keyword matching against event-name substrings.
package classify

import (
	"strings"

	"github.com/macrofeed/macrofeed/internal/domain/model"
)

// highImpactKeywords mark events that routinely move markets. Matching is
// case-insensitive substring matching against the event name.
var highImpactKeywords = []string{
	"interest rate",
	"rate decision",
	"cpi",
	"inflation",
	"nonfarm",
	"non-farm",
	"payroll",
	"gdp",
	"unemployment rate",
	"fomc",
	"monetary policy",
	"central bank",
}

// mediumImpactKeywords mark events of moderate interest.
var mediumImpactKeywords = []string{
	"retail sales",
	"pmi",
	"ppi",
	"producer price",
	"consumer confidence",
	"consumer sentiment",
	"industrial production",
	"trade balance",
	"housing start",
	"building permit",
	"durable goods",
	"jobless claims",
	"ism",
}

// categoryKeywords map name substrings onto release categories. Order
// matters: the first match wins.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"cpi", "Inflation"},
	{"inflation", "Inflation"},
	{"ppi", "Inflation"},
	{"producer price", "Inflation"},
	{"payroll", "Employment"},
	{"nonfarm", "Employment"},
	{"non-farm", "Employment"},
	{"unemployment", "Employment"},
	{"jobless", "Employment"},
	{"employment", "Employment"},
	{"gdp", "Growth"},
	{"industrial production", "Growth"},
	{"pmi", "Business"},
	{"ism", "Business"},
	{"business", "Business"},
	{"retail sales", "Consumer"},
	{"consumer", "Consumer"},
	{"trade balance", "Trade"},
	{"export", "Trade"},
	{"import", "Trade"},
	{"housing", "Housing"},
	{"building permit", "Housing"},
	{"home sales", "Housing"},
	{"interest rate", "Central Bank"},
	{"rate decision", "Central Bank"},
	{"fomc", "Central Bank"},
	{"monetary policy", "Central Bank"},
	{"central bank", "Central Bank"},
}

// Impact classifies an event name. Impact defaults to Low unless the name
// matches a curated High or Medium keyword; hasReport promotes the result
// to at least Medium, because a provider-supplied supplementary report
// signals analyst attention regardless of the name.
func Impact(eventName string, hasReport bool) model.Impact {
	name := strings.ToLower(eventName)

	impact := model.ImpactLow
	for _, kw := range highImpactKeywords {
		if strings.Contains(name, kw) {
			impact = model.ImpactHigh
			break
		}
	}
	if impact == model.ImpactLow {
		for _, kw := range mediumImpactKeywords {
			if strings.Contains(name, kw) {
				impact = model.ImpactMedium
				break
			}
		}
	}
	if hasReport && impact == model.ImpactLow {
		impact = model.ImpactMedium
	}
	return impact
}

// Category returns the first matching category for an event name, or
// "Other" when nothing matches.
func Category(eventName string) string {
	name := strings.ToLower(eventName)
	for _, ck := range categoryKeywords {
		if strings.Contains(name, ck.keyword) {
			return ck.category
		}
	}
	return "Other"
}
