package sources

// Series is the closed set of per-provider series configurations. Each
// provider variant carries its own typed field set; consumers switch
// exhaustively on the concrete type.
type Series interface {
	seriesTag()
}

// FREDSeries configures one series fetched from the FRED-style provider.
type FREDSeries struct {
	SeriesID  string
	Name      string
	Country   string
	Category  string
	Frequency string
}

func (FREDSeries) seriesTag() {}

// SDMXSeries configures one series fetched from the SDMX provider. Flow
// and Key address the series inside the provider's dataflow.
type SDMXSeries struct {
	Flow      string
	Key       string
	Name      string
	Country   string
	Category  string
	Frequency string
}

func (SDMXSeries) seriesTag() {}

// Ref resolves a catalog entry to the fetch unit its client consumes.
// The switch is exhaustive over the closed Series set.
func Ref(s Series) SeriesRef {
	switch v := s.(type) {
	case FREDSeries:
		return SeriesRef{ID: v.SeriesID, Name: v.Name, Country: v.Country, Category: v.Category, Frequency: v.Frequency}
	case SDMXSeries:
		return SeriesRef{ID: v.Flow + "/" + v.Key, Name: v.Name, Country: v.Country, Category: v.Category, Frequency: v.Frequency}
	default:
		panic("sources: unknown series variant")
	}
}

// DefaultCatalog is the curated series list an unconfigured run imports.
// Runs with an allow-list filter it down by series id.
func DefaultCatalog() []Series {
	return []Series{
		FREDSeries{SeriesID: "CPIAUCSL", Name: "Consumer Price Index", Country: "US", Category: "Inflation", Frequency: "monthly"},
		FREDSeries{SeriesID: "UNRATE", Name: "Unemployment Rate", Country: "US", Category: "Employment", Frequency: "monthly"},
		FREDSeries{SeriesID: "GDP", Name: "Gross Domestic Product", Country: "US", Category: "Growth", Frequency: "quarterly"},
		FREDSeries{SeriesID: "FEDFUNDS", Name: "Federal Funds Rate", Country: "US", Category: "Central Bank", Frequency: "monthly"},
		FREDSeries{SeriesID: "PAYEMS", Name: "Nonfarm Payrolls", Country: "US", Category: "Employment", Frequency: "monthly"},
		SDMXSeries{Flow: "PRICES", Key: "M.DE.CPI", Name: "Consumer Price Index", Country: "DE", Category: "Inflation", Frequency: "monthly"},
		SDMXSeries{Flow: "PRICES", Key: "M.FR.CPI", Name: "Consumer Price Index", Country: "FR", Category: "Inflation", Frequency: "monthly"},
		SDMXSeries{Flow: "NATACC", Key: "Q.DE.GDP", Name: "Gross Domestic Product", Country: "DE", Category: "Growth", Frequency: "quarterly"},
		SDMXSeries{Flow: "LABOUR", Key: "M.DE.UNEMP", Name: "Unemployment Rate", Country: "DE", Category: "Employment", Frequency: "monthly"},
	}
}

// FilterCatalog keeps catalog entries whose series id is in allow. An
// empty allow-list keeps everything.
func FilterCatalog(catalog []Series, allow []string) []Series {
	if len(allow) == 0 {
		return catalog
	}
	allowed := make(map[string]struct{}, len(allow))
	for _, id := range allow {
		allowed[id] = struct{}{}
	}
	kept := make([]Series, 0, len(catalog))
	for _, s := range catalog {
		var id string
		switch v := s.(type) {
		case FREDSeries:
			id = v.SeriesID
		case SDMXSeries:
			id = v.Flow + "/" + v.Key
		}
		if _, ok := allowed[id]; ok {
			kept = append(kept, s)
		}
	}
	return kept
}
