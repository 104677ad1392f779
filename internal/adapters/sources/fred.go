package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/macrofeed/macrofeed/internal/domain/model"
	"github.com/macrofeed/macrofeed/internal/domain/period"
)

// FRED provider limits and defaults.
const (
	fredDefaultBaseURL = "https://api.stlouisfed.org"
	fredMaxYearSpan    = 10 // provider caps the observation window per request
	fredMinInterval    = 600 * time.Millisecond
	fredRequestTimeout = 30 * time.Second
)

// fredMissingSentinels are the provider's encodings for "no value".
// They normalize to the canonical sentinel; the validator applies the
// missing-value policy.
var fredMissingSentinels = map[string]struct{}{
	".":  {},
	"-":  {},
	"":   {},
	"ND": {},
}

// FREDClient fetches observations from a FRED-style bulk-history API.
// Authentication is an api_key query parameter.
type FREDClient struct {
	http     *resty.Client
	apiKey   string
	throttle throttle
}

// FREDOption applies a configuration option to the FREDClient.
type FREDOption func(*FREDClient)

// WithFREDBaseURL overrides the provider endpoint (tests point this at a
// local server).
func WithFREDBaseURL(baseURL string) FREDOption {
	return func(c *FREDClient) {
		if baseURL != "" {
			c.http.SetBaseURL(baseURL)
		}
	}
}

// WithFREDMinInterval overrides the fixed inter-request delay.
func WithFREDMinInterval(d time.Duration) FREDOption {
	return func(c *FREDClient) {
		if d > 0 {
			c.throttle = newIntervalThrottle(d)
		}
	}
}

// NewFREDClient builds a client. A missing API key is a configuration
// error surfaced before any fetch.
func NewFREDClient(apiKey string, opts ...FREDOption) (*FREDClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("fred: %w", ErrMissingAPIKey)
	}
	c := &FREDClient{
		http:     resty.New().SetBaseURL(fredDefaultBaseURL).SetTimeout(fredRequestTimeout),
		apiKey:   apiKey,
		throttle: newIntervalThrottle(fredMinInterval),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name identifies the source in summaries and priority ranking.
func (c *FREDClient) Name() string { return NameFRED }

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type fredResponse struct {
	Observations []fredObservation `json:"observations"`
}

// FetchObservations retrieves readings for one series between start and
// end. Spans longer than the provider's year limit are chunked into
// sequential requests and concatenated.
func (c *FREDClient) FetchObservations(ctx context.Context, ref SeriesRef, start, end time.Time) ([]model.Observation, error) {
	if end.IsZero() {
		end = time.Now().UTC()
	}

	var all []model.Observation
	for chunkStart := start; !chunkStart.After(end); {
		chunkEnd := chunkStart.AddDate(fredMaxYearSpan, 0, -1)
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		obs, err := c.fetchRange(ctx, ref, chunkStart, chunkEnd)
		if err != nil {
			return nil, err
		}
		all = append(all, obs...)

		chunkStart = chunkEnd.AddDate(0, 0, 1)
	}
	return all, nil
}

func (c *FREDClient) fetchRange(ctx context.Context, ref SeriesRef, start, end time.Time) ([]model.Observation, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, &SourceError{Source: c.Name(), Unit: ref.ID, Err: err}
	}

	var out fredResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"series_id":         ref.ID,
			"api_key":           c.apiKey,
			"file_type":         "json",
			"observation_start": start.Format(period.DateLayout),
			"observation_end":   end.Format(period.DateLayout),
		}).
		SetResult(&out).
		Get("/fred/series/observations")
	if err != nil {
		return nil, &SourceError{Source: c.Name(), Unit: ref.ID, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &SourceError{
			Source:     c.Name(),
			Unit:       ref.ID,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("request failed: %s", resp.Status()),
		}
	}

	observations := make([]model.Observation, 0, len(out.Observations))
	for _, raw := range out.Observations {
		d, err := time.Parse(period.DateLayout, raw.Date)
		if err != nil {
			return nil, &SourceError{Source: c.Name(), Unit: ref.ID, Err: fmt.Errorf("%w: bad date %q", ErrMalformedPayload, raw.Date)}
		}

		value := raw.Value
		if _, missing := fredMissingSentinels[value]; missing {
			value = model.MissingValue
		}

		observations = append(observations, model.Observation{
			Date:              raw.Date,
			Value:             value,
			Period:            period.LabelForDate(d, ref.Frequency),
			SourceIndicatorID: ref.ID,
			CountryCode:       ref.Country,
		})
	}
	return observations, nil
}
