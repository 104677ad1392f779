package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/macrofeed/macrofeed/internal/domain/model"
	"github.com/macrofeed/macrofeed/internal/domain/period"
)

// SDMX provider limits and defaults.
const (
	sdmxMaxSeriesPerRequest = 5 // provider caps series keys per data query
	sdmxDefaultMaxRequests  = 20
	sdmxDefaultWindow       = time.Minute
	sdmxRequestTimeout      = 45 * time.Second
)

// SDMXClient fetches observations from an SDMX-JSON statistics agency
// endpoint. Some agencies require no authentication; when a key is
// configured it travels as a query parameter.
type SDMXClient struct {
	http     *resty.Client
	apiKey   string
	throttle throttle
}

// SDMXOption applies a configuration option to the SDMXClient.
type SDMXOption func(*SDMXClient)

// WithSDMXBaseURL sets the agency endpoint.
func WithSDMXBaseURL(baseURL string) SDMXOption {
	return func(c *SDMXClient) {
		if baseURL != "" {
			c.http.SetBaseURL(baseURL)
		}
	}
}

// WithSDMXAPIKey sets the optional subscription key.
func WithSDMXAPIKey(key string) SDMXOption {
	return func(c *SDMXClient) {
		c.apiKey = key
	}
}

// WithSDMXWindow overrides the requests-per-window cap.
func WithSDMXWindow(maxRequests int, window time.Duration) SDMXOption {
	return func(c *SDMXClient) {
		if maxRequests > 0 && window > 0 {
			c.throttle = newWindowThrottle(maxRequests, window)
		}
	}
}

// NewSDMXClient builds a client with a sliding-window throttle.
func NewSDMXClient(baseURL string, opts ...SDMXOption) (*SDMXClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("sdmx: base URL must not be empty")
	}
	c := &SDMXClient{
		http:     resty.New().SetBaseURL(baseURL).SetTimeout(sdmxRequestTimeout),
		throttle: newWindowThrottle(sdmxDefaultMaxRequests, sdmxDefaultWindow),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name identifies the source in summaries and priority ranking.
func (c *SDMXClient) Name() string { return NameSDMX }

// sdmxResponse is the subset of SDMX-JSON this client consumes: one
// series dimension carrying the series key, one observation dimension
// carrying the period codes.
type sdmxResponse struct {
	DataSets []struct {
		Series map[string]struct {
			Observations map[string][]any `json:"observations"`
		} `json:"series"`
	} `json:"dataSets"`
	Structure struct {
		Dimensions struct {
			Series []struct {
				ID     string `json:"id"`
				Values []struct {
					ID string `json:"id"`
				} `json:"values"`
			} `json:"series"`
			Observation []struct {
				ID     string `json:"id"`
				Values []struct {
					ID string `json:"id"`
				} `json:"values"`
			} `json:"observation"`
		} `json:"dimensions"`
	} `json:"structure"`
}

// FetchObservations retrieves readings for one series.
func (c *SDMXClient) FetchObservations(ctx context.Context, ref SeriesRef, start, end time.Time) ([]model.Observation, error) {
	byKey, err := c.FetchMany(ctx, []SeriesRef{ref}, start, end)
	if err != nil {
		return nil, err
	}
	return byKey[ref.ID], nil
}

// FetchMany retrieves several series, chunking the request when the
// series count exceeds the provider limit and concatenating the results.
// All refs must share one dataflow. The result maps ref IDs (flow/key)
// to their observations.
func (c *SDMXClient) FetchMany(ctx context.Context, refs []SeriesRef, start, end time.Time) (map[string][]model.Observation, error) {
	out := make(map[string][]model.Observation, len(refs))
	for at := 0; at < len(refs); at += sdmxMaxSeriesPerRequest {
		chunk := refs[at:min(at+sdmxMaxSeriesPerRequest, len(refs))]
		if err := c.fetchChunk(ctx, chunk, start, end, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *SDMXClient) fetchChunk(ctx context.Context, refs []SeriesRef, start, end time.Time, out map[string][]model.Observation) error {
	flow, keys, err := splitRefs(refs)
	if err != nil {
		return err
	}
	unit := flow + "/" + strings.Join(keys, "+")

	if err := c.throttle.Wait(ctx); err != nil {
		return &SourceError{Source: c.Name(), Unit: unit, Err: err}
	}

	params := map[string]string{
		"format":      "sdmx-json",
		"startPeriod": start.Format("2006-01"),
	}
	if !end.IsZero() {
		params["endPeriod"] = end.Format("2006-01")
	}
	if c.apiKey != "" {
		params["api_key"] = c.apiKey
	}

	var payload sdmxResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&payload).
		Get("/data/" + flow + "/" + strings.Join(keys, "+"))
	if err != nil {
		return &SourceError{Source: c.Name(), Unit: unit, Err: err}
	}
	if !resp.IsSuccess() {
		return &SourceError{
			Source:     c.Name(),
			Unit:       unit,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("request failed: %s", resp.Status()),
		}
	}

	return c.decode(payload, refs, unit, out)
}

// decode maps the SDMX index space back onto series refs: the series map
// key's first index addresses the series dimension, observation map keys
// address the period dimension.
func (c *SDMXClient) decode(payload sdmxResponse, refs []SeriesRef, unit string, out map[string][]model.Observation) error {
	if len(payload.DataSets) == 0 {
		return nil // empty window, not an error
	}
	dims := payload.Structure.Dimensions
	if len(dims.Series) == 0 || len(dims.Observation) == 0 {
		return &SourceError{Source: c.Name(), Unit: unit, Err: fmt.Errorf("%w: missing dimensions", ErrMalformedPayload)}
	}

	seriesKeys := dims.Series[0].Values
	periods := dims.Observation[0].Values

	refByKey := make(map[string]SeriesRef, len(refs))
	for _, ref := range refs {
		_, key, _ := strings.Cut(ref.ID, "/")
		refByKey[key] = ref
	}

	for idxKey, series := range payload.DataSets[0].Series {
		seriesIdx, err := strconv.Atoi(strings.SplitN(idxKey, ":", 2)[0])
		if err != nil || seriesIdx < 0 || seriesIdx >= len(seriesKeys) {
			return &SourceError{Source: c.Name(), Unit: unit, Err: fmt.Errorf("%w: series index %q", ErrMalformedPayload, idxKey)}
		}
		ref, ok := refByKey[seriesKeys[seriesIdx].ID]
		if !ok {
			continue // series we did not ask for
		}

		for obsKey, values := range series.Observations {
			periodIdx, err := strconv.Atoi(obsKey)
			if err != nil || periodIdx < 0 || periodIdx >= len(periods) {
				return &SourceError{Source: c.Name(), Unit: unit, Err: fmt.Errorf("%w: observation index %q", ErrMalformedPayload, obsKey)}
			}

			date, label, err := period.Parse(periods[periodIdx].ID)
			if err != nil {
				return &SourceError{Source: c.Name(), Unit: unit, Err: err}
			}

			out[ref.ID] = append(out[ref.ID], model.Observation{
				Date:              date.Format(period.DateLayout),
				Value:             sdmxValue(values),
				Period:            label,
				SourceIndicatorID: ref.ID,
				CountryCode:       ref.Country,
			})
		}
	}
	return nil
}

// sdmxValue extracts the first element of an observation array without
// rounding: numbers are re-rendered with full precision, strings pass
// through, null becomes the missing sentinel.
func sdmxValue(values []any) string {
	if len(values) == 0 || values[0] == nil {
		return model.MissingValue
	}
	switch v := values[0].(type) {
	case string:
		if v == "" {
			return model.MissingValue
		}
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func splitRefs(refs []SeriesRef) (string, []string, error) {
	var flow string
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		f, key, found := strings.Cut(ref.ID, "/")
		if !found {
			return "", nil, fmt.Errorf("sdmx: ref %q is not flow/key", ref.ID)
		}
		if flow == "" {
			flow = f
		} else if flow != f {
			return "", nil, fmt.Errorf("sdmx: refs span multiple flows (%s, %s)", flow, f)
		}
		keys = append(keys, key)
	}
	return flow, keys, nil
}
