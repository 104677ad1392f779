package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"

	"github.com/macrofeed/macrofeed/internal/domain/classify"
	"github.com/macrofeed/macrofeed/internal/domain/model"
	"github.com/macrofeed/macrofeed/internal/domain/period"
)

// Calendar scraper defaults.
const (
	calendarMinInterval    = 2 * time.Second
	calendarRequestTimeout = 30 * time.Second
)

// CalendarClient scrapes a calendar-style HTML page into events. Two of
// these run per calendar import: a primary and a secondary fallback.
type CalendarClient struct {
	http     *resty.Client
	name     string
	throttle throttle
}

// CalendarOption applies a configuration option to the CalendarClient.
type CalendarOption func(*CalendarClient)

// WithCalendarMinInterval overrides the fixed inter-request delay.
func WithCalendarMinInterval(d time.Duration) CalendarOption {
	return func(c *CalendarClient) {
		if d > 0 {
			c.throttle = newIntervalThrottle(d)
		}
	}
}

// NewCalendarClient builds a scraper for one calendar page. name should
// be NameCalendarPrimary or NameCalendarSecondary so priority ranking and
// summaries can tell the two apart.
func NewCalendarClient(name, baseURL string, opts ...CalendarOption) (*CalendarClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("calendar %s: base URL must not be empty", name)
	}
	c := &CalendarClient{
		http:     resty.New().SetBaseURL(baseURL).SetTimeout(calendarRequestTimeout),
		name:     name,
		throttle: newIntervalThrottle(calendarMinInterval),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name identifies the source in summaries and priority ranking.
func (c *CalendarClient) Name() string { return c.name }

// FetchMonth scrapes one month's calendar page.
func (c *CalendarClient) FetchMonth(ctx context.Context, m Month) ([]model.CalendarEvent, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, &SourceError{Source: c.name, Unit: m.String(), Err: err}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("month", m.String()).
		Get("/calendar")
	if err != nil {
		return nil, &SourceError{Source: c.name, Unit: m.String(), Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &SourceError{
			Source:     c.name,
			Unit:       m.String(),
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("request failed: %s", resp.Status()),
		}
	}

	events, err := parseCalendarHTML(string(resp.Body()), c.http.BaseURL)
	if err != nil {
		return nil, &SourceError{Source: c.name, Unit: m.String(), Err: err}
	}
	return events, nil
}

// calendarNode is one relevant row found during the first parse pass,
// tagged with its document-order position.
type calendarNode struct {
	pos   int
	day   string // set for day markers (YYYY-MM-DD)
	event *html.Node
}

// parseCalendarHTML scrapes events out of a calendar page in two passes:
// first collect day markers and event rows with their document-order
// positions, then assign each event to the closest preceding marker.
// Rows before the first marker have no date and are dropped. The explicit
// accumulator replaces a mutable "current day" cursor so no parse state
// leaks across node visits.
func parseCalendarHTML(page, sourceURL string) ([]model.CalendarEvent, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var nodes []calendarNode
	pos := 0
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch {
		case hasClass(n, "calendar-day"):
			if day := dayOf(n); day != "" {
				nodes = append(nodes, calendarNode{pos: pos, day: day})
				pos++
			}
		case hasClass(n, "calendar-event"):
			nodes = append(nodes, calendarNode{pos: pos, event: n})
			pos++
		}
	})

	var events []model.CalendarEvent
	currentDay := ""
	for _, cn := range nodes {
		if cn.day != "" {
			currentDay = cn.day
			continue
		}
		if currentDay == "" {
			continue
		}
		if ev, ok := eventFromRow(cn.event, currentDay, sourceURL); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

// eventFromRow maps one event row onto a CalendarEvent. Rows without an
// event name are skipped.
func eventFromRow(row *html.Node, day, sourceURL string) (model.CalendarEvent, bool) {
	name := strings.TrimSpace(textOfClass(row, "event"))
	if name == "" {
		return model.CalendarEvent{}, false
	}

	link := sourceURL
	if href := firstHref(row); href != "" {
		link = href
	}

	// A provider-supplied supplementary report promotes impact to at
	// least Medium.
	hasReport := attr(row, "data-report") != ""

	return model.CalendarEvent{
		Country:    strings.ToUpper(strings.TrimSpace(textOfClass(row, "country"))),
		EventName:  name,
		Date:       day,
		Time:       strings.TrimSpace(textOfClass(row, "time")),
		Impact:     classify.Impact(name, hasReport),
		Category:   classify.Category(name),
		SourceLink: link,
	}, true
}

// dayOf reads a marker's date from its data-date attribute, falling back
// to parsing the cell text ("Monday, January 2, 2006").
func dayOf(n *html.Node) string {
	if d := attr(n, "data-date"); d != "" {
		if _, err := time.Parse(period.DateLayout, d); err == nil {
			return d
		}
		return ""
	}
	text := strings.TrimSpace(textContent(n))
	if t, err := time.Parse("Monday, January 2, 2006", text); err == nil {
		return t.Format(period.DateLayout)
	}
	return ""
}

// walk visits n and its descendants depth-first in document order.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(child, visit)
	}
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(textContent(child))
	}
	return b.String()
}

// textOfClass returns the text of the first descendant carrying class.
func textOfClass(n *html.Node, class string) string {
	var found string
	walk(n, func(c *html.Node) {
		if found == "" && c.Type == html.ElementNode && hasClass(c, class) {
			found = textContent(c)
		}
	})
	return found
}

func firstHref(n *html.Node) string {
	var href string
	walk(n, func(c *html.Node) {
		if href == "" && c.Type == html.ElementNode && c.Data == "a" {
			href = attr(c, "href")
		}
	})
	return href
}
