// Package rosterapi is the HTTP client of the college roster API.
package rosterapi

import (
	"bytes"
	"context"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/roster"
)

const (
	maxErrorBody = 64 << 10
	maxPageBody  = 32 << 20
	breakerName  = "roster-api"
)

var (
	ErrInvalidPage = errors.New("invalid page request")

	errUpstream = errors.New("upstream unavailable") // counted as a breaker failure
)

// resources maps the entity kinds to their API resource.
var resources = map[roster.Kind]string{
	roster.KindInstitution: "organizations/institutions",
	roster.KindDepartment:  "organizations/departments",
	roster.KindStaff:       "staff",
	roster.KindStudent:     "students",
}

type reply struct {
	status int
	body   []byte
}

// Client fetches roster pages. It is safe for concurrent use: the rate limiter & the circuit breaker
// are shared by all the copies returned by WithAPIKey.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[reply]
	logger  core.Logger
}

func NewClient(conf core.RosterConfig, logger core.Logger) *Client {
	limit := rate.Inf
	if conf.RequestsPerSecond > 0 {
		limit = rate.Limit(conf.RequestsPerSecond)
	}
	burst := conf.Burst
	if burst < 1 {
		burst = 1
	}

	cb := gobreaker.NewCircuitBreaker[reply](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", map[string]interface{}{"breaker": name, "from": from.String(), "to": to.String()})
		},
	})

	return &Client{
		baseURL: conf.BaseURL,
		http:    &http.Client{Timeout: conf.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		cb:      cb,
		logger:  logger,
	}
}

// WithAPIKey returns a copy of the client sending `apiKey` as bearer token.
func (c *Client) WithAPIKey(apiKey string) roster.Source {
	cp := *c
	cp.apiKey = apiKey
	return &cp
}

var _ roster.Source = (*Client)(nil)

// FetchPage fetches one page of `kind`. Failures are *roster.APIError, classified by how far they
// propagate in a sync run.
func (c *Client) FetchPage(ctx context.Context, kind roster.Kind, page, pageSize int) (roster.Page, error) {
	resource, ok := resources[kind]
	if !ok {
		return roster.Page{}, errors.Wrapf(ErrInvalidPage, "unknown entity kind %q", kind)
	}
	if page < 1 {
		return roster.Page{}, errors.Wrapf(ErrInvalidPage, "page must be at least 1 (got %d)", page)
	}
	if pageSize < 1 || pageSize > core.MaxRosterPageSize {
		return roster.Page{}, errors.Wrapf(ErrInvalidPage, "page size must be between 1 and %d (got %d)", core.MaxRosterPageSize, pageSize)
	}
	if c.apiKey == "" {
		return roster.Page{}, roster.NewAPIError(roster.ClassAuthorization, kind, 0, errors.New("no API key"))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return roster.Page{}, errors.Wrap(err, "waiting for rate limiter")
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(pageSize))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api-management/"+resource+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return roster.Page{}, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	rep, err := c.cb.Execute(func() (reply, error) { return c.do(req) })
	if err != nil && rep.status == 0 {
		if ctx.Err() != nil {
			return roster.Page{}, ctx.Err()
		}
		// transport failure or open circuit
		return roster.Page{}, roster.NewAPIError(roster.ClassTransient, kind, 0, err)
	}
	return c.parse(kind, page, pageSize, rep)
}

// do sends `req`, reading the body. 5xx & 429 responses are reported as errUpstream.
func (c *Client) do(req *http.Request) (reply, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return reply{}, err
	}
	defer resp.Body.Close()

	limit := int64(maxPageBody)
	if resp.StatusCode >= http.StatusMultipleChoices {
		limit = maxErrorBody
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return reply{}, errors.Wrap(err, "reading response body")
	}

	rep := reply{status: resp.StatusCode, body: body}
	if rep.status >= http.StatusInternalServerError || rep.status == http.StatusTooManyRequests {
		return rep, errUpstream
	}
	return rep, nil
}

func (c *Client) parse(kind roster.Kind, page, pageSize int, rep reply) (roster.Page, error) {
	statusErr := func(class roster.ErrorClass) error {
		return roster.NewAPIError(class, kind, rep.status, errors.New(string(bytes.TrimSpace(rep.body))))
	}

	switch s := rep.status; {
	case s == http.StatusUnauthorized || s == http.StatusForbidden:
		return roster.Page{}, statusErr(roster.ClassAuthorization)
	case s == http.StatusNotFound:
		return roster.Page{}, statusErr(roster.ClassEndpointNotFound)
	case s >= http.StatusInternalServerError || s == http.StatusTooManyRequests:
		return roster.Page{}, statusErr(roster.ClassTransient)
	case s < http.StatusOK || s >= http.StatusMultipleChoices:
		return roster.Page{}, statusErr(roster.ClassMalformedResponse)
	}

	env, err := decodeEnvelope(rep.body)
	if err != nil {
		return roster.Page{}, roster.NewAPIError(roster.ClassMalformedResponse, kind, rep.status, err)
	}

	res := roster.Page{Records: *env.Data, Page: page, TotalPages: 1}
	if total, ok := env.Metadata.number("totalPages", "total_pages"); ok {
		res.TotalPages = total
	} else if total, ok = env.Metadata.number("total"); ok {
		res.TotalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	res.HasMorePages = page < res.TotalPages
	return res, nil
}

type metadata roster.RawRecord

// int reads the first of `keys` holding an integer.
func (md metadata) number(keys ...string) (int, bool) {
	if md == nil {
		return 0, false
	}
	val := roster.RawRecord(md).Text("", keys...)
	if val == "" {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	return n, err == nil
}

type envelope struct {
	Data     *[]roster.RawRecord `json:"data"`
	Metadata metadata            `json:"metadata"`
}

func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return envelope{}, errors.Wrap(err, "decoding response envelope")
	}
	if env.Data == nil {
		return envelope{}, errors.New("response envelope has no data")
	}
	return env, nil
}
