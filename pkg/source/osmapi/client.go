// Package osmapi implements source.Source over the OpenStreetMap editing API
// (v0.6) using github.com/paulmach/osm/osmapi.
//
// Requests for more member ways or nodes than the configured entity limit
// return an empty result without contacting the server. Bandwidth-limit
// responses (HTTP 509, and 429) are intercepted at the transport and
// translated to *errors.RateLimitedError with the delay parsed from the
// response body ("... try again in N seconds") or the Retry-After header.
package osmapi

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmapi"

	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/geo"
	"github.com/matzehuels/geomap/pkg/observability"
	"github.com/matzehuels/geomap/pkg/source"
)

// DefaultBaseURL is the public OSM API endpoint.
const DefaultBaseURL = "https://api.openstreetmap.org/api/0.6"

// defaultRetryAfter is used when a throttling response carries no delay.
const defaultRetryAfter = 60

const httpTimeout = 6 * time.Minute

// API is the subset of *osmapi.Datasource the client uses.
type API interface {
	Map(ctx context.Context, bounds *osm.Bounds, opts ...osmapi.FeatureOption) (*osm.OSM, error)
	Relation(ctx context.Context, id osm.RelationID, opts ...osmapi.FeatureOption) (*osm.Relation, error)
	Ways(ctx context.Context, ids []osm.WayID, opts ...osmapi.FeatureOption) (osm.Ways, error)
	Nodes(ctx context.Context, ids []osm.NodeID, opts ...osmapi.FeatureOption) (osm.Nodes, error)
}

// Config configures a [Client].
type Config struct {
	BaseURL     string       // defaults to DefaultBaseURL
	HTTPClient  *http.Client // defaults to a client with a 6 minute timeout; never modified
	EntityLimit int          // defaults to source.DefaultEntityLimit
	Logger      *log.Logger
}

// Client fetches map data from the OSM API.
type Client struct {
	api    API
	limit  int
	logger *log.Logger
}

// New creates a client for the API at cfg.BaseURL.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	hc := &http.Client{Timeout: httpTimeout}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		hc = &copied
	}
	hc.Transport = newThrottleTransport(hc.Transport)
	ds := &osmapi.Datasource{BaseURL: cfg.BaseURL, Client: hc}
	return NewWithAPI(ds, cfg.EntityLimit, cfg.Logger)
}

// NewWithAPI creates a client over an existing API implementation.
func NewWithAPI(api API, entityLimit int, logger *log.Logger) *Client {
	if entityLimit <= 0 {
		entityLimit = source.DefaultEntityLimit
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Client{api: api, limit: entityLimit, logger: logger}
}

// FetchSector downloads everything inside box.
func (c *Client) FetchSector(ctx context.Context, box geo.BoundingBox) (*osm.OSM, error) {
	if err := source.ValidateSector(box); err != nil {
		return nil, err
	}
	start := time.Now()
	observability.Fetch().OnRequest(ctx, "sector", box.String())

	o, err := c.api.Map(ctx, source.Bounds(box))
	if err != nil {
		return nil, translate(err, "fetch sector %s", box)
	}
	observability.Fetch().OnResponse(ctx, "sector", source.Entities(o), time.Since(start))
	return o, nil
}

// FetchWays downloads the member ways of a relation. Relations with more
// member ways than the entity limit yield an empty map.
func (c *Client) FetchWays(ctx context.Context, id osm.RelationID) (map[osm.WayID]*osm.Way, error) {
	start := time.Now()
	observability.Fetch().OnRequest(ctx, "ways", strconv.FormatInt(int64(id), 10))

	rel, err := c.api.Relation(ctx, id)
	if err != nil {
		return nil, translate(err, "fetch relation %d", id)
	}

	var ids []osm.WayID
	for _, m := range rel.Members {
		if m.Type == osm.TypeWay {
			ids = append(ids, osm.WayID(m.Ref))
		}
	}
	out := make(map[osm.WayID]*osm.Way, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if source.OverLimit(len(ids), c.limit) {
		c.logger.Debug("relation too large, skipping", "relation", id, "ways", len(ids), "limit", c.limit)
		return out, nil
	}

	ways, err := c.api.Ways(ctx, ids)
	if err != nil {
		return nil, translate(err, "fetch ways of relation %d", id)
	}
	for _, w := range ways {
		out[w.ID] = w
	}
	observability.Fetch().OnResponse(ctx, "ways", len(out), time.Since(start))
	return out, nil
}

// FetchNodes downloads nodes by id. Requests over the entity limit yield an
// empty map.
func (c *Client) FetchNodes(ctx context.Context, ids []osm.NodeID) (map[osm.NodeID]*osm.Node, error) {
	ids = unique(ids)
	out := make(map[osm.NodeID]*osm.Node, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if source.OverLimit(len(ids), c.limit) {
		c.logger.Debug("node request too large, skipping", "nodes", len(ids), "limit", c.limit)
		return out, nil
	}

	start := time.Now()
	observability.Fetch().OnRequest(ctx, "nodes", strconv.Itoa(len(ids)))
	nodes, err := c.api.Nodes(ctx, ids)
	if err != nil {
		return nil, translate(err, "fetch %d nodes", len(ids))
	}
	for _, n := range nodes {
		out[n.ID] = n
	}
	observability.Fetch().OnResponse(ctx, "nodes", len(out), time.Since(start))
	return out, nil
}

var _ source.Source = (*Client)(nil)

var retryAfterPattern = regexp.MustCompile(`(?i)try again in (\d+) seconds?`)

// ParseRetryAfter extracts N from a "... try again in N seconds" message.
func ParseRetryAfter(body string) (int, bool) {
	m := retryAfterPattern.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// translate maps osmapi errors onto error codes.
func translate(err error, format string, args ...any) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var limited *errors.RateLimitedError
	if stderrors.As(err, &limited) {
		return limited
	}

	// Throttling statuses only get here when the API is not backed by
	// throttleTransport.
	var status *osmapi.UnexpectedStatusCodeError
	if stderrors.As(err, &status) {
		if status.Code == statusBandwidthExceeded || status.Code == http.StatusTooManyRequests {
			return &errors.RateLimitedError{RetryAfter: defaultRetryAfter}
		}
		return errors.Wrap(errors.ErrCodeNetwork, err, format, args...)
	}

	var notFound *osmapi.NotFoundError
	var gone *osmapi.GoneError
	if stderrors.As(err, &notFound) || stderrors.As(err, &gone) {
		return errors.Wrap(errors.ErrCodeNotFound, err, format, args...)
	}
	return errors.Wrap(errors.ErrCodeNetwork, err, format, args...)
}

func unique(ids []osm.NodeID) []osm.NodeID {
	seen := make(map[osm.NodeID]struct{}, len(ids))
	out := make([]osm.NodeID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
