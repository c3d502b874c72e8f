package osmapi

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmapi"

	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/geo"
)

type fakeAPI struct {
	mapResp  *osm.OSM
	relation *osm.Relation
	ways     osm.Ways
	nodes    osm.Nodes
	err      error

	mapBounds *osm.Bounds
	wayIDs    []osm.WayID
	nodeIDs   []osm.NodeID
	calls     int
}

func (f *fakeAPI) Map(ctx context.Context, b *osm.Bounds, _ ...osmapi.FeatureOption) (*osm.OSM, error) {
	f.calls++
	f.mapBounds = b
	return f.mapResp, f.err
}

func (f *fakeAPI) Relation(ctx context.Context, id osm.RelationID, _ ...osmapi.FeatureOption) (*osm.Relation, error) {
	f.calls++
	return f.relation, f.err
}

func (f *fakeAPI) Ways(ctx context.Context, ids []osm.WayID, _ ...osmapi.FeatureOption) (osm.Ways, error) {
	f.calls++
	f.wayIDs = ids
	return f.ways, f.err
}

func (f *fakeAPI) Nodes(ctx context.Context, ids []osm.NodeID, _ ...osmapi.FeatureOption) (osm.Nodes, error) {
	f.calls++
	f.nodeIDs = ids
	return f.nodes, f.err
}

var box = geo.BoundingBox{MinLon: 30.30, MinLat: 59.93, MaxLon: 30.31, MaxLat: 59.94}

func TestFetchSector(t *testing.T) {
	api := &fakeAPI{mapResp: &osm.OSM{Nodes: osm.Nodes{{ID: 1}}}}
	c := NewWithAPI(api, 0, nil)

	o, err := c.FetchSector(context.Background(), box)
	if err != nil {
		t.Fatalf("FetchSector() error = %v", err)
	}
	if len(o.Nodes) != 1 {
		t.Errorf("FetchSector() nodes = %d, want 1", len(o.Nodes))
	}
	want := osm.Bounds{MinLat: 59.93, MaxLat: 59.94, MinLon: 30.30, MaxLon: 30.31}
	if *api.mapBounds != want {
		t.Errorf("requested bounds = %+v, want %+v", *api.mapBounds, want)
	}
}

func TestFetchSectorRejectsMalformedSector(t *testing.T) {
	api := &fakeAPI{}
	c := NewWithAPI(api, 0, nil)
	bad := geo.BoundingBox{MinLon: 1, MinLat: 1, MaxLon: 1, MaxLat: 2}

	_, err := c.FetchSector(context.Background(), bad)
	if !errors.Is(err, errors.ErrCodeInvalidSector) || !errors.IsFatal(err) {
		t.Errorf("FetchSector() error = %v, want fatal %s", err, errors.ErrCodeInvalidSector)
	}
	if api.calls != 0 {
		t.Errorf("API called %d times for malformed sector", api.calls)
	}
}

func TestFetchWays(t *testing.T) {
	rel := &osm.Relation{
		ID: 7,
		Members: osm.Members{
			{Type: osm.TypeWay, Ref: 10, Role: "outer"},
			{Type: osm.TypeNode, Ref: 99},
			{Type: osm.TypeWay, Ref: 11, Role: "inner"},
		},
	}
	api := &fakeAPI{relation: rel, ways: osm.Ways{{ID: 10}, {ID: 11}}}
	c := NewWithAPI(api, 0, nil)

	ways, err := c.FetchWays(context.Background(), 7)
	if err != nil {
		t.Fatalf("FetchWays() error = %v", err)
	}
	if len(ways) != 2 || ways[10] == nil || ways[11] == nil {
		t.Errorf("FetchWays() = %v, want ways 10 and 11", ways)
	}
	if len(api.wayIDs) != 2 {
		t.Errorf("requested way ids = %v, want [10 11]", api.wayIDs)
	}
}

func TestEntityLimit(t *testing.T) {
	members := make(osm.Members, 3)
	for i := range members {
		members[i] = osm.Member{Type: osm.TypeWay, Ref: int64(i + 1)}
	}
	api := &fakeAPI{relation: &osm.Relation{ID: 1, Members: members}}
	c := NewWithAPI(api, 2, nil)

	ways, err := c.FetchWays(context.Background(), 1)
	if err != nil || len(ways) != 0 {
		t.Errorf("FetchWays() over limit = %v, %v; want empty, nil", ways, err)
	}
	if api.wayIDs != nil {
		t.Error("Ways requested despite exceeding the limit")
	}

	nodes, err := c.FetchNodes(context.Background(), []osm.NodeID{1, 2, 3})
	if err != nil || len(nodes) != 0 {
		t.Errorf("FetchNodes() over limit = %v, %v; want empty, nil", nodes, err)
	}
	if api.nodeIDs != nil {
		t.Error("Nodes requested despite exceeding the limit")
	}

	// duplicates do not count toward the limit
	api.nodes = osm.Nodes{{ID: 1}, {ID: 2}}
	nodes, err = c.FetchNodes(context.Background(), []osm.NodeID{1, 2, 1, 2})
	if err != nil || len(nodes) != 2 {
		t.Errorf("FetchNodes() with duplicates = %v, %v; want 2 nodes", nodes, err)
	}
}

func TestRateLimitTranslation(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantRL    bool
		wantAfter int
		wantCode  errors.Code
	}{
		{
			name:      "limit raised by the transport",
			err:       &url.Error{Op: "Get", URL: "x", Err: &errors.RateLimitedError{RetryAfter: 17}},
			wantRL:    true,
			wantAfter: 17,
		},
		{
			name:      "bandwidth status without transport",
			err:       &osmapi.UnexpectedStatusCodeError{Code: 509},
			wantRL:    true,
			wantAfter: defaultRetryAfter,
		},
		{
			name:     "server error",
			err:      &osmapi.UnexpectedStatusCodeError{Code: 500},
			wantCode: errors.ErrCodeNetwork,
		},
		{
			name:     "not found",
			err:      &osmapi.NotFoundError{URL: "x"},
			wantCode: errors.ErrCodeNotFound,
		},
		{
			name:     "transport",
			err:      stderrors.New("dial tcp: connection refused"),
			wantCode: errors.ErrCodeNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewWithAPI(&fakeAPI{err: tt.err}, 0, nil)
			_, err := c.FetchSector(context.Background(), box)
			if err == nil {
				t.Fatal("FetchSector() error = nil")
			}
			after, rl := errors.RetryAfter(err)
			if rl != tt.wantRL {
				t.Fatalf("rate limited = %v, want %v (err %v)", rl, tt.wantRL, err)
			}
			if rl && after != tt.wantAfter {
				t.Errorf("RetryAfter = %d, want %d", after, tt.wantAfter)
			}
			if !rl && !errors.Is(err, tt.wantCode) {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
			if errors.IsFatal(err) {
				t.Errorf("fetch error %v must not be fatal", err)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		body   string
		want   int
		wantOK bool
	}{
		{"You have downloaded too much data. Please try again in 3 seconds.", 3, true},
		{"Try again in 1 second", 1, true},
		{"Bandwidth limit exceeded", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseRetryAfter(tt.body)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseRetryAfter(%q) = %d, %v; want %d, %v", tt.body, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestThrottlingResponses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		header    string
		body      string
		wantAfter int
	}{
		{"bandwidth body", 509, "", "You have downloaded too much data. Please try again in 3 seconds.", 3},
		{"body wins over header", 509, "40", "Please try again in 3 seconds.", 3},
		{"retry-after header", http.StatusTooManyRequests, "7", "", 7},
		{"no delay given", http.StatusTooManyRequests, "", "slow down", defaultRetryAfter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(Config{BaseURL: srv.URL})
			_, err := c.FetchSector(context.Background(), box)
			after, ok := errors.RetryAfter(err)
			if !ok {
				t.Fatalf("FetchSector() error = %v, want rate limited", err)
			}
			if after != tt.wantAfter {
				t.Errorf("RetryAfter = %d, want %d", after, tt.wantAfter)
			}
		})
	}
}

func TestServerResponses(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch {
		case r.URL.Path == "/api/0.6/map":
			w.Write([]byte(`<osm version="0.6"><node id="1" lat="59.935" lon="30.305" visible="true"/></osm>`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	hc := &http.Client{Timeout: time.Minute}
	c := New(Config{BaseURL: srv.URL + "/api/0.6", HTTPClient: hc})

	o, err := c.FetchSector(context.Background(), box)
	if err != nil {
		t.Fatalf("FetchSector() error = %v", err)
	}
	if len(o.Nodes) != 1 || o.Nodes[0].ID != 1 {
		t.Errorf("FetchSector() nodes = %v, want node 1", o.Nodes)
	}
	if hc.Transport != nil {
		t.Error("caller's HTTP client was modified")
	}

	_, err = c.FetchNodes(context.Background(), []osm.NodeID{1})
	if errors.IsRateLimited(err) || !errors.Is(err, errors.ErrCodeNetwork) {
		t.Errorf("FetchNodes() error = %v, want %s", err, errors.ErrCodeNetwork)
	}
	if len(paths) != 2 {
		t.Errorf("requests = %v, want 2", paths)
	}
}

func TestRetryAfterHeader(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tr := newThrottleTransport(nil)
	tr.now = func() time.Time { return now }

	tests := []struct {
		value  string
		want   int
		wantOK bool
	}{
		{"12", 12, true},
		{" 0 ", 0, true},
		{now.Add(30 * time.Second).Format(http.TimeFormat), 30, true},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0, true},
		{"", 0, false},
		{"soon", 0, false},
		{"-5", 0, false},
	}
	for _, tt := range tests {
		got, ok := tr.retryAfterHeader(tt.value)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("retryAfterHeader(%q) = %d, %v; want %d, %v", tt.value, got, ok, tt.want, tt.wantOK)
		}
	}
}
