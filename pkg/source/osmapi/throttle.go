package osmapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/geomap/pkg/errors"
)

// statusBandwidthExceeded is the status the OSM API answers with once a
// client exceeds its download quota.
const statusBandwidthExceeded = 509

// maxThrottleBody bounds how much of a throttling response is read.
const maxThrottleBody = 64 << 10

// throttleTransport turns bandwidth-limit and 429 responses into
// *errors.RateLimitedError before the osmapi datasource discards their body
// and headers. The error reaches callers wrapped in a *url.Error.
type throttleTransport struct {
	base http.RoundTripper
	now  func() time.Time
}

func newThrottleTransport(base http.RoundTripper) *throttleTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &throttleTransport{base: base, now: time.Now}
}

func (t *throttleTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != statusBandwidthExceeded && resp.StatusCode != http.StatusTooManyRequests {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxThrottleBody))
	resp.Body.Close()

	msg := strings.TrimSpace(string(body))
	secs, ok := ParseRetryAfter(msg)
	if !ok {
		secs, ok = t.retryAfterHeader(resp.Header.Get("Retry-After"))
	}
	if !ok {
		secs = defaultRetryAfter
	}
	return nil, &errors.RateLimitedError{RetryAfter: secs, Message: msg}
}

// retryAfterHeader reads a Retry-After value given either as delay seconds
// or as an HTTP date.
func (t *throttleTransport) retryAfterHeader(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return n, true
	}
	when, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	secs := int(when.Sub(t.now()).Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return secs, true
}
