package browser

import (
	"strings"
)

// infraBlocklist contains hosts the browser itself talks to in the
// background. Aborting them keeps captured exchanges limited to the pages
// under crawl and suppresses telemetry beacons.
var infraBlocklist = []string{
	"accounts.google.com",
	"clients2.google.com",
	"content-autofill.googleapis.com",
	"optimizationguide-pa.googleapis.com",
	"safebrowsing.googleapis.com",
	"update.googleapis.com",
}

// Profile carries a source adapter's interception rules. The zero value
// admits everything and selects responses with the default policy.
type Profile struct {
	// BlockedHosts are aborted in addition to the infrastructure blocklist.
	BlockedHosts []string
	// BlockPath aborts requests by host and path, e.g. auth-wall redirects.
	BlockPath func(host, path string) bool
	// Match identifies exchanges carrying the real page content. Nil means
	// use the default selection policy.
	Match func(url string) bool
}

// Admit decides whether an outgoing request may proceed. Aborted requests
// fail with a synthesized not-found error at the network layer.
func (p Profile) Admit(host, path string) bool {
	for _, h := range infraBlocklist {
		if host == h {
			return false
		}
	}
	for _, h := range p.BlockedHosts {
		if host == h {
			return false
		}
	}
	if p.BlockPath != nil && p.BlockPath(host, path) {
		return false
	}
	return true
}

// Exchange is one captured network response during a navigation.
type Exchange struct {
	URL    string
	Status int
}

// Visit is the outcome of a single navigation: the rendered DOM plus every
// captured exchange in chronological order.
type Visit struct {
	HTML      string
	Exchanges []Exchange
}

// Response is the exchange selected as carrying the page content, paired
// with the rendered DOM it belongs to.
type Response struct {
	URL    string
	Status int
	HTML   string
}

// softFailures are HTTP statuses treated as transient: the navigation is
// retried with a fresh session rather than failing the run.
var softFailures = map[int]bool{
	403: true,
	404: true,
	429: true,
	500: true,
	501: true,
	502: true,
	503: true,
	504: true,
}

// SoftFailure reports whether the status is a retryable soft failure.
func SoftFailure(status int) bool {
	return softFailures[status]
}

// SelectExchange scans captured exchanges in reverse chronological order and
// returns the first one that qualifies as page content. With a matcher, an
// exchange qualifies when its URL matches and its status is not a soft
// failure. Without one, the default policy skips missing responses and 404s
// and returns the first remaining exchange. Nil means no usable response.
func SelectExchange(exchanges []Exchange, match func(url string) bool) *Exchange {
	for i := len(exchanges) - 1; i >= 0; i-- {
		e := exchanges[i]
		if match != nil {
			if match(e.URL) && !SoftFailure(e.Status) {
				return &e
			}
			continue
		}
		if e.Status == 0 || e.Status == 404 {
			continue
		}
		return &e
	}
	return nil
}

// trimPath normalizes a URL path for path-rule matching.
func trimPath(p string) string {
	return strings.Trim(p, "/")
}
