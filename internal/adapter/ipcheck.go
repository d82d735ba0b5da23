package adapter

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const ipCheckURL = "https://icanhazip.com/"

// IPCheck reports the session's egress IP address. It exists to verify
// browser and proxy wiring, implementing Prober only.
type IPCheck struct {
	fetch  Fetcher
	logger *zap.Logger
}

// NewIPCheck builds the IP check adapter.
func NewIPCheck(fetch Fetcher, logger *zap.Logger) *IPCheck {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IPCheck{fetch: fetch, logger: logger}
}

// Name returns the parser name sources register under.
func (a *IPCheck) Name() string { return "ip" }

// Probe fetches the egress IP. An unparseable page yields an empty string,
// not an error; the call proved connectivity either way.
func (a *IPCheck) Probe(ctx context.Context) (string, error) {
	resp, err := a.fetch.Get(ctx, ipCheckURL, nil)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.HTML))
	if err != nil {
		a.logger.Warn("parsing ip check page", zap.Error(err))
		return "", nil
	}
	return strings.TrimSpace(doc.Find("pre").First().Text()), nil
}
