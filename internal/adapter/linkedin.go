package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jobsift/jobsift/internal/browser"
	"github.com/jobsift/jobsift/internal/clock"
	"github.com/jobsift/jobsift/internal/jobs"
	"github.com/jobsift/jobsift/internal/metrics"
	"github.com/jobsift/jobsift/internal/search"
)

const (
	linkedinJobsPerPage = 10
	linkedinMaxJobCount = 1000

	linkedinSearchEndpoint  = "/jobs/"
	linkedinGuestEndpoint   = "/jobs-guest/jobs/api/seeMoreJobPostings/"
	linkedinDateLayout      = "2006-01-02"
	linkedinContentURLStart = "https://www.linkedin.com/jobs"
)

func linkedinProfile() browser.Profile {
	return browser.Profile{
		// the guest endpoints bounce unauthenticated sessions to the
		// authwall; aborting those redirects keeps the results response as
		// the newest captured exchange
		BlockPath: func(host, path string) bool {
			if host != "www.linkedin.com" {
				return false
			}
			return path == "" || path == "authwall" || path == "favicon.ico"
		},
		Match: linkedinContentMatch,
	}
}

func linkedinContentMatch(u string) bool {
	return strings.HasPrefix(u, linkedinContentURLStart)
}

// LinkedIn crawls LinkedIn's guest job search. It implements Searcher and
// Enricher.
type LinkedIn struct {
	fetch  Fetcher
	clock  clock.Clock
	logger *zap.Logger
}

// NewLinkedIn builds the LinkedIn adapter.
func NewLinkedIn(fetch Fetcher, clk clock.Clock, logger *zap.Logger) *LinkedIn {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &LinkedIn{fetch: fetch, clock: clk, logger: logger}
}

// Name returns the parser name sources register under.
func (a *LinkedIn) Name() string { return "linkedin" }

// searchURL builds a guest search URL. Parameter order is fixed; the site's
// guest endpoints are picky about it.
func (a *LinkedIn) searchURL(endpoint string, q search.Query, page int, window time.Duration) string {
	var params []string
	add := func(key, value string) {
		params = append(params, key+"="+value)
	}

	add("keywords", url.QueryEscape(q.Keywords))
	add("geo_id", strconv.FormatInt(q.GeoID, 10))

	if q.EasyApply {
		add("f_AL", "true")
	}

	var wt []string
	if q.Onsite {
		wt = append(wt, "1")
	}
	if q.Remote {
		wt = append(wt, "2")
	}
	if q.Hybrid {
		wt = append(wt, "3")
	}
	if len(wt) > 0 {
		add("f_WT", url.QueryEscape(strings.Join(wt, ",")))
	}

	if page > 1 {
		add("start", strconv.Itoa(linkedinJobsPerPage*(page-1)))
	}

	if window > 0 {
		add("f_TPR", fmt.Sprintf("r%d", int64(window.Seconds())))
	}

	// names with a comma are taken to be city-level locations; bound the
	// search radius for those
	if strings.Contains(q.LocationName, ",") {
		add("distance", "25")
	}

	return "https://linkedin.com" + endpoint + "search?" + strings.Join(params, "&")
}

// jobCount fetches the result-count header from the interactive search page.
// Any failure along the way reads as zero results.
func (a *LinkedIn) jobCount(ctx context.Context, q search.Query) int {
	u := a.searchURL(linkedinSearchEndpoint, q, 1, 0)
	resp, err := a.fetch.Get(ctx, u, linkedinContentMatch)
	if err != nil {
		a.logger.Error("unable to retrieve job count", zap.String("url", u), zap.Error(err))
		return 0
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.HTML))
	if err != nil {
		a.logger.Error("parsing job count page", zap.Error(err))
		return 0
	}

	tag := doc.Find("span.results-context-header__job-count").First()
	if tag.Length() == 0 {
		a.logger.Error("results-context-header__job-count not found")
		return 0
	}

	count, err := strconv.Atoi(digits(tag.Text()))
	if err != nil {
		a.logger.Error("parsing job count", zap.String("text", tag.Text()), zap.Error(err))
		return 0
	}
	if count > linkedinMaxJobCount {
		count = linkedinMaxJobCount
	}
	return count
}

// PageCount estimates result pages from the reported job count. Zero counts
// still get one page so a crawl always looks at something.
func (a *LinkedIn) PageCount(ctx context.Context, q search.Query) int {
	count := a.jobCount(ctx, q)
	if count == 0 {
		a.logger.Info("setting page count to 1", zap.String("query", q.String()))
		return 1
	}
	return count/linkedinJobsPerPage + 1
}

// ExtractPage fetches one guest-API result page and parses its job cards.
// Cards missing a required field are logged and dropped.
func (a *LinkedIn) ExtractPage(
	ctx context.Context,
	q search.Query,
	page int,
	window time.Duration,
) ([]jobs.Record, error) {
	u := a.searchURL(linkedinGuestEndpoint, q, page, window)
	resp, err := a.fetch.Get(ctx, u, linkedinContentMatch)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.HTML))
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}

	var records []jobs.Record
	doc.Find("div.job-search-card").Each(func(_ int, card *goquery.Selection) {
		rec, err := a.parseCard(card)
		if err != nil {
			a.logger.Warn("discarding job card", zap.Int("page", page), zap.Error(err))
			metrics.ObserveRecord(a.Name(), "discarded")
			return
		}
		metrics.ObserveRecord(a.Name(), "extracted")
		records = append(records, rec)
	})
	return records, nil
}

// parseCard extracts one job card. Location is optional; every other field
// is required and its absence fails the whole card.
func (a *LinkedIn) parseCard(card *goquery.Selection) (jobs.Record, error) {
	var rec jobs.Record
	var errs []error

	company := card.Find("h4.base-search-card__subtitle a").First()
	if company.Length() == 0 {
		errs = append(errs, errors.New("company link not found"))
	} else {
		rec.Company = strings.TrimSpace(company.Text())
		if href, ok := company.Attr("href"); ok && href != "" {
			rec.CompanyURL = stripQuery(href)
		} else {
			errs = append(errs, errors.New("company url not found"))
		}
	}

	title := card.Find("h3.base-search-card__title").First()
	if title.Length() == 0 {
		errs = append(errs, errors.New("title not found"))
	} else {
		rec.Title = strings.TrimSpace(title.Text())
	}

	if href, ok := card.Find("a.base-card__full-link").First().Attr("href"); ok && href != "" {
		rec.URL = stripQuery(href)
	} else {
		errs = append(errs, errors.New("job url not found"))
	}

	if loc := card.Find("span.job-search-card__location").First(); loc.Length() > 0 {
		rec.Location = strings.TrimSpace(loc.Text())
	} else {
		a.logger.Debug("job card has no location")
	}

	posted := card.Find("time.job-search-card__listdate").First()
	if posted.Length() == 0 {
		posted = card.Find("time.job-search-card__listdate--new").First()
	}
	if dt, ok := posted.Attr("datetime"); ok {
		t, err := time.Parse(linkedinDateLayout, dt)
		if err != nil {
			errs = append(errs, fmt.Errorf("posted date %q: %w", dt, err))
		} else {
			rec.PostedAt = t
		}
	} else {
		errs = append(errs, errors.New("posted date not found"))
	}

	rec.FoundAt = a.clock.Now()

	if len(errs) > 0 {
		return jobs.Record{}, errors.Join(errs...)
	}
	return rec, nil
}

// Enrich loads the posting's detail page and fills in description, raw HTML
// and the easy-apply flag. A posting whose page is gone upstream (terminal
// 404) is reported expired rather than erroring.
func (a *LinkedIn) Enrich(ctx context.Context, job *jobs.Job) (bool, error) {
	resp, err := a.fetch.Get(ctx, job.URL, nil)
	if err != nil {
		var exhausted *browser.ExhaustedError
		if errors.As(err, &exhausted) && exhausted.LastStatus == http.StatusNotFound {
			a.logger.Warn("job not found upstream, marking as expired", zap.String("url", job.URL))
			metrics.ObserveEnrichment("expired")
			return true, nil
		}
		metrics.ObserveEnrichment("error")
		return false, err
	}

	job.RawHTML = resp.HTML

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.HTML))
	if err != nil {
		return false, fmt.Errorf("parsing detail page: %w", err)
	}

	desc := doc.Find("div.show-more-less-html__markup").First()
	if html, err := desc.Html(); err == nil && desc.Length() > 0 {
		job.Description = strings.TrimSpace(html)
	} else {
		a.logger.Warn("job description not found", zap.String("url", job.URL))
	}

	// an applyUrl marker means the application happens off-site; its absence
	// is what flags the posting as easy apply
	job.EasyApply = doc.Find("code#applyUrl").Length() == 0

	job.Populated = true
	metrics.ObserveEnrichment("populated")
	return false, nil
}

// digits strips everything but ASCII digits, e.g. "1,234+ results" -> "1234".
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripQuery drops the query string and fragment from a link.
func stripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
