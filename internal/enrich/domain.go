package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var domainBlocklist = []string{
	"linkedin.com",
	"indeed.com",
	"glassdoor.com",
	"ziprecruiter.com",
	"monster.com",
	"builtin.com",
	"crunchbase.com",
	"wikipedia.org",
	"facebook.com",
	"twitter.com",
	"x.com",

	// ATS / job boards
	"greenhouse.io",
	"lever.co",
	"myworkdayjobs.com",
	"workday.com",
	"smartrecruiters.com",
	"ashbyhq.com",
	"icims.com",
	"jobvite.com",
}

// NormalizeDomain reduces a URL or host to its bare lowercase host without
// "www.", port or path. It returns "" when nothing host-like remains.
func NormalizeDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(u.Hostname(), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" || !strings.Contains(host, ".") || strings.ContainsAny(host, " _") {
		return ""
	}
	return host
}

// DomainCache remembers company name to domain lookups.
type DomainCache interface {
	GetCompanyDomain(ctx context.Context, company string) (string, error)
	UpsertCompanyDomain(ctx context.Context, company, domain string) error
}

// DomainFinder resolves a company name to its website domain using the
// DuckDuckGo HTML results page.
type DomainFinder struct {
	Cache     DomainCache
	HTTP      *http.Client
	SearchURL string // defaults to https://duckduckgo.com/html/
	UserAgent string
}

func NewDomainFinder(cache DomainCache, userAgent string) *DomainFinder {
	return &DomainFinder{
		Cache:     cache,
		HTTP:      &http.Client{Timeout: 12 * time.Second},
		SearchURL: "https://duckduckgo.com/html/",
		UserAgent: userAgent,
	}
}

// Find returns the cached domain for company or searches for one. An empty
// result with a nil error means nothing usable was found.
func (f *DomainFinder) Find(ctx context.Context, company string) (string, error) {
	if f.Cache != nil {
		d, err := f.Cache.GetCompanyDomain(ctx, company)
		if err != nil {
			return "", err
		}
		if d != "" {
			return d, nil
		}
	}

	found, err := f.search(ctx, company)
	if err != nil || found == "" {
		return "", err
	}

	if f.Cache != nil {
		if err := f.Cache.UpsertCompanyDomain(ctx, company, found); err != nil {
			return "", err
		}
	}
	return found, nil
}

func (f *DomainFinder) search(ctx context.Context, company string) (string, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return "", nil
	}

	query := fmt.Sprintf("%s official website", sanitizeCompanyForSearch(company))
	base := f.SearchURL
	if base == "" {
		base = "https://duckduckgo.com/html/"
	}
	u := base + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	ua := f.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0"
	}
	req.Header.Set("User-Agent", ua)

	hc := f.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("domain search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("domain search: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("domain search: %w", err)
	}

	var best string

	// DDG HTML results: <a class="result__a" href="...">
	doc.Find("a.result__a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}

		host := NormalizeDomain(decodeDDGRedirect(href))
		if host == "" || isBlockedDomain(host) {
			return true
		}

		best = host
		return false // stop at first good domain
	})

	return best, nil
}

func decodeDDGRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	// DDG sometimes uses /l/?uddg=<urlencoded>
	if uddg := u.Query().Get("uddg"); uddg != "" {
		return uddg
	}
	return href
}

func isBlockedDomain(host string) bool {
	for _, b := range domainBlocklist {
		if host == b || strings.HasSuffix(host, "."+b) {
			return true
		}
	}
	return false
}

func sanitizeCompanyForSearch(s string) string {
	s = strings.TrimSpace(s)
	// legal suffixes confuse the search
	r := strings.NewReplacer(
		", Inc.", "", " Inc.", "", " Inc", "",
		", LLC", "", " LLC", "",
		", Ltd.", "", " Ltd.", "", " Ltd", "",
		" GmbH", "",
	)
	s = r.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
