// Package enrich turns a company domain into a structured profile by reading
// the company's own website.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/logging"
	"outreach-engine/internal/ratelimit"
)

const (
	StatusSuccess = "success"
	StatusPartial = "partial" // site reachable, no people found
)

type Result struct {
	Status  string
	Profile *domain.CompanyProfile
}

type Enricher interface {
	Enrich(ctx context.Context, domain, name string) (Result, error)
}

var DefaultPages = []string{"/about", "/team", "/leadership", "/company"}

// SiteEnricher scrapes the homepage plus a few well-known pages. Homepage
// fetches are retried with exponential backoff.
type SiteEnricher struct {
	HTTP         *http.Client
	UserAgent    string
	Pages        []string
	MaxAttempts  int
	InitialDelay time.Duration
	Limiter      *ratelimit.HostLimiter
	Log          *zap.Logger

	// SiteURL maps a domain to its root URL. Defaults to https://<domain>.
	SiteURL func(domain string) string
}

func NewSiteEnricher(timeout time.Duration, userAgent string, pages []string, maxAttempts int, log *zap.Logger) *SiteEnricher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if len(pages) == 0 {
		pages = DefaultPages
	}
	return &SiteEnricher{
		HTTP:         &http.Client{Timeout: timeout},
		UserAgent:    userAgent,
		Pages:        pages,
		MaxAttempts:  maxAttempts,
		InitialDelay: 500 * time.Millisecond,
		Limiter:      ratelimit.NewHostLimiter(2, 2),
		Log:          log,
	}
}

func (e *SiteEnricher) Enrich(ctx context.Context, dom, name string) (Result, error) {
	log := logging.OrNop(e.Log).Named("enrich").With(zap.String("domain", dom))
	root := e.siteURL(dom)

	home, err := e.fetchWithRetry(ctx, root+"/")
	if err != nil {
		return Result{}, fmt.Errorf("enrich %s: %w", dom, err)
	}

	p := &domain.CompanyProfile{Name: strings.TrimSpace(name)}
	var people []domain.Person
	people = append(people, e.readPage(home, p)...)

	for _, path := range e.Pages {
		doc, _, err := e.fetch(ctx, root+path)
		if err != nil {
			log.Debug("page skipped", zap.String("path", path), zap.Error(err))
			continue
		}
		people = append(people, e.readPage(doc, p)...)
	}

	classify(p, people)

	status := StatusSuccess
	if len(p.Founders)+len(p.Leadership)+len(p.TargetContacts) == 0 {
		status = StatusPartial
	}
	log.Info("enriched",
		zap.String("status", status),
		zap.Int("founders", len(p.Founders)),
		zap.Int("leadership", len(p.Leadership)),
		zap.Int("employees", p.EmployeeCount))
	return Result{Status: status, Profile: p}, nil
}

func (e *SiteEnricher) siteURL(dom string) string {
	if e.SiteURL != nil {
		return strings.TrimRight(e.SiteURL(dom), "/")
	}
	return "https://" + dom
}

func (e *SiteEnricher) fetchWithRetry(ctx context.Context, u string) (*goquery.Document, error) {
	max := e.MaxAttempts
	if max <= 0 {
		max = 3
	}
	delay := e.InitialDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= max; attempt++ {
		doc, retryable, err := e.fetch(ctx, u)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !retryable || attempt == max {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

// fetch reports whether a failure is worth retrying.
func (e *SiteEnricher) fetch(ctx context.Context, u string) (*goquery.Document, bool, error) {
	if e.Limiter != nil {
		if err := e.Limiter.WaitURL(ctx, u); err != nil {
			return nil, false, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	ua := e.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0"
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html")

	hc := e.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, !errors.Is(err, context.Canceled), err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, false, err
	}
	return doc, false, nil
}

var employeesRe = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})+|\d+)\+?\s+(?:employees|team members|people)`)

// readPage fills empty profile fields from doc and returns the people it lists.
func (e *SiteEnricher) readPage(doc *goquery.Document, p *domain.CompanyProfile) []domain.Person {
	if p.Name == "" {
		if v, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
			p.Name = CleanText(v)
		}
	}
	if p.Description == "" {
		if v, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			p.Description = CleanText(v)
		}
	}

	var people []domain.Person
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		people = append(people, readJSONLD(s.Text(), p)...)
	})

	doc.Find(`[itemtype$="schema.org/Person"], .team-member, .team__member, .leadership-member, .person`).Each(func(_ int, s *goquery.Selection) {
		name := firstText(s, `[itemprop="name"]`, ".name", "h3", "h4")
		if name == "" {
			return
		}
		people = append(people, domain.Person{
			Name:        name,
			Title:       firstText(s, `[itemprop="jobTitle"]`, ".title", ".role", ".position", "p"),
			LinkedInURL: linkedIn(s),
		})
	})

	if p.EmployeeCount == 0 {
		if m := employeesRe.FindStringSubmatch(PlainText(doc.Find("body").Text())); m != nil {
			if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
				p.EmployeeCount = n
			}
		}
	}
	return people
}

func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := CleanText(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func linkedIn(s *goquery.Selection) string {
	var out string
	s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(href, "linkedin.com/in/") {
			out = href
			return false
		}
		return true
	})
	return out
}

type ldPerson struct {
	Name     string `json:"name"`
	JobTitle string `json:"jobTitle"`
	SameAs   any    `json:"sameAs"`
}

type ldOrganization struct {
	Type              any             `json:"@type"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Industry          string          `json:"industry"`
	NumberOfEmployees json.RawMessage `json:"numberOfEmployees"`
	Founder           json.RawMessage `json:"founder"`
	Employee          json.RawMessage `json:"employee"`
}

func readJSONLD(raw string, p *domain.CompanyProfile) []domain.Person {
	var org ldOrganization
	if err := json.Unmarshal([]byte(raw), &org); err != nil {
		return nil
	}
	if t, _ := org.Type.(string); t != "" && t != "Organization" && t != "Corporation" {
		return nil
	}
	if p.Name == "" {
		p.Name = CleanText(org.Name)
	}
	if p.Description == "" {
		p.Description = CleanText(org.Description)
	}
	if p.Industry == "" {
		p.Industry = CleanText(org.Industry)
	}
	if p.EmployeeCount == 0 {
		p.EmployeeCount = employeeCount(org.NumberOfEmployees)
	}

	var out []domain.Person
	for _, lp := range ldPeople(org.Founder) {
		title := lp.JobTitle
		if title == "" {
			title = "Founder"
		}
		out = append(out, domain.Person{Name: CleanText(lp.Name), Title: CleanText(title), LinkedInURL: sameAsLinkedIn(lp.SameAs)})
	}
	for _, lp := range ldPeople(org.Employee) {
		out = append(out, domain.Person{Name: CleanText(lp.Name), Title: CleanText(lp.JobTitle), LinkedInURL: sameAsLinkedIn(lp.SameAs)})
	}
	return out
}

func ldPeople(raw json.RawMessage) []ldPerson {
	if len(raw) == 0 {
		return nil
	}
	var many []ldPerson
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var one ldPerson
	if err := json.Unmarshal(raw, &one); err == nil && one.Name != "" {
		return []ldPerson{one}
	}
	return nil
}

func sameAsLinkedIn(v any) string {
	switch s := v.(type) {
	case string:
		if strings.Contains(s, "linkedin.com") {
			return s
		}
	case []any:
		for _, x := range s {
			if str, ok := x.(string); ok && strings.Contains(str, "linkedin.com") {
				return str
			}
		}
	}
	return ""
}

// employeeCount accepts a number, a QuantitativeValue with value or
// minValue, or a numeric string.
func employeeCount(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, _ = strconv.Atoi(strings.TrimSuffix(strings.ReplaceAll(s, ",", ""), "+"))
		return n
	}
	var q struct {
		Value    int `json:"value"`
		MinValue int `json:"minValue"`
	}
	if err := json.Unmarshal(raw, &q); err == nil {
		if q.Value > 0 {
			return q.Value
		}
		return q.MinValue
	}
	return 0
}

var seniorTitle = regexp.MustCompile(`(?i)\b(chief|ceo|cto|cro|coo|cfo|cmo|vp|vice president|president|head|director|partner)\b`)

// classify sorts scraped people into founders and leadership. Junior staff
// are dropped.
func classify(p *domain.CompanyProfile, people []domain.Person) {
	seen := map[string]bool{}
	for _, person := range people {
		k := strings.ToLower(person.Name)
		if person.Name == "" || seen[k] {
			continue
		}
		seen[k] = true

		t := strings.ToLower(person.Title)
		switch {
		case strings.Contains(t, "founder"):
			p.Founders = append(p.Founders, person)
		case seniorTitle.MatchString(person.Title):
			p.Leadership = append(p.Leadership, person)
		}
	}
}
