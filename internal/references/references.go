// Package references implements the reference validation engine: it
// searches for candidate sources, scores them by authority heuristics,
// verifies each URL is alive and assembles a deduplicated citation
// list.
package references

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/httpclient"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
	"github.com/Papalexios/ai-seo-rank/internal/serp"
)

const (
	// maxReferences is the global cap on retained citations.
	maxReferences = 12
	// earlyExitThreshold stops issuing further queries once reached.
	earlyExitThreshold = 8
	// minAuthorityScore is the eligibility cutoff.
	minAuthorityScore = 70

	livenessTimeout = 10 * time.Second
	resultsPerQuery = 10
)

// queryVariants are the fixed suffixes appended to the primary keyword.
var queryVariants = []string{
	"research study",
	"statistics",
	"expert analysis",
}

// authorityDomains is the allow-list of high-authority publications.
var authorityDomains = map[string]struct{}{
	"nature.com":          {},
	"sciencedirect.com":   {},
	"ncbi.nlm.nih.gov":    {},
	"pubmed.ncbi.nlm.nih.gov": {},
	"harvard.edu":         {},
	"stanford.edu":        {},
	"mit.edu":             {},
	"forbes.com":          {},
	"hbr.org":             {},
	"mckinsey.com":        {},
	"pewresearch.org":     {},
	"statista.com":        {},
	"reuters.com":         {},
	"bbc.com":             {},
	"nytimes.com":         {},
	"theguardian.com":     {},
	"wsj.com":             {},
	"bloomberg.com":       {},
	"who.int":             {},
	"worldbank.org":       {},
}

var yearRe = regexp.MustCompile(`\b(20[2-9]\d)\b`)

// Searcher is the search capability the engine needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts serp.Options) (serp.Results, error)
}

// Result carries the validated citations and their rendered fragment.
type Result struct {
	HTML    string
	Records []domain.Reference
}

// Engine validates references for a content item.
type Engine struct {
	searcher Searcher
	client   *http.Client
	logger   logger.Logger
}

// New creates a reference validation engine.
func New(searcher Searcher, log logger.Logger) *Engine {
	return &Engine{
		searcher: searcher,
		client:   httpclient.New(livenessTimeout),
		logger:   log,
	}
}

// Validate searches, scores and liveness-checks candidate sources for
// primaryKeyword. Fewer than the early-exit threshold is not an error;
// references enhance quality but never gate it.
func (e *Engine) Validate(ctx context.Context, primaryKeyword string) (Result, error) {
	if strings.TrimSpace(primaryKeyword) == "" {
		return Result{}, fmt.Errorf("%w: primary keyword is required", domain.ErrInvalidParams)
	}

	seen := make(map[string]struct{})
	var records []domain.Reference

	for _, variant := range queryVariants {
		if len(records) >= earlyExitThreshold {
			break
		}

		query := primaryKeyword + " " + variant
		results, err := e.searcher.Search(ctx, query, serp.Options{Num: resultsPerQuery})
		if err != nil {
			e.logger.Warn("reference search failed, continuing with next variant",
				logger.String("query", query),
				logger.Error(err),
			)
			continue
		}

		for _, candidate := range results.Organic {
			if len(records) >= maxReferences {
				break
			}
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}

			score := AuthorityScore(candidate)
			if score < minAuthorityScore {
				continue
			}

			normalized := normalizeURL(candidate.Link)
			if normalized == "" {
				continue
			}
			if _, dup := seen[normalized]; dup {
				continue
			}

			if !e.isAlive(ctx, candidate.Link) {
				e.logger.Debug("reference failed liveness check",
					logger.String("url", candidate.Link),
				)
				continue
			}

			seen[normalized] = struct{}{}
			records = append(records, domain.Reference{
				Title:  candidate.Title,
				URL:    candidate.Link,
				Source: hostOf(candidate.Link),
				Year:   extractYear(candidate.Snippet),
			})
		}
	}

	if len(records) < earlyExitThreshold {
		e.logger.Warn("fewer validated references than target, proceeding anyway",
			logger.String("primary_keyword", primaryKeyword),
			logger.Int("found", len(records)),
			logger.Int("target", earlyExitThreshold),
		)
	}

	return Result{HTML: renderHTML(records), Records: records}, nil
}

// AuthorityScore rates a search result. Base 50, bonuses for academic
// and government domains, allow-listed publications, recency markers,
// research language and top search positions.
func AuthorityScore(r serp.OrganicResult) int {
	score := 50

	host := hostOf(r.Link)
	switch {
	case strings.HasSuffix(host, ".gov"):
		score += 30
	case strings.HasSuffix(host, ".edu"):
		score += 25
	}
	if _, ok := authorityDomains[trimWWW(host)]; ok {
		score += 20
	}

	if yearRe.MatchString(r.Snippet) {
		score += 15
	}

	title := strings.ToLower(r.Title)
	if strings.Contains(title, "study") || strings.Contains(title, "research") {
		score += 10
	}

	if r.Position >= 1 && r.Position <= 3 {
		score += 5
	}

	return score
}

// isAlive checks the URL responds. HEAD first; some hosts reject HEAD,
// so fall back to GET and discard the body.
func (e *Engine) isAlive(ctx context.Context, rawURL string) bool {
	if ok, done := e.probe(ctx, http.MethodHead, rawURL); done {
		return ok
	}
	ok, _ := e.probe(ctx, http.MethodGet, rawURL)
	return ok
}

// probe returns (alive, conclusive). A 405 is inconclusive: the host
// may simply refuse the method.
func (e *Engine) probe(ctx context.Context, method, rawURL string) (bool, bool) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return false, true
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return false, true
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		return false, false
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 400, true
}

func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	return strings.TrimSuffix(u.String(), "/")
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

func trimWWW(host string) string {
	return strings.TrimPrefix(host, "www.")
}

func extractYear(snippet string) int {
	m := yearRe.FindString(snippet)
	if m == "" {
		return 0
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return year
}

// renderHTML builds the citation-list fragment appended during
// assembly. Empty records produce an empty fragment.
func renderHTML(records []domain.Reference) string {
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<section class="article-references"><h2>References</h2><ol>`)
	for _, r := range records {
		b.WriteString(`<li><a href="`)
		b.WriteString(htmlEscape(r.URL))
		b.WriteString(`" target="_blank" rel="noopener nofollow">`)
		b.WriteString(htmlEscape(r.Title))
		b.WriteString(`</a> &mdash; `)
		b.WriteString(htmlEscape(r.Source))
		if r.Year > 0 {
			b.WriteString(", ")
			b.WriteString(strconv.Itoa(r.Year))
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ol></section>`)
	return b.String()
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func htmlEscape(s string) string {
	return htmlEscaper.Replace(s)
}
