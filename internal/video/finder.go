// Package video finds relevant, embeddable videos for an article. The
// lookup is best-effort by contract: it returns zero, one or two
// validated videos and never an error.
package video

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
	"github.com/Papalexios/ai-seo-rank/internal/serp"
)

const (
	// maxVideos is the cap on returned embeds.
	maxVideos = 2
	// minDuration filters out shorts and teaser clips.
	minDuration = 2 * time.Minute
	// minTitleLen filters low-effort uploads.
	minTitleLen = 15
	// maxSemanticQueries bounds the keyword-derived query expansion.
	maxSemanticQueries = 3

	resultsPerQuery = 8
)

// queryVariants are appended to the primary keyword, tried in order.
var queryVariants = []string{
	"tutorial",
	"explained",
	"guide",
	"review",
}

// broadFallbackChannels anchor the last-resort single-term query.
var broadFallbackChannels = []string{"TED", "Google"}

var clickbaitPatterns = []string{
	"you won't believe",
	"you wont believe",
	"shocking",
	"gone wrong",
	"will blow your mind",
	"doctors hate",
	"number one trick",
	"!!!",
}

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Searcher is the video search capability the finder needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts serp.Options) (serp.Results, error)
}

// Finder locates validated videos for a keyword.
type Finder struct {
	searcher Searcher
	logger   logger.Logger
}

// New creates a video finder.
func New(searcher Searcher, log logger.Logger) *Finder {
	return &Finder{searcher: searcher, logger: log}
}

// Find returns up to two valid, unique videos for the keyword. Search
// failures degrade to fewer (possibly zero) results; they are logged,
// never surfaced.
func (f *Finder) Find(ctx context.Context, keyword string, semanticKeywords []string) []domain.VideoEmbed {
	queries := f.buildQueries(keyword, semanticKeywords)

	seen := make(map[string]struct{})
	var videos []domain.VideoEmbed

	collect := func(query string) {
		results, err := f.searcher.Search(ctx, query, serp.Options{Num: resultsPerQuery, Videos: true})
		if err != nil {
			f.logger.Warn("video search failed, continuing",
				logger.String("query", query),
				logger.Error(err),
			)
			return
		}
		for _, candidate := range results.Videos {
			if len(videos) >= maxVideos {
				return
			}
			embed, ok := validate(candidate)
			if !ok {
				continue
			}
			if _, dup := seen[embed.ID]; dup {
				continue
			}
			seen[embed.ID] = struct{}{}
			videos = append(videos, embed)
		}
	}

	for _, query := range queries {
		if len(videos) >= maxVideos || ctx.Err() != nil {
			return videos
		}
		collect(query)
	}

	// Broader last resort: a single-term query anchored on well-known
	// channels.
	if len(videos) < maxVideos && ctx.Err() == nil {
		term := firstWord(keyword)
		collect(fmt.Sprintf("%s %s", term, strings.Join(broadFallbackChannels, " OR ")))
	}

	if len(videos) < maxVideos {
		f.logger.Warn("fewer videos found than target",
			logger.String("keyword", keyword),
			logger.Int("found", len(videos)),
		)
	}
	return videos
}

func (f *Finder) buildQueries(keyword string, semanticKeywords []string) []string {
	queries := []string{keyword}
	for _, v := range queryVariants {
		queries = append(queries, keyword+" "+v)
	}
	for i, sk := range semanticKeywords {
		if i >= maxSemanticQueries {
			break
		}
		if strings.TrimSpace(sk) != "" {
			queries = append(queries, sk)
		}
	}
	return queries
}

// validate applies the embed eligibility rules: a recognizable video
// identifier, a duration of at least two minutes, a substantive title
// and no clickbait markers.
func validate(v serp.VideoResult) (domain.VideoEmbed, bool) {
	id := extractVideoID(v.Link)
	if id == "" {
		return domain.VideoEmbed{}, false
	}

	duration := parseDuration(v.Duration)
	if duration < minDuration {
		return domain.VideoEmbed{}, false
	}

	title := strings.TrimSpace(v.Title)
	if len(title) < minTitleLen {
		return domain.VideoEmbed{}, false
	}
	if isClickbait(title) {
		return domain.VideoEmbed{}, false
	}

	return domain.VideoEmbed{
		ID:       id,
		Title:    title,
		URL:      v.Link,
		Channel:  v.Channel,
		Duration: duration,
	}, true
}

// extractVideoID pulls the 11-character identifier out of watch,
// short-link and embed URL shapes. Empty means unrecognizable.
func extractVideoID(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}

	var id string
	switch {
	case strings.Contains(u.Host, "youtu.be"):
		id = strings.TrimPrefix(u.Path, "/")
	case strings.HasPrefix(u.Path, "/embed/"):
		id = strings.TrimPrefix(u.Path, "/embed/")
	default:
		id = u.Query().Get("v")
	}

	if !videoIDRe.MatchString(id) {
		return ""
	}
	return id
}

// parseDuration interprets "M:SS" and "H:MM:SS" listing durations.
// Zero means unparseable, which fails the minimum-duration check.
func parseDuration(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}

	var total time.Duration
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + time.Duration(n)*time.Second
	}
	return total
}

func isClickbait(title string) bool {
	lower := strings.ToLower(title)
	for _, p := range clickbaitPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	return fields[0]
}
