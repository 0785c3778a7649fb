// Package assemble merges generated text, images, videos and citations
// into the final article HTML. Injection order is fixed and every step
// is idempotent: a block already present is never inserted twice.
package assemble

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
)

// Marker classes used both for rendering and idempotency checks.
const (
	takeawaysClass  = "key-takeaways"
	trustBoxClass   = "trust-box"
	videoEmbedClass = "video-embed"
	referencesClass = "article-references"
)

// Paragraph boundaries after which video embeds are placed.
var videoSlots = []int{1, 4}

var (
	placeholderRe  = regexp.MustCompile(`\[IMAGE-\d+\]`)
	internalLinkRe = regexp.MustCompile(`\[INTERNAL_LINK:\s*([^|\]]+?)\s*\|\s*([^\]]+?)\s*\]`)
)

// SiteInfo carries the publishing-site identity rendered into the
// trust block.
type SiteInfo struct {
	SiteName   string
	AuthorName string
}

// Plan bundles everything the assembler injects into the raw article.
type Plan struct {
	Takeaways      []string
	Images         []domain.ImageDetail
	Videos         []domain.VideoEmbed
	ReferencesHTML string
	// InternalLinks maps a page slug to its absolute URL.
	InternalLinks map[string]string
	Site          SiteInfo
}

// Assembler builds final article HTML.
type Assembler struct {
	logger logger.Logger
}

// New creates an assembler.
func New(log logger.Logger) *Assembler {
	return &Assembler{logger: log}
}

// Assemble runs the fixed injection sequence over rawHTML and returns
// the publish-ready document fragment.
func (a *Assembler) Assemble(rawHTML string, plan Plan) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse article html: %w", err)
	}

	a.insertTakeaways(doc, plan.Takeaways)
	a.insertTrustBox(doc, plan.Site)
	a.insertVideos(doc, plan.Videos)
	a.replaceImagePlaceholders(doc, plan.Images)
	a.appendReferences(doc, plan.ReferencesHTML)

	html, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render article html: %w", err)
	}

	html = a.scrubLeftoverPlaceholders(html)
	html = a.resolveInternalLinks(html, plan.InternalLinks)

	return html, nil
}

// insertTakeaways places the takeaways block before the first section
// heading, or appends it when the article has no headings.
func (a *Assembler) insertTakeaways(doc *goquery.Document, takeaways []string) {
	if len(takeaways) == 0 || doc.Find("."+takeawaysClass).Length() > 0 {
		return
	}

	var b strings.Builder
	b.WriteString(`<div class="` + takeawaysClass + `"><h3>Key Takeaways</h3><ul>`)
	for _, t := range takeaways {
		b.WriteString("<li>")
		b.WriteString(htmlEscape(t))
		b.WriteString("</li>")
	}
	b.WriteString(`</ul></div>`)

	if heading := doc.Find("h2").First(); heading.Length() > 0 {
		heading.BeforeHtml(b.String())
		return
	}
	doc.Find("body").AppendHtml(b.String())
}

// insertTrustBox places the credential block directly after the
// takeaways, or before the first heading when takeaways are absent.
func (a *Assembler) insertTrustBox(doc *goquery.Document, site SiteInfo) {
	if site.AuthorName == "" || doc.Find("."+trustBoxClass).Length() > 0 {
		return
	}

	box := fmt.Sprintf(
		`<div class="%s"><p>Written by <strong>%s</strong> for %s. Every recommendation is independently researched and fact-checked before publication.</p></div>`,
		trustBoxClass, htmlEscape(site.AuthorName), htmlEscape(site.SiteName),
	)

	if takeaways := doc.Find("." + takeawaysClass).First(); takeaways.Length() > 0 {
		takeaways.AfterHtml(box)
		return
	}
	if heading := doc.Find("h2").First(); heading.Length() > 0 {
		heading.BeforeHtml(box)
		return
	}
	doc.Find("body").AppendHtml(box)
}

// insertVideos embeds up to two videos after the 2nd and 5th paragraph
// boundaries. Articles with fewer paragraphs get fewer embeds.
func (a *Assembler) insertVideos(doc *goquery.Document, videos []domain.VideoEmbed) {
	if len(videos) == 0 || doc.Find("."+videoEmbedClass).Length() > 0 {
		return
	}

	paragraphs := doc.Find("body p")
	for i, video := range videos {
		if i >= len(videoSlots) {
			break
		}
		slot := paragraphs.Eq(videoSlots[i])
		if slot.Length() == 0 {
			a.logger.Debug("not enough paragraphs for video embed",
				logger.String("video_id", video.ID),
				logger.Int("slot", videoSlots[i]),
			)
			continue
		}
		slot.AfterHtml(renderVideo(video))
	}
}

func renderVideo(v domain.VideoEmbed) string {
	return fmt.Sprintf(
		`<div class="%s"><iframe src="https://www.youtube.com/embed/%s" title="%s" loading="lazy" allowfullscreen></iframe></div>`,
		videoEmbedClass, v.ID, htmlEscape(v.Title),
	)
}

// replaceImagePlaceholders swaps placeholder tokens for final figure
// markup. Only images that produced a hosted URL are inserted.
func (a *Assembler) replaceImagePlaceholders(doc *goquery.Document, images []domain.ImageDetail) {
	byToken := make(map[string]domain.ImageDetail, len(images))
	for _, img := range images {
		if img.Placeholder != "" && img.URL != "" {
			byToken[img.Placeholder] = img
		}
	}
	if len(byToken) == 0 {
		return
	}

	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		img, ok := byToken[text]
		if !ok {
			return
		}
		sel.ReplaceWithHtml(fmt.Sprintf(
			`<figure><img src="%s" alt="%s" title="%s" loading="lazy"><figcaption>%s</figcaption></figure>`,
			img.URL, htmlEscape(img.AltText), htmlEscape(img.Title), htmlEscape(img.Title),
		))
	})
}

// appendReferences adds the citation fragment once, at the end.
func (a *Assembler) appendReferences(doc *goquery.Document, fragment string) {
	if fragment == "" || doc.Find("."+referencesClass).Length() > 0 {
		return
	}
	doc.Find("body").AppendHtml(fragment)
}

// scrubLeftoverPlaceholders removes any placeholder token that
// survived replacement. A leftover token is a defect worth logging; it
// must never reach published output.
func (a *Assembler) scrubLeftoverPlaceholders(html string) string {
	leftovers := placeholderRe.FindAllString(html, -1)
	for _, token := range leftovers {
		a.logger.Warn("unresolved image placeholder scrubbed from output",
			logger.String("placeholder", token),
		)
	}
	if len(leftovers) == 0 {
		return html
	}
	return placeholderRe.ReplaceAllString(html, "")
}

// resolveInternalLinks rewrites link tokens against the slug map.
// Unknown slugs degrade to plain anchor text so a broken link can
// never ship. The input is already-rendered HTML, so the captured
// anchor text is entity-escaped and must not be escaped again.
func (a *Assembler) resolveInternalLinks(html string, links map[string]string) string {
	return internalLinkRe.ReplaceAllStringFunc(html, func(token string) string {
		m := internalLinkRe.FindStringSubmatch(token)
		slug, anchor := m[1], m[2]

		if url, ok := links[slug]; ok {
			return fmt.Sprintf(`<a href="%s">%s</a>`, htmlEscape(url), anchor)
		}

		a.logger.Warn("internal link slug not found, degrading to plain text",
			logger.String("slug", slug),
		)
		return anchor
	})
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
