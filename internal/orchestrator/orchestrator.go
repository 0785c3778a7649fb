// Package orchestrator sequences the generation pipeline per content
// item and schedules batches through the concurrency governor.
package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Papalexios/ai-seo-rank/internal/ai"
	"github.com/Papalexios/ai-seo-rank/internal/assemble"
	"github.com/Papalexios/ai-seo-rank/internal/database"
	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/jsonrepair"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
	"github.com/Papalexios/ai-seo-rank/internal/metrics"
	"github.com/Papalexios/ai-seo-rank/internal/pool"
	"github.com/Papalexios/ai-seo-rank/internal/quality"
	"github.com/Papalexios/ai-seo-rank/internal/references"
	"github.com/Papalexios/ai-seo-rank/internal/schema"
	"github.com/Papalexios/ai-seo-rank/internal/wordpress"
)

// Pipeline stage names, used for status text, spans and metrics.
const (
	stageAnalyzing  = "analyzing_terms"
	stageResearch   = "researching"
	stageMetadata   = "drafting_metadata"
	stageValidating = "validating_sources"
	stageWriting    = "writing_and_assets"
	stageAssembling = "assembling"
	stagePublishing = "publishing"
)

const (
	// DefaultGenerateConcurrency throttles AI-bound batches.
	DefaultGenerateConcurrency = 1
	// DefaultPublishConcurrency governs publish-only batches.
	DefaultPublishConcurrency = 5
)

// wordRange returns the acceptable word-count window per content type.
func wordRange(t domain.ContentType) (int, int) {
	if t == domain.ContentTypePillar {
		return 2500, 4200
	}
	return 2000, 3200
}

// TextGenerator is the provider router capability the orchestrator
// consumes.
type TextGenerator interface {
	Call(ctx context.Context, selected, promptKey string, args []any, format ai.Format, grounding bool) (string, error)
	RepairFunc(ctx context.Context, selected string) func(raw string) (string, error)
}

// ImageGenerator renders one image per prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// ImagePublisher is the upload fallback chain.
type ImagePublisher interface {
	Publish(ctx context.Context, filename string, data []byte) (domain.UploadResult, error)
}

// ReferenceValidator finds and verifies citations.
type ReferenceValidator interface {
	Validate(ctx context.Context, primaryKeyword string) (references.Result, error)
}

// VideoFinder locates embeddable videos.
type VideoFinder interface {
	Find(ctx context.Context, keyword string, semanticKeywords []string) []domain.VideoEmbed
}

// CMS is the destination publishing surface.
type CMS interface {
	CreatePost(ctx context.Context, post wordpress.Post) (wordpress.PostResult, error)
	UpdatePost(ctx context.Context, postID int, post wordpress.Post) (wordpress.PostResult, error)
	FindPostBySlug(ctx context.Context, slug string) (wordpress.PostResult, bool, error)
}

// HistoryRecorder persists finished runs. Nil-able: persistence is a
// supplement, not a pipeline dependency.
type HistoryRecorder interface {
	Record(ctx context.Context, run database.Run) error
}

// Config tunes the orchestrator.
type Config struct {
	// Provider is the operator-selected provider name; the router
	// substitutes a fallback when it is not configured.
	Provider string
	// NLPAnalysis enables the optional term-analysis stage.
	NLPAnalysis bool

	SiteName   string
	SiteURL    string
	AuthorName string

	GenerateConcurrency int
	PublishConcurrency  int
}

// Orchestrator drives the per-item state machine.
type Orchestrator struct {
	cfg       Config
	router    TextGenerator
	parser    *jsonrepair.Parser
	imageGen  ImageGenerator
	uploader  ImagePublisher
	refs      ReferenceValidator
	videos    VideoFinder
	assembler *assemble.Assembler
	schema    *schema.Builder
	cms       CMS
	history   HistoryRecorder
	metrics   *metrics.Metrics
	sink      domain.EventSink
	stops     *StopSet
	logger    logger.Logger
	tracer    trace.Tracer

	mu    sync.Mutex
	pages map[string]string // slug -> published URL, for internal links
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Router    TextGenerator
	Parser    *jsonrepair.Parser
	ImageGen  ImageGenerator
	Uploader  ImagePublisher
	Refs      ReferenceValidator
	Videos    VideoFinder
	Assembler *assemble.Assembler
	Schema    *schema.Builder
	CMS       CMS
	History   HistoryRecorder
	Metrics   *metrics.Metrics
	Sink      domain.EventSink
	Logger    logger.Logger
}

// New creates an orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.GenerateConcurrency <= 0 {
		cfg.GenerateConcurrency = DefaultGenerateConcurrency
	}
	if cfg.PublishConcurrency <= 0 {
		cfg.PublishConcurrency = DefaultPublishConcurrency
	}
	sink := deps.Sink
	if sink == nil {
		sink = domain.NopSink{}
	}

	return &Orchestrator{
		cfg:       cfg,
		router:    deps.Router,
		parser:    deps.Parser,
		imageGen:  deps.ImageGen,
		uploader:  deps.Uploader,
		refs:      deps.Refs,
		videos:    deps.Videos,
		assembler: deps.Assembler,
		schema:    deps.Schema,
		cms:       deps.CMS,
		history:   deps.History,
		metrics:   deps.Metrics,
		sink:      sink,
		stops:     NewStopSet(),
		logger:    deps.Logger,
		tracer:    otel.Tracer("orchestrator"),
		pages:     make(map[string]string),
	}
}

// Stop flags one item for cooperative cancellation.
func (o *Orchestrator) Stop(id string) {
	o.stops.Stop(id)
	o.logger.Info("stop requested", logger.String("item_id", id))
}

// StopAll flags the whole batch.
func (o *Orchestrator) StopAll() {
	o.stops.StopAll()
	o.logger.Info("stop requested for all items")
}

// RegisterPage records a published slug for internal-link resolution
// in later articles.
func (o *Orchestrator) RegisterPage(slug, url string) {
	if slug == "" || url == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pages[slug] = url
}

func (o *Orchestrator) knownPages() map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	snapshot := make(map[string]string, len(o.pages))
	for k, v := range o.pages {
		snapshot[k] = v
	}
	return snapshot
}

// GenerateBatch runs generation for the items through the governor.
// One item's failure never aborts its siblings.
func (o *Orchestrator) GenerateBatch(ctx context.Context, items []*domain.ContentItem) {
	o.stops.ResetAll()

	pool.Run(ctx, items,
		func(ctx context.Context, item *domain.ContentItem) {
			o.generateOne(ctx, item)
		},
		o.cfg.GenerateConcurrency,
		func(completed, total int) {
			o.sink.OnProgress(domain.Progress{Current: completed, Total: total})
		},
		o.stops.AllStopped,
	)
}

// intermediate stage payloads

type researchResult struct {
	Summary          string   `json:"summary"`
	SemanticKeywords []string `json:"semantic_keywords"`
	Questions        []string `json:"questions"`
}

type metadataResult struct {
	Title           string             `json:"title"`
	MetaDescription string             `json:"meta_description"`
	Slug            string             `json:"slug"`
	PrimaryKeyword  string             `json:"primary_keyword"`
	SemanticKeyword []string           `json:"semantic_keywords"`
	Outline         []string           `json:"outline"`
	KeyTakeaways    []string           `json:"key_takeaways"`
	FAQSection      []domain.FAQItem   `json:"faq_section"`
	ImageDetails    []imageDetailJSON  `json:"image_details"`
}

type imageDetailJSON struct {
	Prompt      string `json:"prompt"`
	AltText     string `json:"alt_text"`
	Title       string `json:"title"`
	Placeholder string `json:"placeholder"`
}

func (o *Orchestrator) generateOne(ctx context.Context, item *domain.ContentItem) {
	start := time.Now()

	if o.stops.Stopped(item.ID) {
		o.markStopped(item)
		return
	}

	if item.GeneratedContent == nil {
		item.GeneratedContent = &domain.GeneratedContent{Title: item.Title}
	}
	gc := item.GeneratedContent
	repair := o.router.RepairFunc(ctx, o.cfg.Provider)

	o.setStatus(item, domain.StatusGenerating, "Queued for generation")

	// Optional NLP term analysis; its terms enrich the article prompt.
	var nlpTerms []string
	if o.cfg.NLPAnalysis {
		err := o.runStage(ctx, item, stageAnalyzing, "Analyzing key terms and entities", func(ctx context.Context) error {
			raw, err := o.router.Call(ctx, o.cfg.Provider, ai.PromptNLPTerms, []any{item.Title}, ai.FormatJSON, false)
			if err != nil {
				return err
			}
			var out struct {
				Terms []string `json:"terms"`
			}
			if err := o.parser.Unmarshal(raw, repair, &out); err != nil {
				return err
			}
			nlpTerms = out.Terms
			return nil
		})
		if o.finishOnError(ctx, item, err, start) {
			return
		}
	}

	var research researchResult
	err := o.runStage(ctx, item, stageResearch, "Researching the topic", func(ctx context.Context) error {
		raw, err := o.router.Call(ctx, o.cfg.Provider, ai.PromptResearch, []any{item.Title}, ai.FormatJSON, true)
		if err != nil {
			return err
		}
		return o.parser.Unmarshal(raw, repair, &research)
	})
	if o.finishOnError(ctx, item, err, start) {
		return
	}

	// Metadata/outline drafting; keyword expansion runs alongside when
	// research produced none (no ordering dependency between them).
	var meta metadataResult
	err = o.runStage(ctx, item, stageMetadata, "Drafting metadata and outline", func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			raw, err := o.router.Call(gctx, o.cfg.Provider, ai.PromptMetadata,
				[]any{item.Title, keywordFromTitle(item.Title), research.Summary}, ai.FormatJSON, false)
			if err != nil {
				return err
			}
			return o.parser.Unmarshal(raw, repair, &meta)
		})

		if len(research.SemanticKeywords) == 0 && len(nlpTerms) == 0 {
			g.Go(func() error {
				raw, err := o.router.Call(gctx, o.cfg.Provider, ai.PromptNLPTerms, []any{item.Title}, ai.FormatJSON, false)
				if err != nil {
					return err
				}
				var out struct {
					Terms []string `json:"terms"`
				}
				if err := o.parser.Unmarshal(raw, repair, &out); err != nil {
					return err
				}
				nlpTerms = out.Terms
				return nil
			})
		}

		return g.Wait()
	})
	if o.finishOnError(ctx, item, err, start) {
		return
	}

	applyMetadata(gc, meta, research, nlpTerms)
	o.sink.OnContent(domain.ContentUpdate{ID: item.ID, Content: gc})

	var refs references.Result
	err = o.runStage(ctx, item, stageValidating, "Validating sources and references", func(ctx context.Context) error {
		result, err := o.refs.Validate(ctx, gc.PrimaryKeyword)
		if err != nil {
			return err
		}
		refs = result
		return nil
	})
	if o.finishOnError(ctx, item, err, start) {
		return
	}
	gc.References = refs.Records

	minWords, maxWords := wordRange(item.Type)

	var articleHTML string
	var videos []domain.VideoEmbed
	err = o.runStage(ctx, item, stageWriting, "Writing article and generating assets", func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			raw, err := o.router.Call(gctx, o.cfg.Provider, ai.PromptArticle,
				[]any{
					gc.Title, gc.PrimaryKeyword,
					strings.Join(gc.Outline, "; "),
					strings.Join(gc.SemanticKeywords, ", "),
					placeholderTokens(gc.ImageDetails),
					minWords, maxWords,
				}, ai.FormatText, false)
			if err != nil {
				return err
			}
			articleHTML = raw
			return nil
		})

		g.Go(func() error {
			return o.generateImages(gctx, gc)
		})

		g.Go(func() error {
			videos = o.videos.Find(gctx, gc.PrimaryKeyword, gc.SemanticKeywords)
			return nil
		})

		return g.Wait()
	})
	if o.finishOnError(ctx, item, err, start) {
		return
	}

	// Quality gate: advisory-fatal. The item errors but the content is
	// preserved for manual review.
	count, err := quality.EnforceWordCount(articleHTML, minWords, maxWords)
	if err != nil {
		gc.Content = articleHTML
		gc.WordCount = quality.WordCount(articleHTML)
		o.finishOnError(ctx, item, err, start)
		return
	}

	err = o.runStage(ctx, item, stageAssembling, "Assembling final article", func(ctx context.Context) error {
		final, err := o.assembler.Assemble(articleHTML, assemble.Plan{
			Takeaways:      gc.KeyTakeaways,
			Images:         gc.ImageDetails,
			Videos:         videos,
			ReferencesHTML: refs.HTML,
			InternalLinks:  o.knownPages(),
			Site:           assemble.SiteInfo{SiteName: o.cfg.SiteName, AuthorName: o.cfg.AuthorName},
		})
		if err != nil {
			return err
		}
		gc.Content = final
		return nil
	})
	if o.finishOnError(ctx, item, err, start) {
		return
	}

	gc.WordCount = count
	gc.JSONLDSchema = o.schema.Build(schema.Input{
		Content:     *gc,
		SiteName:    o.cfg.SiteName,
		SiteURL:     o.cfg.SiteURL,
		AuthorName:  o.cfg.AuthorName,
		PublishedAt: time.Now().UTC(),
	})

	o.setStatus(item, domain.StatusDone, "Generation complete")
	o.sink.OnContent(domain.ContentUpdate{ID: item.ID, Content: gc})
	if o.metrics != nil {
		o.metrics.ItemsGenerated.Inc()
		o.metrics.WordCount.Observe(float64(count))
	}
	o.record(ctx, item, start)
}

// runStage dispatches the status update, opens a span and times the
// stage. The stop set is polled before any work starts.
func (o *Orchestrator) runStage(ctx context.Context, item *domain.ContentItem, stage, statusText string, fn func(context.Context) error) error {
	if o.stops.Stopped(item.ID) {
		return domain.ErrItemStopped
	}

	o.setStatus(item, domain.StatusGenerating, statusText)

	ctx, span := o.tracer.Start(ctx, "generate."+stage,
		trace.WithAttributes(
			attribute.String("item_id", item.ID),
			attribute.String("item_title", item.Title),
		))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if o.metrics != nil {
		o.metrics.ObserveStage(stage, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: %w", stage, err)
	}
	return nil
}

// finishOnError converts a stage error into terminal item state.
// Returns true when the caller must stop advancing the item.
func (o *Orchestrator) finishOnError(ctx context.Context, item *domain.ContentItem, err error, start time.Time) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, domain.ErrItemStopped) {
		o.markStopped(item)
		return true
	}

	o.setStatus(item, domain.StatusError, statusTextFor(err))
	o.logger.Error("item generation failed",
		logger.String("item_id", item.ID),
		logger.String("title", item.Title),
		logger.Error(err),
	)
	if o.metrics != nil {
		o.metrics.ItemsFailed.Inc()
	}
	o.record(ctx, item, start)
	return true
}

func (o *Orchestrator) markStopped(item *domain.ContentItem) {
	o.setStatus(item, domain.StatusIdle, "Stopped by user")
	o.stops.Clear(item.ID)
	if o.metrics != nil {
		o.metrics.ItemsStopped.Inc()
	}
}

func (o *Orchestrator) setStatus(item *domain.ContentItem, status domain.ContentStatus, text string) {
	item.Status = status
	item.StatusText = text
	item.UpdatedAt = time.Now()
	o.sink.OnStatus(domain.StatusUpdate{ID: item.ID, Status: status, StatusText: text})
}

func (o *Orchestrator) record(ctx context.Context, item *domain.ContentItem, start time.Time) {
	if o.history == nil {
		return
	}

	run := database.Run{
		ID:         uuid.New(),
		ItemID:     item.ID,
		Title:      item.Title,
		Status:     string(item.Status),
		StatusText: item.StatusText,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if item.GeneratedContent != nil {
		run.WordCount = item.GeneratedContent.WordCount
	}

	if err := o.history.Record(ctx, run); err != nil {
		o.logger.Warn("failed to persist generation run",
			logger.String("item_id", item.ID),
			logger.Error(err),
		)
	}
}

// generateImages renders and hosts every planned image. All three
// upload layers failing for any image fails the stage; an article
// never ships a broken image reference.
func (o *Orchestrator) generateImages(ctx context.Context, gc *domain.GeneratedContent) error {
	if o.imageGen == nil {
		if len(gc.ImageDetails) > 0 {
			o.logger.Warn("image generation disabled, placeholders will be scrubbed at assembly")
		}
		return nil
	}
	for i := range gc.ImageDetails {
		img := &gc.ImageDetails[i]
		if img.Prompt == "" || img.URL != "" {
			continue
		}

		data, err := o.imageGen.GenerateImage(ctx, img.Prompt)
		if err != nil {
			return fmt.Errorf("generate image %q: %w", img.Placeholder, err)
		}
		img.Data = base64.StdEncoding.EncodeToString(data)

		result, err := o.uploader.Publish(ctx, imageFilename(gc.Slug, i), data)
		if err != nil {
			return fmt.Errorf("publish image %q: %w", img.Placeholder, err)
		}
		img.URL = result.URL
		img.MediaID = result.MediaID
	}
	return nil
}

func applyMetadata(gc *domain.GeneratedContent, meta metadataResult, research researchResult, nlpTerms []string) {
	if meta.Title != "" {
		gc.Title = meta.Title
	}
	gc.MetaDescription = meta.MetaDescription
	gc.Slug = meta.Slug
	gc.PrimaryKeyword = meta.PrimaryKeyword
	if gc.PrimaryKeyword == "" {
		gc.PrimaryKeyword = keywordFromTitle(gc.Title)
	}
	gc.Outline = meta.Outline
	gc.KeyTakeaways = meta.KeyTakeaways
	gc.FAQSection = meta.FAQSection

	gc.SemanticKeywords = dedupeStrings(meta.SemanticKeyword, research.SemanticKeywords, nlpTerms)

	gc.ImageDetails = gc.ImageDetails[:0]
	for _, img := range meta.ImageDetails {
		gc.ImageDetails = append(gc.ImageDetails, domain.ImageDetail{
			Prompt:      img.Prompt,
			AltText:     img.AltText,
			Title:       img.Title,
			Placeholder: img.Placeholder,
		})
	}
}

func dedupeStrings(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, s := range list {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func keywordFromTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func placeholderTokens(images []domain.ImageDetail) string {
	tokens := make([]string, 0, len(images))
	for _, img := range images {
		if img.Placeholder != "" {
			tokens = append(tokens, img.Placeholder)
		}
	}
	return strings.Join(tokens, ", ")
}

// statusTextFor maps pipeline errors to the human-readable status an
// operator sees. Nothing fails silently.
func statusTextFor(err error) string {
	var wcErr *domain.WordCountError
	if errors.As(err, &wcErr) {
		if wcErr.Kind == domain.WordCountTooShort {
			return fmt.Sprintf("Article too short: %d words (minimum %d). Content kept for review.", wcErr.Count, wcErr.Min)
		}
		return fmt.Sprintf("Article too long: %d words (maximum %d). Content kept for review.", wcErr.Count, wcErr.Max)
	}

	var repairErr *domain.RepairError
	if errors.As(err, &repairErr) {
		return "AI returned unrecoverable JSON; see logs for both raw texts."
	}

	switch {
	case errors.Is(err, domain.ErrAuthFailed):
		return "No AI provider is configured. Add an API key in settings."
	case errors.Is(err, domain.ErrRateLimit):
		return "Provider rate limit hit; the run was throttled and gave up."
	case errors.Is(err, domain.ErrUploadExhausted):
		return "Every image upload strategy failed; publish aborted for this item."
	case errors.Is(err, domain.ErrEmptyResponse):
		return "Provider returned no usable content."
	}

	return "Generation failed: " + err.Error()
}
