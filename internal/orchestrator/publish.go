package orchestrator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Papalexios/ai-seo-rank/internal/domain"
	"github.com/Papalexios/ai-seo-rank/internal/logger"
	"github.com/Papalexios/ai-seo-rank/internal/pool"
	"github.com/Papalexios/ai-seo-rank/internal/wordpress"
)

// PublishBatch publishes generated items through the governor at the
// publish concurrency.
func (o *Orchestrator) PublishBatch(ctx context.Context, items []*domain.ContentItem) {
	pool.Run(ctx, items,
		func(ctx context.Context, item *domain.ContentItem) {
			if err := o.publishOne(ctx, item); err != nil {
				o.setStatus(item, domain.StatusError, statusTextFor(err))
				o.logger.Error("item publish failed",
					logger.String("item_id", item.ID),
					logger.Error(err),
				)
			}
		},
		o.cfg.PublishConcurrency,
		func(completed, total int) {
			o.sink.OnProgress(domain.Progress{Current: completed, Total: total})
		},
		o.stops.AllStopped,
	)
}

// publishOne pushes a finished item to the destination CMS. An item
// with an original URL updates the existing post in place.
func (o *Orchestrator) publishOne(ctx context.Context, item *domain.ContentItem) error {
	ctx, span := o.tracer.Start(ctx, "generate."+stagePublishing,
		trace.WithAttributes(attribute.String("item_id", item.ID)))
	defer span.End()

	gc := item.GeneratedContent
	if gc == nil || gc.Content == "" {
		return fmt.Errorf("%w: item has no generated content to publish", domain.ErrInvalidParams)
	}

	o.setStatus(item, domain.StatusGenerating, "Publishing to site")
	start := time.Now()

	// Any image still lacking a hosted URL is published now; all
	// layers failing aborts this item only.
	if err := o.publishPendingImages(ctx, gc); err != nil {
		return err
	}

	post := wordpress.Post{
		Title:   gc.Title,
		Content: withSchemaScript(gc.Content, gc.JSONLDSchema),
		Slug:    gc.Slug,
		Excerpt: gc.MetaDescription,
		Status:  "publish",
	}
	if id := firstMediaID(gc.ImageDetails); id != nil {
		post.FeaturedMediaID = *id
	}

	result, err := o.writeOrUpdate(ctx, item, post)
	if err != nil {
		return err
	}

	o.RegisterPage(result.Slug, result.Link)
	o.setStatus(item, domain.StatusDone, "Published: "+result.Link)
	if o.metrics != nil {
		o.metrics.ItemsPublished.Inc()
		o.metrics.ObserveStage(stagePublishing, time.Since(start))
	}

	o.logger.Info("item published",
		logger.String("item_id", item.ID),
		logger.Int("post_id", result.ID),
		logger.String("link", result.Link),
		logger.Duration("duration", time.Since(start)),
	)
	return nil
}

func (o *Orchestrator) writeOrUpdate(ctx context.Context, item *domain.ContentItem, post wordpress.Post) (wordpress.PostResult, error) {
	gc := item.GeneratedContent

	// Rewrites and regenerated items update in place when the slug
	// already exists on the site.
	existing, found, err := o.cms.FindPostBySlug(ctx, gc.Slug)
	if err != nil {
		return wordpress.PostResult{}, fmt.Errorf("lookup existing post: %w", err)
	}
	if found {
		result, err := o.cms.UpdatePost(ctx, existing.ID, post)
		if err != nil {
			return wordpress.PostResult{}, fmt.Errorf("update post: %w", err)
		}
		return result, nil
	}

	if item.IsRewrite() {
		o.logger.Warn("rewrite target not found by slug, creating new post",
			logger.String("item_id", item.ID),
			logger.String("original_url", item.OriginalURL),
			logger.String("slug", gc.Slug),
		)
	}

	result, err := o.cms.CreatePost(ctx, post)
	if err != nil {
		return wordpress.PostResult{}, fmt.Errorf("create post: %w", err)
	}
	return result, nil
}

func (o *Orchestrator) publishPendingImages(ctx context.Context, gc *domain.GeneratedContent) error {
	for i := range gc.ImageDetails {
		img := &gc.ImageDetails[i]
		if img.URL != "" || img.Data == "" {
			continue
		}

		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			return fmt.Errorf("decode stored image %q: %w", img.Placeholder, err)
		}

		result, err := o.uploader.Publish(ctx, imageFilename(gc.Slug, i), data)
		if err != nil {
			return err
		}
		img.URL = result.URL
		img.MediaID = result.MediaID
	}
	return nil
}

func imageFilename(slug string, index int) string {
	if slug == "" {
		slug = "article"
	}
	return fmt.Sprintf("%s-%d.webp", slug, index+1)
}

func firstMediaID(images []domain.ImageDetail) *int {
	for _, img := range images {
		if img.MediaID != nil {
			return img.MediaID
		}
	}
	return nil
}

// withSchemaScript appends the JSON-LD block to the article body.
func withSchemaScript(content string, schemaObj map[string]any) string {
	if len(schemaObj) == 0 {
		return content
	}
	encoded, err := json.Marshal(schemaObj)
	if err != nil {
		return content
	}
	return content + `<script type="application/ld+json">` + string(encoded) + `</script>`
}
