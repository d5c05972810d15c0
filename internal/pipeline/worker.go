package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/dgallion1/tocindex/internal/parser"
	"github.com/dgallion1/tocindex/internal/store"
)

// Worker processes a single document job.
type Worker struct {
	indexer    *Indexer
	store      ResultStore
	pub        Publisher
	log        *slog.Logger
	parserOpts parser.Options
}

func NewWorker(ix *Indexer, rs ResultStore, pub Publisher, log *slog.Logger, opts parser.Options) *Worker {
	return &Worker{
		indexer:    ix,
		store:      rs,
		pub:        pub,
		log:        log,
		parserOpts: opts,
	}
}

// Process runs parse, index, store and publish for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.parserOpts)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	job.releaseFileData()
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if job.Title != "" {
		doc.Title = job.Title
	}
	job.SetPages(len(doc.Pages))
	job.setContentHash(ContentHashHex([]byte(flattenText(doc))))

	// Phase 1.5: Dedup check. Re-indexing the same doc id replaces it.
	if !job.Force {
		existing, found, err := w.store.FindByHash(ctx, job.ContentHash)
		switch {
		case err != nil:
			log.Warn("dedup check failed, proceeding", "error", err)
		case found && existing != job.DocID:
			log.Info("duplicate document, skipping", "existing_doc_id", existing)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2: Index
	job.SetStatus(StatusIndexing, "indexing")
	res, err := w.indexer.Index(ctx, Request{
		DocID:                job.DocID,
		Document:             doc,
		ListingPages:         job.ListingPages,
		AuthoritativeTables:  job.AuthoritativeTables,
		AuthoritativeFigures: job.AuthoritativeFigures,
	})
	if err != nil {
		log.Error("index failed", "error", err)
		job.AddError(fmt.Sprintf("index: %s", err))
		job.SetStatus(StatusFailed, "indexing")
		return
	}
	job.SetIndexed(res)

	// Phase 3: Store
	job.SetStatus(StatusStoring, "storing")
	err = w.store.Save(ctx, &store.Index{
		Document: store.Document{
			ID:           job.DocID,
			Title:        res.Title,
			Filename:     job.Filename,
			ContentHash:  job.ContentHash,
			TotalPages:   res.TotalPages,
			ListingPages: res.ListingPages,
			CreatedAt:    job.CreatedAt,
		},
		Entries:    res.Entries,
		Records:    res.Records,
		Unmatched:  res.Unmatched,
		References: res.References,
		Report:     res.Report,
		Summary:    res.Summary,
	})
	if err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}
	log.Info("index stored", "toc_sections", res.Listing.Len(), "content_sections", res.Content.Len())

	// Phase 4: Publish (optional)
	if w.pub == nil {
		job.SetStatus(StatusCompleted, "done")
		return
	}
	job.SetStatus(StatusPublishing, "publishing")
	if err := w.publish(ctx, log, res); err != nil {
		log.Warn("publish failed", "error", err)
		job.AddError(fmt.Sprintf("publish: %s", err))
		job.SetStatus(StatusPartial, "done")
		return
	}
	job.SetStatus(StatusCompleted, "done")
}

// publish retries transient failures with backoff.
func (w *Worker) publish(ctx context.Context, log *slog.Logger, res *Result) error {
	var lastErr error
	for attempt := range MaxPublishAttempts {
		lastErr = w.pub.PublishDocument(ctx, res.Summary, res.Listing.Entries())
		if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxPublishAttempts-1 {
			return lastErr
		}
		log.Warn("retryable publish error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(PublishBackoff(attempt, lastErr)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// flattenText joins page text for hashing.
func flattenText(doc *doctree.Document) string {
	var sb strings.Builder
	for i, p := range doc.Pages {
		if i > 0 {
			sb.WriteString("\f")
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}
