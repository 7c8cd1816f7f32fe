package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"zephuris/divarworker/helpers"
	"zephuris/divarworker/internal/ad"
	"zephuris/divarworker/logger"
	"zephuris/divarworker/services/publisher"
	"zephuris/divarworker/services/store"
)

// PublishKey is the stream field carrying a base64 JSON ad
const PublishKey = "b64_ad"

// Outcome is the result of handling one ad page
type Outcome int

const (
	OutcomeNew Outcome = iota
	OutcomeDuplicate
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNew:
		return "new"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "failed"
	}
}

// Extractor turns an ad page into a record
type Extractor interface {
	Extract(html, link string) (ad.Record, error)
}

// Stats counts what happened during a run
type Stats struct {
	SeedPagesFetched int
	SeedPagesFailed  int
	AdPagesFetched   int
	AdPagesFailed    int
	Extracted        int
	New              int
	Duplicates       int
	PersistFailures  int
}

// Worker extracts, deduplicates, persists and publishes ads
type Worker struct {
	mu        sync.Mutex
	extractor Extractor
	index     *ad.Index
	store     store.Store
	publisher publisher.Publisher
	failures  helpers.FailureRecorder
	runID     string
	results   []ad.Record
	stats     Stats
	log       *logger.Logger
}

// NewWorker creates a new worker. pub and failures may be nil.
func NewWorker(
	ex Extractor,
	index *ad.Index,
	st store.Store,
	pub publisher.Publisher,
	failures helpers.FailureRecorder,
	runID string,
) *Worker {
	return &Worker{
		extractor: ex,
		index:     index,
		store:     st,
		publisher: pub,
		failures:  failures,
		runID:     runID,
		log:       logger.ForWorker().WithField("run_id", runID),
	}
}

// HandleAd extracts a record from html and stores it unless its key is
// already known
func (w *Worker) HandleAd(ctx context.Context, link, html string) Outcome {
	rec, err := w.extractor.Extract(html, link)
	if err != nil {
		w.log.Warn().Err(err).Str("link", link).Msg("Failed to extract ad")
		w.recordFailure("extractor", link, err)
		return OutcomeFailed
	}
	rec.Seal()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.Extracted++

	if w.index.Contains(rec.MainKey) {
		w.stats.Duplicates++
		w.log.Info().Str("link", link).Msg("duplicate")
		return OutcomeDuplicate
	}

	if err := w.store.Append(ctx, rec); err != nil {
		w.stats.PersistFailures++
		w.log.WithError(err).Error().Str("link", link).Msg("Failed to persist ad")
		w.recordFailure("store", link, err)
		return OutcomeFailed
	}

	w.index.Remember(rec.MainKey)
	w.results = append(w.results, rec)
	w.stats.New++
	w.log.Info().Str("link", link).Int("count", w.stats.New).Msg("ad extracted")

	w.publish(ctx, rec)
	return OutcomeNew
}

// SeedFetched records the outcome of a search page fetch
func (w *Worker) SeedFetched(url string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.stats.SeedPagesFailed++
		w.recordFailure("seed", url, err)
		return
	}
	w.stats.SeedPagesFetched++
}

// AdFetched records the outcome of an ad page fetch
func (w *Worker) AdFetched(url string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.stats.AdPagesFailed++
		w.recordFailure("ad", url, err)
		return
	}
	w.stats.AdPagesFetched++
}

// Stats returns a snapshot of the run counters
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Results returns the records stored during this run
func (w *Worker) Results() []ad.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]ad.Record(nil), w.results...)
}

// Finish trims the publish stream once the crawl is over
func (w *Worker) Finish(ctx context.Context) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.TrimStreams(ctx); err != nil {
		logger.ForPublisher().WithError(err).Warn().Msg("Failed to trim stream")
	}
}

// Summary describes the run, telling apart runs where everything was
// already stored from runs where nothing could be fetched
func (s Stats) Summary() string {
	counts := fmt.Sprintf("seed pages %d ok / %d failed, ad pages %d ok / %d failed, extracted %d, new %d, duplicates %d, persist failures %d",
		s.SeedPagesFetched, s.SeedPagesFailed, s.AdPagesFetched, s.AdPagesFailed,
		s.Extracted, s.New, s.Duplicates, s.PersistFailures)

	var verdict string
	switch {
	case s.New > 0:
		verdict = fmt.Sprintf("%d new ads stored", s.New)
	case s.Extracted > 0 && s.Duplicates == s.Extracted:
		verdict = "0 new ads: every extracted ad was already stored"
	case s.AdPagesFetched == 0 && s.AdPagesFailed > 0:
		verdict = "0 new ads: every ad page fetch failed"
	case s.SeedPagesFetched == 0 && s.SeedPagesFailed > 0:
		verdict = "0 new ads: every search page fetch failed"
	case s.PersistFailures > 0:
		verdict = "0 new ads: every new ad failed to persist"
	default:
		verdict = "0 new ads: no ad links found"
	}

	return verdict + " (" + counts + ")"
}

func (w *Worker) publish(ctx context.Context, rec ad.Record) {
	if w.publisher == nil {
		return
	}

	data, err := json.Marshal(rec)
	if err != nil {
		logger.ForPublisher().Warn().Err(err).Str("link", rec.Link).Msg("Failed to encode ad")
		return
	}

	if err := w.publisher.Publish(ctx, PublishKey, data); err != nil {
		logger.ForPublisher().Warn().Err(err).Str("link", rec.Link).Msg("Failed to publish ad")
	}
}

func (w *Worker) recordFailure(component, url string, err error) {
	if w.failures != nil {
		w.failures.Record(component, url, err)
	}
}
