package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medscribe/notequeue/internal/config"
	"github.com/medscribe/notequeue/internal/domain"
	"github.com/medscribe/notequeue/internal/notestore"
	"github.com/medscribe/notequeue/internal/notify"
	"github.com/medscribe/notequeue/internal/provider"
	"github.com/medscribe/notequeue/internal/queue"
	"github.com/medscribe/notequeue/internal/ratelimiter"
	"github.com/medscribe/notequeue/internal/repository"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the constructor signature clean.
type MetricHooks struct {
	OnFinished            func(kind domain.NoteKind, status domain.Status, latency time.Duration)
	OnTranslationFallback func()
}

// Options tunes the external calls made per entry.
type Options struct {
	TargetLanguage   string
	TranslateTimeout time.Duration
	GenerateTimeout  time.Duration

	// AbortOnTranslationError fails the entry when translation fails.
	// When false the original text is sent to the generator instead.
	AbortOnTranslationError bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TargetLanguage:          cfg.TargetLanguage,
		TranslateTimeout:        cfg.TranslateTimeout,
		GenerateTimeout:         cfg.GenerateTimeout,
		AbortOnTranslationError: cfg.TranslationFailurePolicy == config.PolicyAbort,
	}
}

// Dispatcher executes one queue entry's unit of work. There is exactly one
// attempt per entry: any failure is terminal and recovery is a regenerate,
// which creates a new entry.
type Dispatcher struct {
	repo       repository.EntryRepository
	notes      *notestore.Registry
	translator provider.Translator
	generator  provider.Generator
	limiter    *ratelimiter.ServiceLimiters
	notifier   notify.Notifier
	opts       Options
	logger     *zap.Logger
	hooks      MetricHooks
}

// NewDispatcher constructs a dispatcher. A nil translator skips translation.
// Hook functions are optional (nil = no-op).
func NewDispatcher(
	repo repository.EntryRepository,
	notes *notestore.Registry,
	translator provider.Translator,
	generator provider.Generator,
	limiter *ratelimiter.ServiceLimiters,
	notifier notify.Notifier,
	opts Options,
	logger *zap.Logger,
	hooks MetricHooks,
) *Dispatcher {
	if hooks.OnFinished == nil {
		hooks.OnFinished = func(domain.NoteKind, domain.Status, time.Duration) {}
	}
	if hooks.OnTranslationFallback == nil {
		hooks.OnTranslationFallback = func() {}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Dispatcher{
		repo: repo, notes: notes, translator: translator, generator: generator,
		limiter: limiter, notifier: notifier, opts: opts, logger: logger, hooks: hooks,
	}
}

// Process runs the job to a terminal status. It never panics and never
// returns an error: there is no caller to report to, so failures become a
// failed entry plus a log line.
func (d *Dispatcher) Process(ctx context.Context, job queue.Job) {
	log := d.logger.With(
		zap.String("entry_id", job.EntryID),
		zap.String("note_id", job.Note.ID),
		zap.String("note_kind", string(job.Note.Kind)),
	)

	// The conditional update is the only claim on the entry: if it is no
	// longer queued, another dispatch got there first and this one is stale.
	entry, err := d.repo.TransitionStatus(ctx, job.EntryID, domain.StatusQueued, domain.StatusInProgress)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrStateViolation):
			log.Warn("entry already picked up, skipping duplicate dispatch", zap.Error(err))
		case errors.Is(err, domain.ErrNotFound):
			log.Warn("entry removed before dispatch")
		default:
			log.Error("failed to mark entry in progress", zap.Error(err))
		}
		return
	}
	start := time.Now()
	d.signal(ctx, notify.EventEntryStarted, entry)

	final := domain.StatusDone
	if err := d.safeRun(ctx, job, log); err != nil {
		final = domain.StatusFailed
		log.Error("queue entry failed", zap.Error(err))
	}

	finished, err := d.repo.TransitionStatus(ctx, job.EntryID, domain.StatusInProgress, final)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("entry removed while in progress", zap.String("status", string(final)))
		} else {
			log.Error("failed to record terminal status", zap.String("status", string(final)), zap.Error(err))
		}
		return
	}

	elapsed := time.Since(start)
	d.hooks.OnFinished(job.Note.Kind, final, elapsed)
	d.signal(ctx, notify.EventEntryFinished, finished)
	log.Info("queue entry finished", zap.String("status", string(final)), zap.Duration("latency", elapsed))
}

// safeRun converts a panic anywhere in the pipeline into an error.
func (d *Dispatcher) safeRun(ctx context.Context, job queue.Job, log *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during dispatch: %v", r)
		}
	}()
	return d.run(ctx, job, log)
}

func (d *Dispatcher) run(ctx context.Context, job queue.Job, log *zap.Logger) error {
	store, err := d.notes.Lookup(job.Note.Kind)
	if err != nil {
		return err
	}
	params, err := store.GetProcessingParameters(ctx, job.Note.ID)
	if err != nil {
		return fmt.Errorf("resolve processing parameters: %w", err)
	}

	text, err := d.translate(ctx, job.Text, log)
	if err != nil {
		return err
	}

	result, err := d.generate(ctx, provider.GenerateParams{
		AIContext:   params.AIContext,
		Environment: params.Environment,
	}, text)
	if err != nil {
		return err
	}

	if err := store.WriteResult(ctx, job.Note.ID, result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	if params.CurrentResult != "" {
		if err := store.AppendResultHistory(ctx, job.Note.ID, params.CurrentResult, job.OwnerID); err != nil {
			// The new result is already stored; a missing audit row is not
			// worth failing the entry over.
			log.Warn("failed to append result history", zap.Error(err))
		}
	}
	return nil
}

func (d *Dispatcher) translate(ctx context.Context, text string, log *zap.Logger) (string, error) {
	if d.translator == nil {
		return text, nil
	}

	tctx, cancel := context.WithTimeout(ctx, d.opts.TranslateTimeout)
	defer cancel()

	out, err := d.callTranslator(tctx, text)
	if err == nil {
		return out, nil
	}
	if d.opts.AbortOnTranslationError {
		return "", fmt.Errorf("translate: %w", err)
	}

	log.Warn("translation failed, generating from original text", zap.Error(err))
	d.hooks.OnTranslationFallback()
	return text, nil
}

func (d *Dispatcher) callTranslator(ctx context.Context, text string) (string, error) {
	if err := d.limiter.Wait(ctx, ratelimiter.ServiceTranslate); err != nil {
		return "", fmt.Errorf("%w: translate rate limit: %v", domain.ErrExternalService, err)
	}
	return d.translator.Translate(ctx, text, d.opts.TargetLanguage)
}

func (d *Dispatcher) generate(ctx context.Context, params provider.GenerateParams, text string) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, d.opts.GenerateTimeout)
	defer cancel()

	if err := d.limiter.Wait(gctx, ratelimiter.ServiceGenerate); err != nil {
		return "", fmt.Errorf("%w: generate rate limit: %v", domain.ErrExternalService, err)
	}

	result, err := d.generator.Generate(gctx, params, text)
	if err != nil {
		if errors.Is(gctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrExternalService) {
			return "", fmt.Errorf("%w: generate timed out: %v", domain.ErrExternalService, err)
		}
		return "", fmt.Errorf("generate: %w", err)
	}
	if strings.TrimSpace(result) == "" {
		return "", domain.ErrEmptyResult
	}
	return result, nil
}

func (d *Dispatcher) signal(ctx context.Context, kind notify.EventKind, e *domain.QueueEntry) {
	d.notifier.Signal(ctx, notify.Event{
		Kind:    kind,
		EntryID: e.ID,
		Note:    e.Note,
		OwnerID: e.OwnerID,
		Status:  e.Status,
	})
}
