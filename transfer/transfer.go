// Package transfer drives the one-at-a-time batch transfer of track
// descriptors: resolve each to a video source, retrieve its audio, pause,
// move on. One failing track never aborts the batch, and at most one batch
// runs at a time.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/stxfxno/listify/must"
	"github.com/stxfxno/listify/ratelimit"
	"github.com/stxfxno/listify/spotify/types"
	"github.com/stxfxno/listify/youtube"
)

var (
	ErrTransferInProgress = errors.New("another transfer is in progress")
	ErrNoTracks           = errors.New("no transferable tracks in the batch")
)

// Resolver maps a track display string to at most one video source.
// youtube.ErrNoMatch means nothing matched; any other error means the call
// itself failed.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*youtube.Video, error)
}

// Fetcher retrieves the audio of a resolved video. display is the original
// track descriptor string, used for naming the result.
type Fetcher interface {
	Fetch(ctx context.Context, video *youtube.Video, display string) error
}

// Sleeper waits out a pacing delay. Tests inject one that returns
// immediately so the loop runs without wall-clock waits.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(ratelimit.Jitter(d))
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Options struct {
	// TrackDelay is the pause between consecutive items. Not applied after
	// the last one.
	TrackDelay time.Duration
	// ResetDelay is how long the final 100% progress stays visible before
	// the cosmetic reset to 0.
	ResetDelay time.Duration
	// Sleep overrides the delay mechanism. Nil means real, jittered sleeps.
	Sleep Sleeper
}

// Orchestrator owns the state of a batch transfer. A second Run while one is
// active is rejected, never interleaved: the guard is a weighted semaphore
// acquired with TryAcquire at entry and released when the loop exits, on any
// path.
type Orchestrator struct {
	logger   zerolog.Logger
	resolver Resolver
	fetcher  Fetcher
	reporter Reporter
	sleep    Sleeper
	delay    time.Duration
	reset    time.Duration
	sem      *semaphore.Weighted
}

func New(logger zerolog.Logger, resolver Resolver, fetcher Fetcher, reporter Reporter, opts Options) *Orchestrator {
	must.Be(nil != resolver, "orchestrator requires a resolver")
	must.Be(nil != fetcher, "orchestrator requires a fetcher")

	if nil == reporter {
		reporter = NopReporter{}
	}

	sleep := opts.Sleep
	if nil == sleep {
		sleep = defaultSleep
	}

	return &Orchestrator{
		logger:   logger,
		resolver: resolver,
		fetcher:  fetcher,
		reporter: reporter,
		sleep:    sleep,
		delay:    opts.TrackDelay,
		reset:    opts.ResetDelay,
		sem:      semaphore.NewWeighted(1),
	}
}

// Run processes descriptors strictly sequentially: group header rows are
// skipped, every other row is resolved and fetched, and per-item failures
// are reported and swallowed so the loop always reaches the end of the
// batch. Context cancellation stops the loop between items; the completion
// reporting still runs.
func (o *Orchestrator) Run(ctx context.Context, descriptors []types.TrackDescriptor) error {
	if !o.sem.TryAcquire(1) {
		return ErrTransferInProgress
	}
	defer o.sem.Release(1)

	var items []types.TrackDescriptor
	for _, d := range descriptors {
		if d.GroupHeader {
			continue
		}
		items = append(items, d)
	}

	total := len(items)
	if total == 0 {
		return ErrNoTracks
	}

	o.logger.Info().Int("tracks", total).Msg("Transfer started")

	for i, d := range items {
		if nil != ctx.Err() {
			o.logger.Warn().Int("remaining", total-i).Msg("Transfer canceled")
			break
		}

		o.reporter.Task(fmt.Sprintf("Processing (%d/%d): %s", i+1, total, d.Display))
		o.processOne(ctx, d)
		o.reporter.Progress(float64(i+1) / float64(total) * 100)

		if i < total-1 {
			if err := o.sleep(ctx, o.delay); nil != err {
				o.logger.Warn().Int("remaining", total-i-1).Msg("Transfer canceled")
				break
			}
		}
	}

	o.reporter.Task("Transfer finished")
	o.reporter.Status(fmt.Sprintf("Processed %d tracks", total))
	o.reporter.Progress(100)
	o.reporter.Notify("Transfer complete. Check your downloads.", NotifySuccess)

	// Cosmetic: let the full bar sit for a moment, then clear it.
	if err := o.sleep(ctx, o.reset); nil == err {
		o.reporter.Progress(0)
	}

	return nil
}

// processOne isolates a single item. Every failure mode, a match miss, a
// failed call, even a panic out of a collaborator, is reported and contained
// here so the batch keeps going.
func (o *Orchestrator) processOne(ctx context.Context, d types.TrackDescriptor) {
	defer func() {
		if r := recover(); nil != r {
			o.logger.Error().Any("panic", r).Str("track", d.Display).Msg("Item processing panicked")
			o.reporter.Notify("Internal error processing: "+d.Display, NotifyError)
		}
	}()

	o.reporter.Status("Searching: " + d.Display)

	video, err := o.resolver.Resolve(ctx, d.Display)
	if nil != err {
		if errors.Is(err, youtube.ErrNoMatch) {
			o.logger.Info().Str("track", d.Display).Msg("No source matched")
			o.reporter.Notify("No match found for: "+d.Display, NotifyError)

			return
		}

		o.logger.Error().Err(err).Str("track", d.Display).Msg("Source resolution failed")
		o.reporter.Notify("Search failed for: "+d.Display, NotifyError)

		return
	}

	o.reporter.Status("Found: " + video.Title)

	if err := o.fetcher.Fetch(ctx, video, d.Display); nil != err {
		o.logger.Error().Err(err).Str("track", d.Display).Str("video_id", video.ID).Msg("Audio retrieval failed")
		o.reporter.Notify("Download failed for: "+d.Display, NotifyError)

		return
	}

	o.reporter.Notify("Downloaded: "+d.Display, NotifySuccess)
}
