package transfer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stxfxno/listify/spotify/types"
	"github.com/stxfxno/listify/transfer"
	"github.com/stxfxno/listify/youtube"
)

type fakeResolver struct {
	mu      sync.Mutex
	queries []string
	fn      func(query string) (*youtube.Video, error)
}

func (r *fakeResolver) Resolve(_ context.Context, query string) (*youtube.Video, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()

	if nil != r.fn {
		return r.fn(query)
	}

	return &youtube.Video{ID: "vid:" + query, Title: query}, nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	fetched []string
	fn      func(display string) error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ *youtube.Video, display string) error {
	f.mu.Lock()
	f.fetched = append(f.fetched, display)
	f.mu.Unlock()

	if nil != f.fn {
		return f.fn(display)
	}

	return nil
}

type recordingReporter struct {
	mu       sync.Mutex
	progress []float64
	tasks    []string
	notifies []string
}

func (r *recordingReporter) Progress(pct float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, pct)
}

func (r *recordingReporter) Status(string) {}

func (r *recordingReporter) Task(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, text)
}

func (r *recordingReporter) Notify(text string, kind transfer.NotifyKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifies = append(r.notifies, kind.String()+": "+text)
}

func instantSleep(context.Context, time.Duration) error {
	return nil
}

func tracks(displays ...string) []types.TrackDescriptor {
	out := make([]types.TrackDescriptor, 0, len(displays))
	for _, d := range displays {
		out = append(out, types.TrackDescriptor{Display: d, GroupHeader: false})
	}

	return out
}

func TestRunProcessesInOrder(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	fetcher := &fakeFetcher{}
	reporter := &recordingReporter{}

	o := transfer.New(zerolog.Nop(), resolver, fetcher, reporter, transfer.Options{
		TrackDelay: 3 * time.Second,
		ResetDelay: 3 * time.Second,
		Sleep:      instantSleep,
	})

	err := o.Run(t.Context(), tracks("Song A - Artist", "Song B - Artist", "Song C - Artist"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Song A - Artist", "Song B - Artist", "Song C - Artist"}, resolver.queries)
	assert.Equal(t, []string{"Song A - Artist", "Song B - Artist", "Song C - Artist"}, fetcher.fetched)

	// Per-item percentages, the completion 100, then the cosmetic reset to 0.
	require.Len(t, reporter.progress, 5)
	assert.InDelta(t, 100.0/3, reporter.progress[0], 0.01)
	assert.InDelta(t, 200.0/3, reporter.progress[1], 0.01)
	assert.InDelta(t, 100, reporter.progress[2], 0.01)
	assert.InDelta(t, 100, reporter.progress[3], 0.01)
	assert.InDelta(t, 0, reporter.progress[4], 0.01)

	assert.Contains(t, reporter.tasks, "Processing (1/3): Song A - Artist")
	assert.Contains(t, reporter.tasks, "Processing (3/3): Song C - Artist")
	assert.Contains(t, reporter.tasks, "Transfer finished")
	assert.Contains(t, reporter.notifies, "success: Downloaded: Song B - Artist")
	assert.Contains(t, reporter.notifies, "success: Transfer complete. Check your downloads.")
}

func TestRunSkipsGroupHeaders(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	fetcher := &fakeFetcher{}

	o := transfer.New(zerolog.Nop(), resolver, fetcher, nil, transfer.Options{
		TrackDelay: 0,
		ResetDelay: 0,
		Sleep:      instantSleep,
	})

	descriptors := []types.TrackDescriptor{
		{Display: "ÁLBUM: Greatest Hits", GroupHeader: true},
		{Display: "  • Song One - Artist", GroupHeader: false},
		{Display: "  • Song Two - Artist", GroupHeader: false},
		{Display: "ÁLBUM: B-Sides", GroupHeader: true},
		{Display: "  • Song Three - Artist", GroupHeader: false},
	}

	err := o.Run(t.Context(), descriptors)
	require.NoError(t, err)

	assert.Equal(
		t,
		[]string{"  • Song One - Artist", "  • Song Two - Artist", "  • Song Three - Artist"},
		resolver.queries,
	)
}

func TestRunRejectsEmptyBatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		descriptors []types.TrackDescriptor
	}{
		{
			name:        "no descriptors",
			descriptors: nil,
		},
		{
			name: "headers only",
			descriptors: []types.TrackDescriptor{
				{Display: "ÁLBUM: Greatest Hits", GroupHeader: true},
				{Display: "ÁLBUM: B-Sides", GroupHeader: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resolver := &fakeResolver{}
			fetcher := &fakeFetcher{}

			o := transfer.New(zerolog.Nop(), resolver, fetcher, nil, transfer.Options{
				TrackDelay: 0,
				ResetDelay: 0,
				Sleep:      instantSleep,
			})

			err := o.Run(t.Context(), tt.descriptors)
			require.ErrorIs(t, err, transfer.ErrNoTracks)
			assert.Empty(t, resolver.queries)
		})
	}
}

func TestRunIsolatesItemFailures(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{
		fn: func(query string) (*youtube.Video, error) {
			switch query {
			case "missing":
				return nil, youtube.ErrNoMatch
			case "broken":
				return nil, errors.New("network down")
			case "panicky":
				panic("resolver exploded")
			}

			return &youtube.Video{ID: "vid:" + query, Title: query}, nil
		},
	}
	fetcher := &fakeFetcher{
		fn: func(display string) error {
			if display == "unfetchable" {
				return errors.New("disk full")
			}

			return nil
		},
	}
	reporter := &recordingReporter{}

	o := transfer.New(zerolog.Nop(), resolver, fetcher, reporter, transfer.Options{
		TrackDelay: 0,
		ResetDelay: 0,
		Sleep:      instantSleep,
	})

	err := o.Run(t.Context(), tracks("missing", "broken", "panicky", "unfetchable", "good"))
	require.NoError(t, err)

	// Every item was attempted despite the earlier failures.
	assert.Equal(t, []string{"missing", "broken", "panicky", "unfetchable", "good"}, resolver.queries)
	assert.Equal(t, []string{"unfetchable", "good"}, fetcher.fetched)

	assert.Contains(t, reporter.notifies, "error: No match found for: missing")
	assert.Contains(t, reporter.notifies, "error: Search failed for: broken")
	assert.Contains(t, reporter.notifies, "error: Internal error processing: panicky")
	assert.Contains(t, reporter.notifies, "error: Download failed for: unfetchable")
	assert.Contains(t, reporter.notifies, "success: Downloaded: good")
}

func TestRunRejectsConcurrentBatches(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	resolver := &fakeResolver{
		fn: func(string) (*youtube.Video, error) {
			close(started)
			<-release

			return nil, youtube.ErrNoMatch
		},
	}
	fetcher := &fakeFetcher{}

	o := transfer.New(zerolog.Nop(), resolver, fetcher, nil, transfer.Options{
		TrackDelay: 0,
		ResetDelay: 0,
		Sleep:      instantSleep,
	})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- o.Run(t.Context(), tracks("Song A - Artist"))
	}()

	<-started
	err := o.Run(t.Context(), tracks("Song B - Artist"))
	require.ErrorIs(t, err, transfer.ErrTransferInProgress)

	close(release)
	require.NoError(t, <-firstDone)

	// The slot is free again once the first batch finished.
	resolver.fn = nil
	require.NoError(t, o.Run(t.Context(), tracks("Song C - Artist")))
}

func TestRunStopsBetweenItemsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())

	resolver := &fakeResolver{
		fn: func(query string) (*youtube.Video, error) {
			if query == "Song B - Artist" {
				cancel()
			}

			return &youtube.Video{ID: "vid:" + query, Title: query}, nil
		},
	}
	fetcher := &fakeFetcher{}
	reporter := &recordingReporter{}

	o := transfer.New(zerolog.Nop(), resolver, fetcher, reporter, transfer.Options{
		TrackDelay: 0,
		ResetDelay: 0,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		},
	})

	err := o.Run(ctx, tracks("Song A - Artist", "Song B - Artist", "Song C - Artist"))
	require.NoError(t, err)

	// The third item never started; completion reporting still ran.
	assert.Equal(t, []string{"Song A - Artist", "Song B - Artist"}, resolver.queries)
	assert.Contains(t, reporter.tasks, "Transfer finished")
}
