package youtube

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/stxfxno/listify/config"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// Searcher issues a single search call and returns the matches in ranking
// order, empty when nothing matched.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Video, error)
}

// Client talks to YouTube through yt-dlp.
type Client struct {
	logger   zerolog.Logger
	timeouts config.DownloaderTimeouts
}

func NewClient(logger zerolog.Logger, timeouts config.DownloaderTimeouts) *Client {
	return &Client{
		logger:   logger,
		timeouts: timeouts,
	}
}

// Install downloads the yt-dlp binary if it is not already present. Must be
// called once before Search or Download.
func Install(ctx context.Context) error {
	if _, err := ytdlp.Install(ctx, nil); nil != err {
		return fmt.Errorf("install yt-dlp: %w", err)
	}

	return nil
}

// Resolve maps a track display string to at most one video through s. When
// the exact query yields nothing it is broadened: first the two halves around
// the " - " separator joined with a space, then the first half alone. The
// first non-empty result set wins. Search failures propagate untouched;
// ErrNoMatch is returned only after every form came back empty.
func Resolve(ctx context.Context, s Searcher, query string) (*Video, error) {
	videos, err := s.Search(ctx, query)
	if nil != err {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if len(videos) > 0 {
		return &videos[0], nil
	}

	title, artist, ok := strings.Cut(query, " - ")
	if !ok {
		return nil, ErrNoMatch
	}

	videos, err = s.Search(ctx, title+" "+artist)
	if nil != err {
		return nil, fmt.Errorf("search %q: %w", title+" "+artist, err)
	}
	if len(videos) > 0 {
		return &videos[0], nil
	}

	videos, err = s.Search(ctx, title)
	if nil != err {
		return nil, fmt.Errorf("search %q: %w", title, err)
	}
	if len(videos) > 0 {
		return &videos[0], nil
	}

	return nil, ErrNoMatch
}

func (c *Client) Search(ctx context.Context, query string) ([]Video, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.SearchVideo.Duration)
	defer cancel()

	dl := ytdlp.New().
		DumpSingleJSON().
		FlatPlaylist().
		SkipDownload().
		NoWarnings()

	res, err := dl.Run(ctx, "ytsearch1:"+query)
	if nil != err {
		c.logger.Error().Err(err).Str("query", query).Msg("Video search failed")
		return nil, fmt.Errorf("run yt-dlp search: %w", err)
	}

	if !gjson.Valid(res.Stdout) {
		return nil, fmt.Errorf("unexpected yt-dlp search output: %s", res.Stdout)
	}

	entries := gjson.Get(res.Stdout, "entries").Array()
	videos := make([]Video, 0, len(entries))
	for _, entry := range entries {
		id := entry.Get("id").String()
		if id == "" {
			continue
		}

		url := entry.Get("url").String()
		if url == "" {
			url = watchURLPrefix + id
		}

		thumbnail := entry.Get("thumbnails.0.url").String()
		if thumbnail == "" {
			thumbnail = entry.Get("thumbnail").String()
		}

		videos = append(videos, Video{
			ID:        id,
			Title:     entry.Get("title").String(),
			URL:       url,
			Thumbnail: thumbnail,
		})
	}

	return videos, nil
}

// Download extracts the audio of the given video as an MP3 at dst. Transient
// failures are retried with exponential backoff, two attempts at most.
func (c *Client) Download(ctx context.Context, videoID, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.FetchAudio.Duration)
	defer cancel()

	op := func() error {
		dl := ytdlp.New().
			ExtractAudio().
			AudioFormat("mp3").
			Format("bestaudio/best").
			NoPlaylist().
			NoProgress().
			Output(dst)

		if _, err := dl.Run(ctx, watchURLPrefix+videoID); nil != err {
			c.logger.Warn().Err(err).Str("video_id", videoID).Msg("Audio extraction attempt failed")
			return fmt.Errorf("run yt-dlp download: %w", err)
		}

		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(2*time.Second),
			),
			1,
		),
		ctx,
	)
	if err := backoff.Retry(op, bo); nil != err {
		return fmt.Errorf("download audio for video %s: %w", videoID, err)
	}

	return nil
}
