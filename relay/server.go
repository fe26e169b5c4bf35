// Package relay is the one-hop proxy between the client and the three
// upstream services: the Spotify token exchange, the YouTube search, and the
// audio retrieval. It holds no durable state; its only memory is two TTL
// caches and a temp directory of already-rendered files.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/stxfxno/listify/cache"
	"github.com/stxfxno/listify/config"
	"github.com/stxfxno/listify/youtube"
)

const defaultExchangeURL = "https://accounts.spotify.com/api/token"

type Server struct {
	logger   zerolog.Logger
	conf     config.Server
	timeouts config.DownloaderTimeouts
	yt       *youtube.Client
	caches   *cache.Cache
	http     *http.Client
	limiter  *rate.Limiter
	srv      *http.Server

	// ExchangeURL is the upstream credential exchange endpoint. Tests point
	// it at a local server.
	ExchangeURL string
}

func New(logger zerolog.Logger, conf config.Server, timeouts config.DownloaderTimeouts) *Server {
	s := &Server{
		logger:      logger,
		conf:        conf,
		timeouts:    timeouts,
		yt:          youtube.NewClient(logger, timeouts),
		caches:      cache.New(),
		http:        &http.Client{}, //nolint:exhaustruct
		limiter:     rate.NewLimiter(rate.Every(conf.RateEvery.Duration), conf.RateBurst),
		srv:         nil,
		ExchangeURL: defaultExchangeURL,
	}

	s.srv = &http.Server{ //nolint:exhaustruct
		Addr:              conf.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/spotify/token", s.handleToken)
	mux.HandleFunc("GET /api/search-youtube", s.handleSearch)
	mux.HandleFunc("GET /api/download", s.handleDownload)

	return s.withRecovery(s.withRateLimit(s.withLogging(mux)))
}

// Handler exposes the middleware-wrapped route table. Tests drive it without
// a listener.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start prepares the temp dir and the yt-dlp binary, then serves until ctx
// is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.conf.TempDir, 0o755); nil != err {
		return fmt.Errorf("create temp dir: %v", err)
	}

	if err := youtube.Install(ctx); nil != err {
		return fmt.Errorf("prepare yt-dlp: %w", err)
	}

	go s.sweepLoop(ctx)

	s.logger.Info().Str("addr", s.conf.ListenAddr).Msg("Relay listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); nil != err && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); nil != err {
			return fmt.Errorf("shutdown: %v", err)
		}

		return nil
	}
}

// sweepLoop periodically deletes rendered files old enough that no client is
// still fetching them.
func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.conf.SweepInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweep(); nil != err {
				s.logger.Error().Err(err).Msg("Temp dir sweep failed")
			}
		}
	}
}

func (s *Server) sweep() error {
	entries, err := os.ReadDir(s.conf.TempDir)
	if nil != err {
		return fmt.Errorf("read temp dir: %v", err)
	}

	cutoff := time.Now().Add(-s.conf.SweepMaxAge.Duration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if nil != err {
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.conf.TempDir, entry.Name())
			if err := os.Remove(path); nil != err {
				s.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove stale temp file")
				continue
			}
			s.logger.Debug().Str("path", path).Msg("Removed stale temp file")
		}
	}

	return nil
}
