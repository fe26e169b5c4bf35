package relay

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/stxfxno/listify/constant"
	"github.com/stxfxno/listify/fsutil"
	"github.com/stxfxno/listify/httputil"
	"github.com/stxfxno/listify/youtube"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	//nolint:errcheck
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": constant.Version,
	})
}

type tokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); nil != err {
		//nolint:errcheck
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ClientID == "" || req.ClientSecret == "" {
		//nolint:errcheck
		httputil.WriteError(w, http.StatusBadRequest, "spotify credentials are required")
		return
	}

	item, err := s.caches.Tokens.Fetch(
		"spotify:token:"+req.ClientID,
		s.conf.TokenTTL.Duration,
		func() (string, error) {
			return s.exchangeToken(r.Context(), req.ClientID, req.ClientSecret)
		},
	)
	if nil != err {
		s.logger.Error().Err(err).Msg("Failed to obtain spotify token")
		//nolint:errcheck
		httputil.WriteError(w, http.StatusInternalServerError, "failed to obtain spotify token")
		return
	}

	//nolint:errcheck
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"access_token": item.Value()})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		//nolint:errcheck
		httputil.WriteError(w, http.StatusBadRequest, "a search query is required")
		return
	}

	item, err := s.caches.Searches.Fetch(
		"youtube:search:"+query,
		s.conf.SearchTTL.Duration,
		func() (*youtube.Video, error) {
			return youtube.Resolve(r.Context(), s.yt, query)
		},
	)
	if nil != err {
		if errors.Is(err, youtube.ErrNoMatch) {
			//nolint:errcheck
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"message": "not found: " + query,
			})
			return
		}

		s.logger.Error().Err(err).Str("query", query).Msg("Video search failed")
		//nolint:errcheck
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "failed to search video",
			"message": err.Error(),
		})
		return
	}

	//nolint:errcheck
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"video":   item.Value(),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	videoID := q.Get("videoId")
	if videoID == "" {
		//nolint:errcheck
		httputil.WriteError(w, http.StatusBadRequest, "a video id is required")
		return
	}

	filename := fsutil.SanitizeFilename(q.Get("title")) + ".mp3"
	tmpPath := filepath.Join(s.conf.TempDir, uuid.New().String()+".mp3")
	defer func() {
		if err := os.Remove(tmpPath); nil != err && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", tmpPath).Msg("Failed to remove rendered file")
		}
	}()

	if err := s.yt.Download(r.Context(), videoID, tmpPath); nil != err {
		s.logger.Error().Err(err).Str("video_id", videoID).Msg("Audio retrieval failed")
		//nolint:errcheck
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "failed to retrieve audio",
			"message": err.Error(),
		})
		return
	}

	if q.Get("tag") == "1" {
		meta := trackMeta{
			Title:    q.Get("title"),
			Artist:   q.Get("artist"),
			Album:    q.Get("album"),
			CoverURL: q.Get("coverUrl"),
		}
		if err := s.embedTags(r.Context(), tmpPath, meta); nil != err {
			// Tagging is best effort; the audio is still served untagged.
			s.logger.Warn().Err(err).Str("video_id", videoID).Msg("Failed to embed tags")
		}
	}

	f, err := os.Open(tmpPath)
	if nil != err {
		s.logger.Error().Err(err).Str("path", tmpPath).Msg("Failed to open rendered file")
		//nolint:errcheck
		httputil.WriteError(w, http.StatusInternalServerError, "failed to open rendered audio")
		return
	}
	defer func() {
		if closeErr := f.Close(); nil != closeErr {
			s.logger.Warn().Err(closeErr).Str("path", tmpPath).Msg("Failed to close rendered file")
		}
	}()

	stat, err := f.Stat()
	if nil != err {
		s.logger.Error().Err(err).Str("path", tmpPath).Msg("Failed to stat rendered file")
		//nolint:errcheck
		httputil.WriteError(w, http.StatusInternalServerError, "failed to stat rendered audio")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	// From here on the stream has started: any failure can only terminate
	// the connection, never rewrite the response.
	http.ServeContent(w, r, filename, stat.ModTime(), f)
}
