package client_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stxfxno/listify/client"
	"github.com/stxfxno/listify/config"
	"github.com/stxfxno/listify/youtube"
)

func testTimeouts(t *testing.T) config.DownloaderTimeouts {
	t.Helper()

	conf, err := config.Load("")
	require.NoError(t, err)

	return conf.Downloader.Timeouts
}

func TestExchange(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/spotify/token", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req struct {
			ClientID     string `json:"clientId"`
			ClientSecret string `json:"clientSecret"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "abc", req.ClientID)
		assert.Equal(t, "s3cret", req.ClientSecret)

		fmt.Fprint(w, `{"access_token": "the-token"}`)
	}))
	defer srv.Close()

	r := client.NewRelay(zerolog.Nop(), srv.URL, t.TempDir(), testTimeouts(t))

	token, err := r.Exchange(t.Context(), "abc", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "the-token", token)
}

func TestExchangeRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": "failed to obtain spotify token"}`)
	}))
	defer srv.Close()

	r := client.NewRelay(zerolog.Nop(), srv.URL, t.TempDir(), testTimeouts(t))

	_, err := r.Exchange(t.Context(), "abc", "wrong")
	require.ErrorIs(t, err, client.ErrExchangeFailed)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/search-youtube", r.URL.Path)
		assert.Equal(t, "Song - Artist", r.URL.Query().Get("query"))

		fmt.Fprint(w, `{"success": true, "video": {"id": "v1", "title": "Song", "url": "https://www.youtube.com/watch?v=v1"}}`)
	}))
	defer srv.Close()

	r := client.NewRelay(zerolog.Nop(), srv.URL, t.TempDir(), testTimeouts(t))

	video, err := r.Resolve(t.Context(), "Song - Artist")
	require.NoError(t, err)
	assert.Equal(t, "v1", video.ID)
}

func TestResolveMiss(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success": false, "message": "not found: Song - Artist"}`)
	}))
	defer srv.Close()

	r := client.NewRelay(zerolog.Nop(), srv.URL, t.TempDir(), testTimeouts(t))

	_, err := r.Resolve(t.Context(), "Song - Artist")
	require.ErrorIs(t, err, youtube.ErrNoMatch)
}

func TestFetchWritesSanitizedFile(t *testing.T) {
	t.Parallel()

	audio := []byte("ID3 fake mp3 payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/download", r.URL.Path)
		assert.Equal(t, "v1", r.URL.Query().Get("videoId"))
		assert.Equal(t, "Song: Name - Artist", r.URL.Query().Get("title"))
		assert.Empty(t, r.URL.Query().Get("tag"))

		w.Header().Set("Content-Type", "audio/mpeg")
		_, err := w.Write(audio)
		assert.NoError(t, err)
	}))
	defer srv.Close()

	downloads := t.TempDir()
	r := client.NewRelay(zerolog.Nop(), srv.URL, downloads, testTimeouts(t))

	video := &youtube.Video{ID: "v1", Title: "Song", URL: "https://www.youtube.com/watch?v=v1", Thumbnail: ""}
	require.NoError(t, r.Fetch(t.Context(), video, "Song: Name - Artist"))

	got, err := os.ReadFile(filepath.Join(downloads, "Song__Name_-_Artist.mp3"))
	require.NoError(t, err)
	assert.Equal(t, audio, got)
}

func TestFetchForwardsTagMetadata(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("tag"))
		assert.Equal(t, "Discovery", q.Get("album"))
		assert.Equal(t, "https://img.example/cover.jpg", q.Get("coverUrl"))

		_, err := w.Write([]byte("audio"))
		assert.NoError(t, err)
	}))
	defer srv.Close()

	r := client.NewRelay(zerolog.Nop(), srv.URL, t.TempDir(), testTimeouts(t))
	r.Tags = client.TagMeta{
		Enabled:  true,
		Album:    "Discovery",
		CoverURL: "https://img.example/cover.jpg",
	}

	video := &youtube.Video{ID: "v1", Title: "Song", URL: "https://www.youtube.com/watch?v=v1", Thumbnail: ""}
	require.NoError(t, r.Fetch(t.Context(), video, "Song - Artist"))
}

func TestFetchFailureLeavesNoFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": "failed to retrieve audio"}`)
	}))
	defer srv.Close()

	downloads := t.TempDir()
	r := client.NewRelay(zerolog.Nop(), srv.URL, downloads, testTimeouts(t))

	video := &youtube.Video{ID: "v1", Title: "Song", URL: "https://www.youtube.com/watch?v=v1", Thumbnail: ""}
	require.Error(t, r.Fetch(t.Context(), video, "Song - Artist"))

	entries, err := os.ReadDir(downloads)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
