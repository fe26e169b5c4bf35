// Package client is the thin HTTP client for the relay. It implements the
// credential exchanger for the token broker and the resolver/fetcher pair
// the transfer orchestrator drives.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/stxfxno/listify/config"
	"github.com/stxfxno/listify/fsutil"
	"github.com/stxfxno/listify/httputil"
	"github.com/stxfxno/listify/youtube"
)

var ErrExchangeFailed = errors.New("credential exchange failed")

// TagMeta is the optional metadata forwarded to the relay for ID3 embedding.
type TagMeta struct {
	Enabled  bool
	Album    string
	CoverURL string
}

type Relay struct {
	logger       zerolog.Logger
	http         *http.Client
	baseURL      string
	downloadsDir string
	timeouts     config.DownloaderTimeouts

	// Tags applies to every fetched track of the current batch.
	Tags TagMeta
}

func NewRelay(logger zerolog.Logger, baseURL, downloadsDir string, timeouts config.DownloaderTimeouts) *Relay {
	return &Relay{
		logger:       logger,
		http:         &http.Client{}, //nolint:exhaustruct
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		downloadsDir: downloadsDir,
		timeouts:     timeouts,
		Tags:         TagMeta{Enabled: false, Album: "", CoverURL: ""},
	}
}

// Exchange implements auth.Exchanger against the relay's token endpoint.
func (r *Relay) Exchange(ctx context.Context, clientID, clientSecret string) (token string, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.TokenExchange.Duration)
	defer cancel()

	reqBody, err := json.Marshal(map[string]string{
		"clientId":     clientID,
		"clientSecret": clientSecret,
	})
	if nil != err {
		return "", fmt.Errorf("encode token request body: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/spotify/token", strings.NewReader(string(reqBody)))
	if nil != err {
		return "", fmt.Errorf("create token request: %v", err)
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if nil != err {
		return "", fmt.Errorf("issue token request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close response body: %v", closeErr))
		}
	}()

	respBytes, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return "", fmt.Errorf("read token response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.Error().Int("status_code", resp.StatusCode).Bytes("response_body", respBytes).Msg("Token exchange failed")
		return "", ErrExchangeFailed
	}

	var respBody struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		return "", fmt.Errorf("decode token response body: %v", err)
	}

	if respBody.AccessToken == "" {
		return "", ErrExchangeFailed
	}

	return respBody.AccessToken, nil
}

// Resolve implements transfer.Resolver against the relay's search endpoint.
// A success:false response maps to youtube.ErrNoMatch so the orchestrator
// can tell a miss from a failed call.
func (r *Relay) Resolve(ctx context.Context, query string) (video *youtube.Video, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.SearchVideo.Duration)
	defer cancel()

	reqURL := r.baseURL + "/api/search-youtube?query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if nil != err {
		return nil, fmt.Errorf("create search request: %v", err)
	}

	resp, err := r.http.Do(req)
	if nil != err {
		return nil, fmt.Errorf("issue search request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close response body: %v", closeErr))
		}
	}()

	respBytes, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return nil, fmt.Errorf("read search response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected search response status %d: %s", resp.StatusCode, string(respBytes))
	}

	var respBody struct {
		Success bool           `json:"success"`
		Message string         `json:"message"`
		Video   *youtube.Video `json:"video"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		return nil, fmt.Errorf("decode search response body: %v", err)
	}

	if !respBody.Success || nil == respBody.Video {
		return nil, youtube.ErrNoMatch
	}

	return respBody.Video, nil
}

// Fetch implements transfer.Fetcher: it retrieves the rendered MP3 from the
// relay and streams it into the downloads directory under the sanitized
// track name.
func (r *Relay) Fetch(ctx context.Context, video *youtube.Video, display string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.FetchAudio.Duration)
	defer cancel()

	if err := os.MkdirAll(r.downloadsDir, 0o755); nil != err {
		return fmt.Errorf("create downloads dir: %v", err)
	}

	params := make(url.Values, 2)
	params.Add("videoId", video.ID)
	params.Add("title", display)
	if r.Tags.Enabled {
		params.Add("tag", "1")
		if r.Tags.Album != "" {
			params.Add("album", r.Tags.Album)
		}
		if r.Tags.CoverURL != "" {
			params.Add("coverUrl", r.Tags.CoverURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/download?"+params.Encode(), nil)
	if nil != err {
		return fmt.Errorf("create download request: %v", err)
	}

	resp, err := r.http.Do(req)
	if nil != err {
		return fmt.Errorf("issue download request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close response body: %v", closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		respBytes, readErr := httputil.ReadResponseBody(resp)
		if nil != readErr {
			return fmt.Errorf("download rejected with status %d", resp.StatusCode)
		}

		return fmt.Errorf("download rejected with status %d: %s", resp.StatusCode, string(respBytes))
	}

	dst := filepath.Join(r.downloadsDir, fsutil.SanitizeFilename(display)+".mp3")
	f, err := os.Create(dst)
	if nil != err {
		return fmt.Errorf("create audio file: %v", err)
	}
	defer func() {
		if closeErr := f.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close audio file: %v", closeErr))
		}
		if nil != err {
			if removeErr := os.Remove(dst); nil != removeErr && !errors.Is(removeErr, os.ErrNotExist) {
				err = errors.Join(err, fmt.Errorf("remove partial audio file: %v", removeErr))
			}
		}
	}()

	n, err := io.Copy(f, resp.Body)
	if nil != err {
		return fmt.Errorf("write audio file: %w", err)
	}

	r.logger.
		Info().
		Str("track", display).
		Str("path", dst).
		Str("size", humanize.Bytes(uint64(n))).
		Msg("Track saved")

	return nil
}
