package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"

	"github.com/stxfxno/listify/config"
	"github.com/stxfxno/listify/httputil"
	"github.com/stxfxno/listify/spotify/types"
)

const (
	// DefaultBaseURL is the Spotify Web API root. Overridable for tests.
	DefaultBaseURL = "https://api.spotify.com/v1"

	// AlbumHeaderPrefix marks the group header rows interleaved among album
	// search results. Rows carrying it are labels, never transferred.
	AlbumHeaderPrefix = "ÁLBUM: "
)

var (
	ErrInvalidLink  = errors.New("link is not a catalog album or playlist")
	ErrUnauthorized = errors.New("catalog rejected the access token")

	albumIDPattern    = regexp.MustCompile(`album/([a-zA-Z0-9]+)`)
	playlistIDPattern = regexp.MustCompile(`playlist/([a-zA-Z0-9]+)`)
)

// errTokenRejected signals a 401-equivalent response from the catalog. It
// triggers exactly one forced token refresh and one retry of the call.
var errTokenRejected = errors.New("access token rejected")

// TokenSource produces a currently-valid bearer token. force demands a fresh
// exchange even when a cached token is still within its soft TTL.
type TokenSource interface {
	Token(ctx context.Context, force bool) (string, error)
}

type Client struct {
	logger   zerolog.Logger
	http     *http.Client
	tokens   TokenSource
	timeouts config.DownloaderTimeouts

	// BaseURL is the catalog API root. Tests point it at a local server.
	BaseURL string
}

func NewClient(logger zerolog.Logger, tokens TokenSource, timeouts config.DownloaderTimeouts) *Client {
	return &Client{
		logger:   logger,
		http:     &http.Client{}, //nolint:exhaustruct
		tokens:   tokens,
		timeouts: timeouts,
		BaseURL:  DefaultBaseURL,
	}
}

// ParseLink classifies a collection URL by substring match and extracts the
// catalog ID. Anything that is neither an album nor a playlist link, or that
// carries no extractable ID, fails with ErrInvalidLink.
func ParseLink(raw string) (types.Link, error) {
	switch {
	case strings.Contains(raw, "album"):
		m := albumIDPattern.FindStringSubmatch(raw)
		if nil == m {
			return types.Link{}, ErrInvalidLink //nolint:exhaustruct
		}

		return types.Link{Kind: types.LinkKindAlbum, ID: m[1]}, nil
	case strings.Contains(raw, "playlist"):
		m := playlistIDPattern.FindStringSubmatch(raw)
		if nil == m {
			return types.Link{}, ErrInvalidLink //nolint:exhaustruct
		}

		return types.Link{Kind: types.LinkKindPlaylist, ID: m[1]}, nil
	default:
		return types.Link{}, ErrInvalidLink //nolint:exhaustruct
	}
}

// Collection lists the tracks of an album or playlist in upstream order.
func (c *Client) Collection(ctx context.Context, link types.Link) (*types.Collection, error) {
	var out *types.Collection
	err := c.withAuthRetry(ctx, func(ctx context.Context, token string) error {
		var err error
		switch link.Kind {
		case types.LinkKindAlbum:
			out, err = c.album(ctx, token, link.ID)
		case types.LinkKindPlaylist:
			out, err = c.playlist(ctx, token, link.ID)
		default:
			return fmt.Errorf("unsupported link kind: %s", link.Kind)
		}

		return err
	})
	if nil != err {
		return nil, err
	}

	return out, nil
}

type albumResponse struct {
	Name    string      `json:"name"`
	Artists []artist    `json:"artists"`
	Images  []image     `json:"images"`
	Tracks  albumTracks `json:"tracks"`
}

type albumTracks struct {
	Items []albumTrack `json:"items"`
}

type albumTrack struct {
	Name    string   `json:"name"`
	Artists []artist `json:"artists"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type image struct {
	URL string `json:"url"`
}

func (c *Client) album(ctx context.Context, token, id string) (*types.Collection, error) {
	var resp albumResponse
	if err := c.getJSON(ctx, c.timeouts.GetCollection.Duration, c.BaseURL+"/albums/"+id, token, &resp); nil != err {
		return nil, fmt.Errorf("get album %s: %w", id, err)
	}

	tracks := lo.Map(resp.Tracks.Items, func(t albumTrack, _ int) types.TrackDescriptor {
		return types.TrackDescriptor{
			Display:     displayName(t.Name, t.Artists),
			GroupHeader: false,
		}
	})

	title := resp.Name
	if len(resp.Artists) > 0 {
		title += " - " + resp.Artists[0].Name
	}

	return &types.Collection{
		Title:    title,
		CoverURL: firstImageURL(resp.Images),
		Tracks:   tracks,
	}, nil
}

type playlistResponse struct {
	Name   string         `json:"name"`
	Images []image        `json:"images"`
	Tracks playlistTracks `json:"tracks"`
}

type playlistTracks struct {
	Items []playlistItem `json:"items"`
}

type playlistItem struct {
	Track albumTrack `json:"track"`
}

func (c *Client) playlist(ctx context.Context, token, id string) (*types.Collection, error) {
	var resp playlistResponse
	if err := c.getJSON(ctx, c.timeouts.GetCollection.Duration, c.BaseURL+"/playlists/"+id, token, &resp); nil != err {
		return nil, fmt.Errorf("get playlist %s: %w", id, err)
	}

	tracks := lo.Map(resp.Tracks.Items, func(it playlistItem, _ int) types.TrackDescriptor {
		return types.TrackDescriptor{
			Display:     displayName(it.Track.Name, it.Track.Artists),
			GroupHeader: false,
		}
	})

	return &types.Collection{
		Title:    resp.Name,
		CoverURL: firstImageURL(resp.Images),
		Tracks:   tracks,
	}, nil
}

// Search queries the catalog. Artist searches append the first matched
// artist's top tracks after the artist rows; album searches append each
// album's track list under a group header row per album. Secondary fetches
// run serially so primary match order is preserved, and their failures only
// drop the extra rows.
func (c *Client) Search(ctx context.Context, query string, kind types.SearchKind) (*types.Collection, error) {
	var out *types.Collection
	err := c.withAuthRetry(ctx, func(ctx context.Context, token string) error {
		var err error
		out, err = c.search(ctx, token, query, kind)

		return err
	})
	if nil != err {
		return nil, err
	}

	return out, nil
}

type searchResponse struct {
	Tracks  searchTracks  `json:"tracks"`
	Artists searchArtists `json:"artists"`
	Albums  searchAlbums  `json:"albums"`
}

type searchTracks struct {
	Items []searchTrack `json:"items"`
}

type searchTrack struct {
	Name    string      `json:"name"`
	Artists []artist    `json:"artists"`
	Album   searchAlbum `json:"album"`
}

type searchArtists struct {
	Items []searchArtist `json:"items"`
}

type searchArtist struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []image `json:"images"`
}

type searchAlbums struct {
	Items []searchAlbum `json:"items"`
}

type searchAlbum struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []artist `json:"artists"`
	Images  []image  `json:"images"`
}

func (c *Client) search(ctx context.Context, token, query string, kind types.SearchKind) (*types.Collection, error) {
	var upstreamType string
	switch kind {
	case types.SearchKindTracks:
		upstreamType = "track"
	case types.SearchKindArtists:
		upstreamType = "artist"
	case types.SearchKindAlbums:
		upstreamType = "album"
	default:
		return nil, fmt.Errorf("unsupported search kind: %s", kind)
	}

	limit := lo.Ternary(kind == types.SearchKindTracks, 50, 20)
	searchURL := c.BaseURL + "/search?q=" + url.QueryEscape(query) +
		"&type=" + upstreamType + "&limit=" + strconv.Itoa(limit)

	var resp searchResponse
	if err := c.getJSON(ctx, c.timeouts.SearchCatalog.Duration, searchURL, token, &resp); nil != err {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	out := &types.Collection{
		Title:    "Results for: " + query,
		CoverURL: "",
		Tracks:   nil,
	}

	switch kind {
	case types.SearchKindTracks:
		for _, t := range resp.Tracks.Items {
			out.Tracks = append(out.Tracks, types.TrackDescriptor{
				Display:     displayName(t.Name, t.Artists),
				GroupHeader: false,
			})
		}
		if len(resp.Tracks.Items) > 0 {
			out.CoverURL = firstImageURL(resp.Tracks.Items[0].Album.Images)
		}
	case types.SearchKindArtists:
		for _, a := range resp.Artists.Items {
			out.Tracks = append(out.Tracks, types.TrackDescriptor{
				Display:     a.Name + " - Artist",
				GroupHeader: false,
			})
		}
		if len(resp.Artists.Items) > 0 {
			first := resp.Artists.Items[0]
			out.CoverURL = firstImageURL(first.Images)

			top, err := c.artistTopTracks(ctx, token, first.ID)
			if nil != err {
				c.logger.Warn().Err(err).Str("artist_id", first.ID).Msg("Failed to fetch artist top tracks")
			} else {
				out.Tracks = append(out.Tracks, top...)
			}
		}
	case types.SearchKindAlbums:
		for _, album := range resp.Albums.Items {
			header := AlbumHeaderPrefix + displayName(album.Name, album.Artists)
			out.Tracks = append(out.Tracks, types.TrackDescriptor{
				Display:     header,
				GroupHeader: true,
			})

			items, err := c.albumTracks(ctx, token, album.ID)
			if nil != err {
				c.logger.Warn().Err(err).Str("album_id", album.ID).Msg("Failed to fetch album tracks")
				continue
			}
			out.Tracks = append(out.Tracks, items...)
		}
		if len(resp.Albums.Items) > 0 {
			out.CoverURL = firstImageURL(resp.Albums.Items[0].Images)
		}
	}

	return out, nil
}

func (c *Client) artistTopTracks(ctx context.Context, token, artistID string) ([]types.TrackDescriptor, error) {
	var resp struct {
		Tracks []searchTrack `json:"tracks"`
	}
	topURL := c.BaseURL + "/artists/" + artistID + "/top-tracks?market=US"
	if err := c.getJSON(ctx, c.timeouts.SearchCatalog.Duration, topURL, token, &resp); nil != err {
		return nil, fmt.Errorf("get artist top tracks: %w", err)
	}

	return lo.Map(resp.Tracks, func(t searchTrack, _ int) types.TrackDescriptor {
		return types.TrackDescriptor{
			Display:     displayName(t.Name, t.Artists),
			GroupHeader: false,
		}
	}), nil
}

func (c *Client) albumTracks(ctx context.Context, token, albumID string) ([]types.TrackDescriptor, error) {
	var resp albumTracks
	if err := c.getJSON(ctx, c.timeouts.SearchCatalog.Duration, c.BaseURL+"/albums/"+albumID+"/tracks", token, &resp); nil != err {
		return nil, fmt.Errorf("get album tracks: %w", err)
	}

	return lo.Map(resp.Items, func(t albumTrack, _ int) types.TrackDescriptor {
		return types.TrackDescriptor{
			Display:     "  • " + displayName(t.Name, t.Artists),
			GroupHeader: false,
		}
	}), nil
}

// withAuthRetry runs f with a bearer token. A token rejection forces exactly
// one refresh through the token source and one retry of f; a second
// rejection surfaces as ErrUnauthorized.
func (c *Client) withAuthRetry(ctx context.Context, f func(ctx context.Context, token string) error) error {
	force := false
	err := retry.Do(
		ctx,
		retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond)),
		func(ctx context.Context) error {
			token, err := c.tokens.Token(ctx, force)
			if nil != err {
				return fmt.Errorf("obtain access token: %w", err)
			}

			if err := f(ctx, token); nil != err {
				if errors.Is(err, errTokenRejected) {
					c.logger.Debug().Msg("Access token rejected, forcing refresh")
					force = true

					return retry.RetryableError(err)
				}

				return err
			}

			return nil
		},
	)
	if nil != err {
		if errors.Is(err, errTokenRejected) {
			return ErrUnauthorized
		}

		return err
	}

	return nil
}

func (c *Client) getJSON(ctx context.Context, timeout time.Duration, reqURL, token string, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if nil != err {
		return fmt.Errorf("create request: %v", err)
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if nil != err {
		return fmt.Errorf("issue request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close response body: %v", closeErr))
		}
	}()

	switch code := resp.StatusCode; code {
	case http.StatusOK:
		respBytes, err := httputil.ReadResponseBody(resp)
		if nil != err {
			return fmt.Errorf("read response body: %w", err)
		}

		if err := json.Unmarshal(respBytes, out); nil != err {
			return fmt.Errorf("decode response body: %v", err)
		}

		return nil
	case http.StatusUnauthorized:
		if respBytes, readErr := httputil.ReadResponseBody(resp); nil == readErr {
			if expired, checkErr := httputil.IsTokenExpiredResponse(respBytes); nil == checkErr && expired {
				c.logger.Debug().Msg("Access token expired upstream")
			}
		}

		return errTokenRejected
	default:
		respBytes, err := httputil.ReadResponseBody(resp)
		if nil != err {
			return fmt.Errorf("read %d response body: %w", code, err)
		}

		return fmt.Errorf("unexpected response status %d: %s", code, string(respBytes))
	}
}

func displayName(track string, artists []artist) string {
	names := lo.Map(artists, func(a artist, _ int) string { return a.Name })

	return track + " - " + strings.Join(names, ", ")
}

func firstImageURL(images []image) string {
	if len(images) == 0 {
		return ""
	}

	return images[0].URL
}
