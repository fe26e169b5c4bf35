package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bogem/id3v2"

	"github.com/stxfxno/listify/httputil"
)

type trackMeta struct {
	Title    string
	Artist   string
	Album    string
	CoverURL string
}

// embedTags writes ID3v2 frames into the rendered MP3. The artist falls back
// to the part of the title after the " - " separator when not given
// explicitly.
func (s *Server) embedTags(ctx context.Context, path string, meta trackMeta) (err error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true}) //nolint:exhaustruct
	if nil != err {
		return fmt.Errorf("open mp3 for tagging: %v", err)
	}
	defer func() {
		if closeErr := tag.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close mp3 tag: %v", closeErr))
		}
	}()

	title := meta.Title
	artist := meta.Artist
	if artist == "" {
		if t, a, ok := strings.Cut(meta.Title, " - "); ok {
			title, artist = t, a
		}
	}

	tag.SetVersion(3)
	tag.SetTitle(title)
	tag.SetArtist(artist)
	if meta.Album != "" {
		tag.SetAlbum(meta.Album)
	}

	if meta.CoverURL != "" {
		cover, err := s.fetchCover(ctx, meta.CoverURL)
		if nil != err {
			s.logger.Warn().Err(err).Str("cover_url", meta.CoverURL).Msg("Failed to fetch cover art")
		} else {
			tag.AddAttachedPicture(id3v2.PictureFrame{ //nolint:exhaustruct
				Encoding:    id3v2.EncodingUTF8,
				MimeType:    "image/jpeg",
				PictureType: id3v2.PTFrontCover,
				Picture:     cover,
			})
		}
	}

	if err := tag.Save(); nil != err {
		return fmt.Errorf("save mp3 tag: %v", err)
	}

	return nil
}

func (s *Server) fetchCover(ctx context.Context, coverURL string) (cover []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.FetchCover.Duration)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if nil != err {
		return nil, fmt.Errorf("create cover request: %v", err)
	}

	resp, err := s.http.Do(req)
	if nil != err {
		return nil, fmt.Errorf("issue cover request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close response body: %v", closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected cover response status: %d", resp.StatusCode)
	}

	cover, err = httputil.ReadResponseBody(resp)
	if nil != err {
		return nil, fmt.Errorf("read cover response body: %w", err)
	}

	return cover, nil
}
