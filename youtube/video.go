package youtube

import "errors"

// ErrNoMatch means the search completed but yielded nothing. Callers must
// treat it differently from a failed call.
var ErrNoMatch = errors.New("no video matched the query")

// Video is the best-guess source for a track descriptor. Ephemeral: produced
// per track during a transfer and never retained.
type Video struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}
