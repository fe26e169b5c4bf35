package types

// TrackDescriptor is one row of a listed collection. Display is the
// "Title - Artist1, Artist2" string used as the sole key for downstream
// matching. GroupHeader marks section label rows (album headers interleaved
// among search results) that must never be transferred.
type TrackDescriptor struct {
	Display     string
	GroupHeader bool
}

// Collection is a normalized album, playlist, or search result listing.
// CoverURL is empty when the upstream carries no image.
type Collection struct {
	Title    string
	CoverURL string
	Tracks   []TrackDescriptor
}

type SearchKind int

func (k SearchKind) String() string {
	switch k {
	case SearchKindTracks:
		return "tracks"
	case SearchKindArtists:
		return "artists"
	case SearchKindAlbums:
		return "albums"
	}

	return "unknown"
}

const (
	SearchKindTracks SearchKind = iota
	SearchKindArtists
	SearchKindAlbums
)
