package types

type LinkKind int

func (k LinkKind) String() string {
	switch k {
	case LinkKindAlbum:
		return "album"
	case LinkKindPlaylist:
		return "playlist"
	}

	return "unknown"
}

const (
	LinkKindAlbum LinkKind = iota
	LinkKindPlaylist
)

// Link is a parsed catalog collection reference: the collection kind and its
// opaque catalog ID.
type Link struct {
	Kind LinkKind
	ID   string
}
