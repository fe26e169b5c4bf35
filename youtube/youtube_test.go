package youtube_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stxfxno/listify/youtube"
)

type fakeSearcher struct {
	queries []string
	results map[string][]youtube.Video
	err     error
}

func (s *fakeSearcher) Search(_ context.Context, query string) ([]youtube.Video, error) {
	s.queries = append(s.queries, query)
	if nil != s.err {
		return nil, s.err
	}

	return s.results[query], nil
}

func video(id, title string) youtube.Video {
	return youtube.Video{
		ID:        id,
		Title:     title,
		URL:       "https://www.youtube.com/watch?v=" + id,
		Thumbnail: "",
	}
}

func TestResolveExactMatch(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{
		results: map[string][]youtube.Video{
			"Song Title - Artist Name": {video("v1", "Song Title (Official Video)")},
		},
	}

	v, err := youtube.Resolve(t.Context(), s, "Song Title - Artist Name")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.ID)
	assert.Equal(t, []string{"Song Title - Artist Name"}, s.queries)
}

func TestResolveBroadensToJoinedForm(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{
		results: map[string][]youtube.Video{
			"Song Title Artist Name": {video("v2", "Song Title")},
		},
	}

	v, err := youtube.Resolve(t.Context(), s, "Song Title - Artist Name")
	require.NoError(t, err)
	assert.Equal(t, "v2", v.ID)
	assert.Equal(t, []string{"Song Title - Artist Name", "Song Title Artist Name"}, s.queries)
}

func TestResolveBroadensToTitleAlone(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{
		results: map[string][]youtube.Video{
			"Song Title": {video("v3", "Song Title")},
		},
	}

	v, err := youtube.Resolve(t.Context(), s, "Song Title - Artist Name")
	require.NoError(t, err)
	assert.Equal(t, "v3", v.ID)
	assert.Equal(
		t,
		[]string{"Song Title - Artist Name", "Song Title Artist Name", "Song Title"},
		s.queries,
	)
}

func TestResolveNoMatchAfterAllForms(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{}

	_, err := youtube.Resolve(t.Context(), s, "Song Title - Artist Name")
	require.ErrorIs(t, err, youtube.ErrNoMatch)
	assert.Len(t, s.queries, 3)
}

func TestResolveWithoutSeparatorDoesNotBroaden(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{}

	_, err := youtube.Resolve(t.Context(), s, "just a query")
	require.ErrorIs(t, err, youtube.ErrNoMatch)
	assert.Equal(t, []string{"just a query"}, s.queries)
}

func TestResolvePropagatesSearchFailures(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{err: errors.New("network down")}

	_, err := youtube.Resolve(t.Context(), s, "Song Title - Artist Name")
	require.Error(t, err)
	assert.NotErrorIs(t, err, youtube.ErrNoMatch)
	assert.Len(t, s.queries, 1)
}
