package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

func ReadResponseBody(resp *http.Response) ([]byte, error) {
	respBody, err := io.ReadAll(resp.Body)
	if nil != err {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("unexpected empty response body")
		}

		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	return respBody, nil
}

// IsTokenExpiredResponse reports whether a Spotify Web API error body is the
// expired-access-token rejection that warrants a forced token refresh.
func IsTokenExpiredResponse(b []byte) (bool, error) {
	var body struct {
		Error struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(b, &body); nil != err {
		return false, fmt.Errorf("failed to decode 401 status code response body: %v", err)
	}

	return body.Error.Status == http.StatusUnauthorized, nil
}
