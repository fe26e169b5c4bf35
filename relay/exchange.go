package relay

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/stxfxno/listify/httputil"
)

var errExchangeRejected = errors.New("credential exchange rejected")

// exchangeToken swaps a client-credential pair for a bearer token at the
// upstream accounts endpoint.
func (s *Server) exchangeToken(ctx context.Context, clientID, clientSecret string) (token string, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.TokenExchange.Duration)
	defer cancel()

	reqParams := make(url.Values, 1)
	reqParams.Add("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.ExchangeURL,
		strings.NewReader(reqParams.Encode()),
	)
	if nil != err {
		return "", fmt.Errorf("create token exchange request: %v", err)
	}

	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add("Accept", "application/json")
	req.Header.Add(
		"Authorization",
		"Basic "+base64.StdEncoding.Strict().EncodeToString([]byte(clientID+":"+clientSecret)),
	)

	resp, err := s.http.Do(req)
	if nil != err {
		return "", fmt.Errorf("issue token exchange request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close response body: %v", closeErr))
		}
	}()

	respBytes, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return "", fmt.Errorf("read token exchange response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.
			Error().
			Int("status_code", resp.StatusCode).
			Bytes("response_body", respBytes).
			Msg("Token exchange rejected")

		return "", errExchangeRejected
	}

	var respBody struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		return "", fmt.Errorf("decode token exchange response body: %v", err)
	}

	if respBody.AccessToken == "" {
		return "", errors.New("token exchange response carried no access token")
	}

	return respBody.AccessToken, nil
}
