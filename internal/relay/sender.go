package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/julianstephens/mimamori/internal/constants"
)

// Sender delivers one message to the push API on behalf of token.
type Sender interface {
	Send(ctx context.Context, token, message string) error
}

// HTTPSender posts form-encoded messages to a LINE Notify compatible endpoint.
type HTTPSender struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPSender(endpoint string) *HTTPSender {
	if endpoint == "" {
		endpoint = constants.DefaultRelayEndpoint
	}
	return &HTTPSender{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: constants.RelayRequestTimeout},
	}
}

func (s *HTTPSender) Send(ctx context.Context, token, message string) error {
	form := url.Values{"message": {message}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return fmt.Errorf("relay returned status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
}
