package wiki

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPRenderer renders diagram source through a Kroki-compatible rendering
// service: POST {endpoint}/{language}/{format} with the source as the body.
type HTTPRenderer struct {
	Endpoint string
	HTTP     *http.Client
}

// NewHTTPRenderer builds a renderer client for the given service endpoint.
func NewHTTPRenderer(endpoint string) *HTTPRenderer {
	return &HTTPRenderer{
		Endpoint: strings.TrimRight(endpoint, "/"),
		HTTP:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (r *HTTPRenderer) Render(ctx context.Context, source, language, format string) ([]byte, error) {
	target := fmt.Sprintf("%s/%s/%s", r.Endpoint, url.PathEscape(language), url.PathEscape(format))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(source))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("render %s as %s: status %d: %s", language, format, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return io.ReadAll(resp.Body)
}
