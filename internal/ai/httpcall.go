package ai

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/suPer8Hu/creator-scout/internal/upstream"
)

// ClassifyHTTP maps the outcome of an HTTP round trip to an upstream error.
// req is nil when the request could not be built.
func ClassifyHTTP(provider string, req *http.Request, resp *http.Response, err error) error {
	switch {
	case req == nil:
		return upstream.RequestSetup(provider, "chat", err)
	case err != nil:
		return upstream.NoResponse(provider, "chat", err)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return upstream.HTTPStatus(provider, "chat", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, provider, url string, body []byte, headers map[string]string) ([]byte, error) {
	if client == nil {
		return nil, upstream.RequestSetup(provider, "chat", errors.New("http client is nil"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, ClassifyHTTP(provider, nil, nil, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if cerr := ClassifyHTTP(provider, req, resp, err); cerr != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, cerr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upstream.NoResponse(provider, "chat", err)
	}
	return raw, nil
}
