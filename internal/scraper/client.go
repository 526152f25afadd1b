package scraper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/creator-scout/internal/logging"
	"github.com/suPer8Hu/creator-scout/internal/metrics"
	"github.com/suPer8Hu/creator-scout/internal/payload"
	"github.com/suPer8Hu/creator-scout/internal/upstream"
)

const providerName = "scraper"

type Config struct {
	BaseURL string
	APIKey  string
	// platform -> dataset id
	Datasets     map[string]string
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Client speaks the trigger / poll snapshot / download protocol.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zerolog.Logger
	now  func() time.Time
}

func New(cfg Config, log *zerolog.Logger) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 25 * time.Minute
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 60 * time.Second},
		log:  logging.OrNop(log),
		now:  time.Now,
	}
}

type triggerResp struct {
	SnapshotID string `json:"snapshot_id"`
}

type progressResp struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Fetch triggers a collection for urls, waits for the snapshot and returns its records.
// Records the provider marks as errors are dropped.
func (c *Client) Fetch(ctx context.Context, platform string, urls []string) ([]payload.Value, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	start := c.now()
	id, err := c.Trigger(ctx, platform, urls)
	if err != nil {
		return nil, err
	}
	if err := c.Wait(ctx, id); err != nil {
		return nil, err
	}
	records, err := c.Download(ctx, id)
	if err != nil {
		return nil, err
	}

	out := records[:0]
	for _, r := range records {
		if isErrorRecord(r) {
			continue
		}
		out = append(out, r)
	}
	c.log.Info().
		Str("platform", platform).
		Str("snapshot_id", id).
		Int("urls", len(urls)).
		Int("records", len(out)).
		Dur("cost", c.now().Sub(start)).
		Msg("scraper fetch done")
	return out, nil
}

func (c *Client) Trigger(ctx context.Context, platform string, urls []string) (string, error) {
	dataset := c.cfg.Datasets[strings.ToLower(platform)]
	if dataset == "" {
		return "", fmt.Errorf("%w: %s", ErrNoDataset, platform)
	}

	inputs := make([]map[string]string, 0, len(urls))
	for _, u := range urls {
		inputs = append(inputs, map[string]string{"url": u})
	}
	body, err := json.Marshal(inputs)
	if err != nil {
		return "", upstream.RequestSetup(providerName, "trigger", err)
	}

	q := url.Values{}
	q.Set("dataset_id", dataset)
	q.Set("include_errors", "true")
	raw, err := c.do(ctx, "trigger", http.MethodPost, "/trigger?"+q.Encode(), body)
	if err != nil {
		return "", err
	}

	var tr triggerResp
	if err := json.Unmarshal(raw, &tr); err != nil || tr.SnapshotID == "" {
		return "", fmt.Errorf("scraper trigger: missing snapshot id in response")
	}
	return tr.SnapshotID, nil
}

// Wait polls the snapshot until it is ready. It never waits longer than MaxWait.
func (c *Client) Wait(ctx context.Context, snapshotID string) error {
	wctx, cancel := context.WithTimeout(ctx, c.cfg.MaxWait)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		raw, err := c.do(wctx, "progress", http.MethodGet, "/progress/"+url.PathEscape(snapshotID), nil)
		if err != nil {
			if ctx.Err() == nil && wctx.Err() != nil {
				return c.timeout(snapshotID)
			}
			return err
		}

		var pr progressResp
		if err := json.Unmarshal(raw, &pr); err != nil {
			return fmt.Errorf("scraper progress: decode: %w", err)
		}
		switch strings.ToLower(pr.Status) {
		case "ready":
			return nil
		case "failed":
			if pr.Message != "" {
				return fmt.Errorf("%w: %s", ErrSnapshotFailed, pr.Message)
			}
			return ErrSnapshotFailed
		}

		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return c.timeout(snapshotID)
		case <-ticker.C:
		}
	}
}

func (c *Client) timeout(snapshotID string) error {
	metrics.IncScraper("timeout")
	return fmt.Errorf("%w: snapshot %s not ready after %s", ErrSnapshotTimeout, snapshotID, c.cfg.MaxWait)
}

// Download returns the snapshot records. It accepts a JSON array or NDJSON.
func (c *Client) Download(ctx context.Context, snapshotID string) ([]payload.Value, error) {
	raw, err := c.do(ctx, "download", http.MethodGet, "/snapshot/"+url.PathEscape(snapshotID)+"?format=json", nil)
	if err != nil {
		return nil, err
	}
	return decodeRecords(raw)
}

func decodeRecords(raw []byte) ([]payload.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		v, err := payload.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("scraper download: decode: %w", err)
		}
		return v.Items(), nil
	}

	var out []payload.Value
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		v, err := payload.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("scraper download: decode line: %w", err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scraper download: %w", err)
	}
	return out, nil
}

func isErrorRecord(v payload.Value) bool {
	if !v.IsObject() {
		return true
	}
	if _, ok := payload.PickString(v, "error", "error_code"); !ok {
		return false
	}
	return payload.ExtractProfile(v).Account == ""
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, rd)
	if err != nil {
		metrics.IncScraper(string(KindRequestSetup))
		return nil, upstream.RequestSetup(providerName, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.IncScraper(string(KindNoResponse))
		return nil, upstream.NoResponse(providerName, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.IncScraper(string(KindHTTPStatus))
		return nil, upstream.HTTPStatus(providerName, op, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.IncScraper(string(KindNoResponse))
		return nil, upstream.NoResponse(providerName, op, err)
	}
	metrics.IncScraper("ok")
	return raw, nil
}

// IsUpstream reports whether err came from a classified upstream failure or the wait ceiling.
func IsUpstream(err error) bool {
	return KindOf(err) != "" || errors.Is(err, ErrSnapshotTimeout) || errors.Is(err, ErrSnapshotFailed)
}
