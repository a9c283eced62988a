// Package cloud mirrors the local store to a remote row store partitioned
// by device identity. The remote is never authoritative: backup is a
// full replace of the device's partition, restore only reads.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// Client is a thin PostgREST + object-storage HTTP client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// selectRows runs GET /rest/v1/{table}?{query} and decodes the JSON array.
func (c *Client) selectRows(ctx context.Context, table, query string, out any) error {
	url := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, table, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)

	body, _, err := c.do(req, table)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s rows: %w", table, err)
	}
	return nil
}

// countRows asks PostgREST for an exact count without fetching rows.
func (c *Client) countRows(ctx context.Context, table, query string) (int, error) {
	url := fmt.Sprintf("%s/rest/v1/%s?select=*&%s", c.baseURL, table, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	c.setAuth(req)
	req.Header.Set("Prefer", "count=exact")

	_, resp, err := c.do(req, table)
	if err != nil {
		return 0, err
	}

	// Content-Range is "0-24/42" or "*/0"; the count follows the slash.
	contentRange := resp.Header.Get("Content-Range")
	idx := strings.LastIndex(contentRange, "/")
	if idx == -1 {
		return 0, fmt.Errorf("count %s: missing Content-Range", table)
	}
	count, err := strconv.Atoi(contentRange[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("count %s: bad Content-Range %q", table, contentRange)
	}
	return count, nil
}

// insert POSTs rows into a table.
func (c *Client) insert(ctx context.Context, table string, rows any) error {
	return c.post(ctx, table, "", rows, "return=minimal")
}

// upsert POSTs a row with merge-duplicates resolution so an existing row
// keyed by onConflict is updated instead of failing on the unique
// constraint.
func (c *Client) upsert(ctx context.Context, table, onConflict string, row any) error {
	query := ""
	if onConflict != "" {
		query = "on_conflict=" + onConflict
	}
	return c.post(ctx, table, query, row, "resolution=merge-duplicates,return=minimal")
}

func (c *Client) post(ctx context.Context, table, query string, payload any, prefer string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", table, err)
	}

	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if query != "" {
		url += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)

	_, _, err = c.do(req, table)
	return err
}

// deleteRows runs DELETE /rest/v1/{table}?{query}.
func (c *Client) deleteRows(ctx context.Context, table, query string) error {
	url := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, table, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)

	_, _, err = c.do(req, table)
	return err
}

// uploadObject stores bytes under {bucket}/{key} in object storage.
func (c *Client) uploadObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	_, _, err = c.do(req, bucket+"/"+key)
	return err
}

func (c *Client) deleteObject(ctx context.Context, bucket, key string) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)

	_, _, err = c.do(req, bucket+"/"+key)
	return err
}

// PublicObjectURL returns the public retrieval URL for an uploaded object.
func (c *Client) PublicObjectURL(bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, bucket, key)
}

func (c *Client) do(req *http.Request, target string) ([]byte, *http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("Remote request failed",
			"method", req.Method, "target", target, "error", err)
		return nil, nil, fmt.Errorf("%s %s: %w", req.Method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp, fmt.Errorf("read %s response: %w", target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("Remote request returned non-2xx",
			"method", req.Method, "target", target, "status", resp.StatusCode, "body", string(body))
		return nil, resp, fmt.Errorf("%s %s returned %d: %s", req.Method, target, resp.StatusCode, string(body))
	}

	slog.Debug("Remote request OK", "method", req.Method, "target", target, "status", resp.StatusCode)
	return body, resp, nil
}
