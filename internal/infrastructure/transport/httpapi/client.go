package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cacheview/internal/domain/cacheitem"
	"cacheview/internal/domain/snapshot"
	"cacheview/internal/errs"
)

// Client calls the cache API of a running server.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Get(ctx context.Context, key string) (ItemResponse, error) {
	var out ItemResponse
	err := c.do(ctx, http.MethodGet, "/cache/"+url.PathEscape(key), nil, &out)
	return out, err
}

// Put stores value under key. ttl is rounded up to whole seconds.
func (c *Client) Put(ctx context.Context, key string, value string, ttl time.Duration) (ItemResponse, error) {
	if ttl <= 0 {
		return ItemResponse{}, cacheitem.ErrInvalidTTL
	}
	body := PutRequest{
		Key:      key,
		Value:    value,
		Duration: int64(math.Ceil(ttl.Seconds())),
	}
	var out ItemResponse
	err := c.do(ctx, http.MethodPost, "/cache", body, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/cache/"+url.PathEscape(key), nil, nil)
}

func (c *Client) List(ctx context.Context) (snapshot.Snapshot, error) {
	var out snapshot.Snapshot
	if err := c.do(ctx, http.MethodGet, "/cache", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errs.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errs.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return cacheitem.ErrNotFound
	case resp.StatusCode >= 300:
		var apiErr errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(err, "decode response")
	}
	return nil
}
