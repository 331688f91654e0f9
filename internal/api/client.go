// Package api talks to the upload backend: slot allocation, completion
// reports, state pulls, and the raw PUTs against presigned object storage URLs.
package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"

	"upqueue/internal/models"
)

const (
	GetUploadURLsPath       = "/api/user/getuploadurls"
	CompleteFilesUploadPath = "/api/user/completefilesupload"
	GetStatePath            = "/api/user/getstate"
	PushPath                = "/api/auth/login2"

	userAgent = "upqueue/1.0"
)

type Options struct {
	BaseURL       string
	SessionCookie string
	SessionToken  string
	Timeout       time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	backend *req.Client
	storage *req.Client
	baseURL string
	cookies []*http.Cookie
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")

	var cookies []*http.Cookie
	if opts.SessionToken != "" {
		name := opts.SessionCookie
		if name == "" {
			name = "jwt"
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: opts.SessionToken})
	}

	backend := req.C().
		SetBaseURL(baseURL).
		SetUserAgent(userAgent).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal).
		SetCommonCookies(cookies...)

	// presigned URLs carry their own authorization, no session cookies here
	storage := req.C().
		SetUserAgent(userAgent)

	if opts.Timeout > 0 {
		backend.SetTimeout(opts.Timeout)
		storage.SetTimeout(opts.Timeout)
	}

	return &Client{
		backend: backend,
		storage: storage,
		baseURL: baseURL,
		cookies: cookies,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetUploadURLs asks the backend for count presigned upload destinations.
func (c *Client) GetUploadURLs(ctx context.Context, count int) ([]models.SlotLink, error) {
	resp, err := c.backend.R().
		SetContext(ctx).
		SetQueryParam("count", strconv.Itoa(count)).
		Get(GetUploadURLsPath)

	if err := checkResponse(resp, err, "get upload urls"); err != nil {
		return nil, err
	}

	var links []models.SlotLink
	if err := decode(resp.Bytes(), &links); err != nil {
		return nil, &TransportError{Op: "get upload urls", StatusCode: resp.StatusCode, Status: resp.Status, Err: err}
	}
	return links, nil
}

// CompleteFilesUpload submits the manifest of uploaded objects.
func (c *Client) CompleteFilesUpload(ctx context.Context, entries []models.ManifestEntry) error {
	resp, err := c.backend.R().
		SetContext(ctx).
		SetBodyJsonMarshal(entries).
		Post(CompleteFilesUploadPath)

	return checkResponse(resp, err, "complete files upload")
}

// GetState pulls the current processing state. A null or empty body yields a
// nil slice.
func (c *Client) GetState(ctx context.Context) ([]models.StateItem, error) {
	resp, err := c.backend.R().
		SetContext(ctx).
		Get(GetStatePath)

	if err := checkResponse(resp, err, "get state"); err != nil {
		return nil, err
	}

	var items []models.StateItem
	if err := decode(resp.Bytes(), &items); err != nil {
		return nil, &TransportError{Op: "get state", StatusCode: resp.StatusCode, Status: resp.Status, Err: err}
	}
	return items, nil
}

// PutObject uploads body to a presigned URL. Any 2xx is success and the
// response body is ignored.
func (c *Client) PutObject(ctx context.Context, url, contentType string, body []byte) error {
	resp, err := c.storage.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBodyBytes(body).
		Put(url)

	return checkResponse(resp, err, "put object")
}

// PushURL is the websocket address of the push channel.
func (c *Client) PushURL() (string, error) {
	u, err := url.JoinPath(c.baseURL, PushPath)
	if err != nil {
		return "", fmt.Errorf("api: push url: %w", err)
	}
	return toWebsocketURL(u), nil
}

// SessionHeader carries the session cookie for connections made outside req.
func (c *Client) SessionHeader() http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	for _, cookie := range c.cookies {
		h.Add("Cookie", cookie.String())
	}
	return h
}

func decode(body []byte, v any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

func toWebsocketURL(u string) string {
	if strings.HasPrefix(u, "https://") {
		return "wss://" + u[8:]
	} else if strings.HasPrefix(u, "http://") {
		return "ws://" + u[7:]
	}
	return u
}
