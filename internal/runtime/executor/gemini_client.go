package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/config"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/misc"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/translator/gemini/helpers"
	log "github.com/sirupsen/logrus"
)

const (
	geminiUserAgent   = "gemini-anywhere/1.0"
	geminiAPIKeyParam = "key"
)

type geminiClient struct {
	cfg        *config.Config
	httpClient *http.Client
	baseURL    string
}

func newGeminiClient(cfg *config.Config) *geminiClient {
	return &geminiClient{
		cfg:        cfg,
		httpClient: newTimeoutHTTPClient(cfg),
		baseURL:    cfg.Gemini.BaseURL,
	}
}

// newTimeoutHTTPClient maps the connect/read/write budget onto the transport:
// connect bounds the dial and TLS handshake, read bounds the wait for response
// headers, and the overall client timeout is the sum of the three.
func newTimeoutHTTPClient(cfg *config.Config) *http.Client {
	g := cfg.Gemini
	dialer := &net.Dialer{Timeout: g.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   g.ConnectTimeout,
		ResponseHeaderTimeout: g.ReadTimeout,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   g.ConnectTimeout + g.ReadTimeout + g.WriteTimeout,
	}
}

func (c *geminiClient) doRequest(ctx context.Context, apiKey, model string, body []byte) ([]byte, int, error) {
	endpoint, err := c.buildEndpoint(model, apiKey)
	if err != nil {
		return nil, 0, err
	}
	c.debugDumpPayload("gemini request", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	c.applyHeaders(req)

	log.WithFields(log.Fields{
		"url":   misc.MaskQueryParam(endpoint, geminiAPIKeyParam),
		"bytes": len(body),
	}).Debug("gemini client: sending request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("gemini client: close body error: %v", errClose)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	c.debugDumpPayload("gemini response", data)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, geminiStatusError{code: resp.StatusCode, body: data}
	}
	return data, resp.StatusCode, nil
}

func (c *geminiClient) buildEndpoint(model, apiKey string) (string, error) {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		return "", fmt.Errorf("gemini client: model is required")
	}
	base := strings.TrimRight(c.baseURL, "/")
	if base == "" {
		base = config.DefaultBaseURL
	}
	u, err := url.Parse(base + "/models/" + url.PathEscape(model) + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("gemini client: invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set(geminiAPIKeyParam, apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *geminiClient) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", geminiUserAgent)
}

func (c *geminiClient) debugDumpPayload(label string, payload []byte) {
	if c.cfg == nil || !c.cfg.Debug || len(payload) == 0 {
		return
	}
	render, truncated := payloadForLog(payload, debugDumpLimit)
	if render == "" {
		render = "[binary payload omitted]"
	}
	log.WithFields(log.Fields{
		"provider":  "gemini",
		"bytes":     len(payload),
		"truncated": truncated,
	}).Debugf("%s payload: %s", label, render)
}

const debugDumpLimit = 4096

// payloadForLog renders at most limit bytes of payload as printable text.
// A rune split by the limit is dropped.
func payloadForLog(payload []byte, limit int) (string, bool) {
	dump := bytes.TrimSpace(payload)
	truncated := len(dump) > limit
	if truncated {
		dump = dump[:limit]
	}
	text := strings.ToValidUTF8(string(dump), "")
	return strings.TrimSpace(helpers.StripControl(text)), truncated
}
