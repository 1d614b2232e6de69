package ai_client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://localhost:8443"

	// Placeholders returned when a response lacks the expected field.
	EnhanceFailed  = "Enhancement failed"
	UnknownEmotion = "unknown"
	HealthFailed   = "Connection failed"

	userAgent = "modern-reader-linux/1.0"
)

var (
	// ErrTransport wraps failures to reach the service or read its reply.
	ErrTransport = errors.New("transport failure")
	// ErrDecode wraps replies whose body is not valid JSON.
	ErrDecode = errors.New("invalid JSON response")
)

// EmotionResult は感情分析の結果です。
type EmotionResult struct {
	Emotion    string
	Confidence float64
}

type enhanceRequest struct {
	Text                string `json:"text"`
	Style               Style  `json:"style"`
	UseExternalProvider bool   `json:"use_google"`
}

type emotionRequest struct {
	Text string `json:"text"`
}

// Options configures a ReaderClient.
type Options struct {
	BaseURL string
	// APIKey is sent as X-API-Key when set.
	APIKey string
	// HTTPClient defaults to a zero http.Client.
	HTTPClient *http.Client
}

// ReaderClient は Modern Reader サービスとの通信を担当します。
// It is safe for concurrent use; the session token is the only shared state.
type ReaderClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	mu    sync.RWMutex // protects token
	token *string
}

// NewReaderClient は新しいReaderClientのインスタンスを作成します。
func NewReaderClient(opts Options) *ReaderClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ReaderClient{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
	}
}

// NewHTTPClient returns an http.Client that trusts the PEM certificates in
// caFile in addition to the system roots. An empty caFile yields a client
// with default settings.
func NewHTTPClient(caFile string) (*http.Client, error) {
	if caFile == "" {
		return &http.Client{}, nil
	}

	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	return &http.Client{Transport: transport}, nil
}

// BaseURL returns the service root the client talks to.
func (c *ReaderClient) BaseURL() string { return c.baseURL }

// HasSession reports whether a login has stored a session token.
func (c *ReaderClient) HasSession() bool {
	_, ok := c.sessionToken()
	return ok
}

func (c *ReaderClient) sessionToken() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return "", false
	}
	return *c.token, true
}

func (c *ReaderClient) setSessionToken(token string) {
	c.mu.Lock()
	c.token = &token
	c.mu.Unlock()
}

// Login authenticates with an email (identifier contains "@") or a username.
// A rejected login returns false with a nil error; only transport and decode
// failures are errors. On success the token is kept for every later request.
func (c *ReaderClient) Login(ctx context.Context, identifier, password string) (bool, error) {
	payload := map[string]string{"password": password}
	if strings.Contains(identifier, "@") {
		payload["email"] = identifier
	} else {
		payload["username"] = identifier
	}

	doc, err := c.request(ctx, "/auth/login", payload)
	if err != nil {
		return false, fmt.Errorf("login: %w", err)
	}

	if success, ok := boolField(doc, "success"); !ok || !success {
		slog.Info("[ReaderClient] Login rejected")
		return false, nil
	}
	token := doc.Get("token")
	if token.Type != gjson.String {
		slog.Warn("[ReaderClient] Login succeeded without a token")
		return false, nil
	}

	c.setSessionToken(token.Str)
	slog.Info("[ReaderClient] Login succeeded")
	return true, nil
}

// EnhanceText rewrites text in the given style. It returns EnhanceFailed when
// the reply carries no enhanced_text string.
func (c *ReaderClient) EnhanceText(ctx context.Context, text string, style Style) (string, error) {
	if style == "" {
		style = DefaultStyle
	}
	doc, err := c.request(ctx, "/ai/enhance_text", enhanceRequest{
		Text:                text,
		Style:               style,
		UseExternalProvider: false,
	})
	if err != nil {
		return "", fmt.Errorf("enhance text: %w", err)
	}
	return stringField(doc, "enhanced_text", EnhanceFailed), nil
}

// AnalyzeEmotion returns the dominant emotion and its confidence, defaulting
// each field independently to UnknownEmotion and 0.
func (c *ReaderClient) AnalyzeEmotion(ctx context.Context, text string) (EmotionResult, error) {
	doc, err := c.request(ctx, "/ai/analyze_emotion", emotionRequest{Text: text})
	if err != nil {
		return EmotionResult{}, fmt.Errorf("analyze emotion: %w", err)
	}
	return EmotionResult{
		Emotion:    stringField(doc, "emotion_analysis.emotion", UnknownEmotion),
		Confidence: clamp01(floatField(doc, "emotion_analysis.confidence", 0)),
	}, nil
}

// HealthCheck returns the service status. When the service cannot be reached
// or answers with something other than JSON, it returns HealthFailed along
// with the error.
func (c *ReaderClient) HealthCheck(ctx context.Context) (string, error) {
	doc, err := c.request(ctx, "/health", nil)
	if err != nil {
		return HealthFailed, fmt.Errorf("health check: %w", err)
	}
	return stringField(doc, "status", HealthFailed), nil
}

// request POSTs payload (omitted when nil) to endpoint and parses the reply
// as JSON. HTTP status codes are not interpreted.
func (c *ReaderClient) request(ctx context.Context, endpoint string, payload any) (gjson.Result, error) {
	url := c.baseURL + endpoint

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("marshal %s payload: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build request %s: %w", endpoint, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if token, ok := c.sessionToken(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("[ReaderClient] Request failed",
			slog.String("endpoint", endpoint),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return gjson.Result{}, fmt.Errorf("%w: POST %s: %w", ErrTransport, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: read %s response: %w", ErrTransport, endpoint, err)
	}

	slog.Debug("[ReaderClient] Request completed",
		slog.String("endpoint", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	doc, err := parseDocument(respBody)
	if err != nil {
		slog.Warn("[ReaderClient] Response is not JSON",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
			slog.Int("raw_response_length", len(respBody)))
		return gjson.Result{}, fmt.Errorf("%s: %w", endpoint, err)
	}
	return doc, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
