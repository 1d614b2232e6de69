package ai_client

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// recorded is one request seen by the fake service.
type recorded struct {
	Path          string
	Authorization string
	APIKey        string
	ContentType   string
	Body          map[string]any
	RawBody       []byte
}

type fakeService struct {
	mu       sync.Mutex
	requests []recorded
	replies  map[string]string
	status   int
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := recorded{
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		APIKey:        r.Header.Get("X-API-Key"),
		ContentType:   r.Header.Get("Content-Type"),
		RawBody:       raw,
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	reply, ok := f.replies[r.URL.Path]
	status := f.status
	f.mu.Unlock()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ok {
		reply = `{"detail":"Not Found"}`
		status = http.StatusNotFound
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

func (f *fakeService) reply(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[path] = body
}

func (f *fakeService) seen() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recorded, len(f.requests))
	copy(out, f.requests)
	return out
}

func newFakeService(t *testing.T, replies map[string]string) (*fakeService, *ReaderClient) {
	t.Helper()
	if replies == nil {
		replies = map[string]string{}
	}
	svc := &fakeService{replies: replies}
	server := httptest.NewServer(svc)
	t.Cleanup(server.Close)
	return svc, NewReaderClient(Options{BaseURL: server.URL})
}

func TestNewReaderClient_Defaults(t *testing.T) {
	c := NewReaderClient(Options{})
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.False(t, c.HasSession())

	c = NewReaderClient(Options{BaseURL: "http://reader.test:8010/"})
	assert.Equal(t, "http://reader.test:8010", c.BaseURL())
}

func TestLogin_PayloadKey(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		wantKey    string
		absentKey  string
	}{
		{"email", "reader@example.com", "email", "username"},
		{"username", "reader", "username", "email"},
		{"at sign anywhere", "odd@name", "email", "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, c := newFakeService(t, map[string]string{
				"/auth/login": `{"success":false}`,
			})

			_, err := c.Login(context.Background(), tt.identifier, "s3cret")
			require.NoError(t, err)

			reqs := svc.seen()
			require.Len(t, reqs, 1)
			assert.Equal(t, "/auth/login", reqs[0].Path)
			assert.Equal(t, "application/json", reqs[0].ContentType)
			assert.Equal(t, tt.identifier, reqs[0].Body[tt.wantKey])
			assert.Equal(t, "s3cret", reqs[0].Body["password"])
			assert.NotContains(t, reqs[0].Body, tt.absentKey)
		})
	}
}

func TestLogin_TokenAttachedToLaterRequests(t *testing.T) {
	svc, c := newFakeService(t, map[string]string{
		"/auth/login":         `{"success":true,"token":"T"}`,
		"/ai/enhance_text":    `{"enhanced_text":"better"}`,
		"/ai/analyze_emotion": `{"emotion_analysis":{"emotion":"joy","confidence":0.9}}`,
		"/health":             `{"status":"healthy"}`,
	})
	ctx := context.Background()

	_, err := c.HealthCheck(ctx)
	require.NoError(t, err)

	ok, err := c.Login(ctx, "reader", "pw")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, c.HasSession())

	_, err = c.EnhanceText(ctx, "text", StyleDramatic)
	require.NoError(t, err)
	_, err = c.AnalyzeEmotion(ctx, "text")
	require.NoError(t, err)
	_, err = c.HealthCheck(ctx)
	require.NoError(t, err)

	reqs := svc.seen()
	require.Len(t, reqs, 5)
	assert.Empty(t, reqs[0].Authorization, "no token before login")
	assert.Empty(t, reqs[1].Authorization, "login itself carries no token")
	for _, r := range reqs[2:] {
		assert.Equal(t, "Bearer T", r.Authorization, "request to %s", r.Path)
	}
}

func TestLogin_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"success false", `{"success":false,"token":"T"}`},
		{"no token", `{"success":true}`},
		{"success not bool", `{"success":"true","token":"T"}`},
		{"token not string", `{"success":true,"token":42}`},
		{"error body", `{"detail":"Invalid credentials"}`},
		{"array", `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newFakeService(t, map[string]string{"/auth/login": tt.reply})

			ok, err := c.Login(context.Background(), "reader", "pw")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.False(t, c.HasSession())
		})
	}
}

func TestLogin_RejectedKeepsExistingToken(t *testing.T) {
	svc, c := newFakeService(t, map[string]string{
		"/auth/login": `{"success":true,"token":"first"}`,
		"/health":     `{"status":"ok"}`,
	})
	ctx := context.Background()

	ok, err := c.Login(ctx, "reader", "pw")
	require.NoError(t, err)
	require.True(t, ok)

	svc.reply("/auth/login", `{"success":false}`)
	ok, err = c.Login(ctx, "reader", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.HealthCheck(ctx)
	require.NoError(t, err)

	reqs := svc.seen()
	assert.Equal(t, "Bearer first", reqs[len(reqs)-1].Authorization)
}

func TestLogin_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	c := NewReaderClient(Options{BaseURL: server.URL})

	ok, err := c.Login(context.Background(), "reader", "pw")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrTransport)
	assert.False(t, c.HasSession())
}

func TestEnhanceText(t *testing.T) {
	svc, c := newFakeService(t, map[string]string{
		"/ai/enhance_text": `{"success":true,"enhanced_text":"The rain sang."}`,
	})

	got, err := c.EnhanceText(context.Background(), "It rained.", StylePoetic)
	require.NoError(t, err)
	assert.Equal(t, "The rain sang.", got)

	reqs := svc.seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, map[string]any{
		"text":       "It rained.",
		"style":      "poetic",
		"use_google": false,
	}, reqs[0].Body)
}

func TestEnhanceText_Placeholder(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"missing field", `{"success":true}`},
		{"wrong type", `{"enhanced_text":123}`},
		{"null", `{"enhanced_text":null}`},
		{"not an object", `"just a string"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newFakeService(t, map[string]string{"/ai/enhance_text": tt.reply})

			got, err := c.EnhanceText(context.Background(), "text", StyleCasual)
			require.NoError(t, err)
			assert.Equal(t, EnhanceFailed, got)
		})
	}
}

func TestEnhanceText_EmptyStyleUsesDefault(t *testing.T) {
	svc, c := newFakeService(t, map[string]string{
		"/ai/enhance_text": `{"enhanced_text":"ok"}`,
	})

	_, err := c.EnhanceText(context.Background(), "text", "")
	require.NoError(t, err)
	assert.Equal(t, "immersive", svc.seen()[0].Body["style"])
}

func TestEnhanceText_ErrorStatusWithJSONBody(t *testing.T) {
	svc, c := newFakeService(t, map[string]string{
		"/ai/enhance_text": `{"detail":"model unavailable"}`,
	})
	svc.status = http.StatusInternalServerError

	got, err := c.EnhanceText(context.Background(), "text", StyleTechnical)
	require.NoError(t, err)
	assert.Equal(t, EnhanceFailed, got)
}

func TestEnhanceText_DecodeError(t *testing.T) {
	_, c := newFakeService(t, map[string]string{
		"/ai/enhance_text": `<html>Bad Gateway</html>`,
	})

	_, err := c.EnhanceText(context.Background(), "text", StyleTechnical)
	assert.ErrorIs(t, err, ErrDecode)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestAnalyzeEmotion(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  EmotionResult
	}{
		{"full", `{"emotion_analysis":{"emotion":"joy","confidence":0.87}}`, EmotionResult{"joy", 0.87}},
		{"missing block", `{"success":true}`, EmotionResult{UnknownEmotion, 0}},
		{"block not object", `{"emotion_analysis":"joy"}`, EmotionResult{UnknownEmotion, 0}},
		{"emotion mistyped", `{"emotion_analysis":{"emotion":7,"confidence":0.5}}`, EmotionResult{UnknownEmotion, 0.5}},
		{"confidence mistyped", `{"emotion_analysis":{"emotion":"sad","confidence":"high"}}`, EmotionResult{"sad", 0}},
		{"confidence above range", `{"emotion_analysis":{"emotion":"anger","confidence":87}}`, EmotionResult{"anger", 1}},
		{"confidence below range", `{"emotion_analysis":{"emotion":"fear","confidence":-0.2}}`, EmotionResult{"fear", 0}},
		{"integer confidence", `{"emotion_analysis":{"emotion":"calm","confidence":1}}`, EmotionResult{"calm", 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, c := newFakeService(t, map[string]string{"/ai/analyze_emotion": tt.reply})

			got, err := c.AnalyzeEmotion(context.Background(), "How are you?")
			require.NoError(t, err)
			assert.Equal(t, tt.want.Emotion, got.Emotion)
			assert.InDelta(t, tt.want.Confidence, got.Confidence, 1e-9)

			assert.Equal(t, map[string]any{"text": "How are you?"}, svc.seen()[0].Body)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	svc, c := newFakeService(t, map[string]string{"/health": `{"status":"healthy","version":"2.1"}`})

	got, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", got)

	reqs := svc.seen()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].RawBody, "health check sends no body")
	assert.Empty(t, reqs[0].ContentType)
}

func TestHealthCheck_MissingStatus(t *testing.T) {
	_, c := newFakeService(t, map[string]string{"/health": `{"ok":true}`})

	got, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, HealthFailed, got)
}

func TestHealthCheck_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewReaderClient(Options{BaseURL: url})
	got, err := c.HealthCheck(context.Background())
	assert.Equal(t, HealthFailed, got)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestHealthCheck_DecodeError(t *testing.T) {
	_, c := newFakeService(t, map[string]string{"/health": ``})

	got, err := c.HealthCheck(context.Background())
	assert.Equal(t, HealthFailed, got)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestRequest_CanceledContext(t *testing.T) {
	_, c := newFakeService(t, map[string]string{"/health": `{"status":"ok"}`})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.HealthCheck(ctx)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequest_APIKeyHeader(t *testing.T) {
	svc := &fakeService{replies: map[string]string{"/health": `{"status":"ok"}`}}
	server := httptest.NewServer(svc)
	defer server.Close()

	c := NewReaderClient(Options{BaseURL: server.URL, APIKey: "key-123"})
	_, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key-123", svc.seen()[0].APIKey)
}

func TestConcurrentCalls(t *testing.T) {
	svc, c := newFakeService(t, map[string]string{
		"/auth/login":         `{"success":true,"token":"T1"}`,
		"/ai/enhance_text":    `{"enhanced_text":"done"}`,
		"/ai/analyze_emotion": `{"emotion_analysis":{"emotion":"joy","confidence":0.5}}`,
	})
	ctx := context.Background()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < 100; i++ {
		i := i
		g.Go(func() error {
			switch i % 10 {
			case 0:
				ok, err := c.Login(ctx, fmt.Sprintf("user%d", i), "pw")
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("login %d rejected", i)
				}
			case 1, 3, 5, 7:
				got, err := c.EnhanceText(ctx, "text", StyleCasual)
				if err != nil {
					return err
				}
				if got != "done" {
					return fmt.Errorf("enhance %d: got %q", i, got)
				}
			default:
				got, err := c.AnalyzeEmotion(ctx, "text")
				if err != nil {
					return err
				}
				if got.Emotion != "joy" {
					return fmt.Errorf("emotion %d: got %q", i, got.Emotion)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.True(t, c.HasSession())
	reqs := svc.seen()
	assert.Len(t, reqs, 100)
	for _, r := range reqs {
		if r.Authorization != "" {
			assert.Equal(t, "Bearer T1", r.Authorization)
		}
	}
}

func TestNewHTTPClient(t *testing.T) {
	t.Run("no CA file", func(t *testing.T) {
		hc, err := NewHTTPClient("")
		require.NoError(t, err)
		assert.NotNil(t, hc)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewHTTPClient(filepath.Join(t.TempDir(), "absent.pem"))
		assert.Error(t, err)
	})

	t.Run("not PEM", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.pem")
		require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))
		_, err := NewHTTPClient(path)
		assert.Error(t, err)
	})

	t.Run("trusts self-signed service", func(t *testing.T) {
		server := httptest.NewTLSServer(&fakeService{replies: map[string]string{"/health": `{"status":"ok"}`}})
		defer server.Close()

		path := filepath.Join(t.TempDir(), "cert.pem")
		block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
		require.NoError(t, os.WriteFile(path, block, 0o600))

		// Default trust rejects the test certificate.
		plain := NewReaderClient(Options{BaseURL: server.URL})
		_, err := plain.HealthCheck(context.Background())
		assert.ErrorIs(t, err, ErrTransport)

		hc, err := NewHTTPClient(path)
		require.NoError(t, err)
		c := NewReaderClient(Options{BaseURL: server.URL, HTTPClient: hc})
		got, err := c.HealthCheck(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
	})
}
