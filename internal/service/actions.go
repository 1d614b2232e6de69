package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	ai_client "modern-reader/internal/ai"
)

const (
	noResultText     = "No results yet"
	notConnectedText = "Status: Not connected"
	signedInSuffix   = " (signed in)"
)

// ReaderAPI is what the window needs from the Modern Reader client.
type ReaderAPI interface {
	Login(ctx context.Context, identifier, password string) (bool, error)
	EnhanceText(ctx context.Context, text string, style ai_client.Style) (string, error)
	AnalyzeEmotion(ctx context.Context, text string) (ai_client.EmotionResult, error)
	HealthCheck(ctx context.Context) (string, error)
	HasSession() bool
}

// outcome is what an action leaves behind for the window and the history.
type outcome struct {
	Text   string
	Failed bool
}

func formatError(err error) string {
	return fmt.Sprintf("Error: %v", err)
}

func formatEmotion(r ai_client.EmotionResult) string {
	return fmt.Sprintf("Emotion: %s\nConfidence: %.1f%%", r.Emotion, r.Confidence*100)
}

func formatStatus(status string, signedIn bool) string {
	s := "Status: " + status
	if signedIn {
		s += signedInSuffix
	}
	return s
}

// hasText reports whether input is worth sending.
func hasText(input string) bool {
	return strings.TrimSpace(input) != ""
}

func runEnhance(ctx context.Context, api ReaderAPI, text string, style ai_client.Style) outcome {
	enhanced, err := api.EnhanceText(ctx, text, style)
	if err != nil {
		slog.Error("[App] Enhance failed", slog.String("style", style.String()), slog.String("error", err.Error()))
		return outcome{Text: formatError(err), Failed: true}
	}
	return outcome{Text: enhanced, Failed: enhanced == ai_client.EnhanceFailed}
}

func runAnalyze(ctx context.Context, api ReaderAPI, text string) outcome {
	result, err := api.AnalyzeEmotion(ctx, text)
	if err != nil {
		slog.Error("[App] Emotion analysis failed", slog.String("error", err.Error()))
		return outcome{Text: formatError(err), Failed: true}
	}
	return outcome{Text: formatEmotion(result), Failed: result.Emotion == ai_client.UnknownEmotion}
}

// runHealth returns the status bar text. Errors collapse into the
// connection-failed placeholder.
func runHealth(ctx context.Context, api ReaderAPI) outcome {
	status, err := api.HealthCheck(ctx)
	if err != nil {
		slog.Warn("[App] Health check failed", slog.String("error", err.Error()))
		return outcome{Text: formatStatus(ai_client.HealthFailed, api.HasSession()), Failed: true}
	}
	return outcome{Text: formatStatus(status, api.HasSession()), Failed: status == ai_client.HealthFailed}
}

func runLogin(ctx context.Context, api ReaderAPI, identifier, password string) outcome {
	ok, err := api.Login(ctx, identifier, password)
	switch {
	case err != nil:
		slog.Error("[App] Login failed", slog.String("error", err.Error()))
		return outcome{Text: formatError(err), Failed: true}
	case !ok:
		return outcome{Text: "Login rejected. Check your credentials.", Failed: true}
	default:
		return outcome{Text: fmt.Sprintf("Signed in as %s.", identifier)}
	}
}
