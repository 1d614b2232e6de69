package ai_client

import (
	"fmt"
	"strings"
)

// Style は文章強化のスタイルです。
type Style string

const (
	StyleImmersive Style = "immersive"
	StyleDramatic  Style = "dramatic"
	StylePoetic    Style = "poetic"
	StyleTechnical Style = "technical"
	StyleCasual    Style = "casual"
)

// DefaultStyle is used when no style was chosen.
const DefaultStyle = StyleImmersive

var styles = []Style{StyleImmersive, StyleDramatic, StylePoetic, StyleTechnical, StyleCasual}

// Styles returns the supported styles in display order.
func Styles() []Style {
	out := make([]Style, len(styles))
	copy(out, styles)
	return out
}

// StyleNames returns Styles as plain strings, for selectors.
func StyleNames() []string {
	names := make([]string, len(styles))
	for i, s := range styles {
		names[i] = string(s)
	}
	return names
}

// ParseStyle accepts a style name case-insensitively.
func ParseStyle(name string) (Style, error) {
	n := Style(strings.ToLower(strings.TrimSpace(name)))
	for _, s := range styles {
		if s == n {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown enhancement style %q", name)
}

func (s Style) String() string { return string(s) }
