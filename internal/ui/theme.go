package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// readerTheme は読書向けの落ち着いた配色のテーマです。
type readerTheme struct {
	fyne.Theme
}

// NewReaderTheme returns the application theme. It follows the system
// light/dark variant and only overrides accent colors and text sizes.
func NewReaderTheme() fyne.Theme {
	return &readerTheme{Theme: theme.DefaultTheme()}
}

var (
	accent      = color.NRGBA{R: 0x3f, G: 0x7c, B: 0xac, A: 0xff}
	accentHover = color.NRGBA{R: 0x3f, G: 0x7c, B: 0xac, A: 0x33}

	darkPalette = map[fyne.ThemeColorName]color.Color{
		theme.ColorNameBackground:      color.NRGBA{R: 0x1f, G: 0x1d, B: 0x1a, A: 0xff},
		theme.ColorNameInputBackground: color.NRGBA{R: 0x2a, G: 0x27, B: 0x23, A: 0xff},
		theme.ColorNameForeground:      color.NRGBA{R: 0xe8, G: 0xe2, B: 0xd6, A: 0xff},
		theme.ColorNamePlaceHolder:     color.NRGBA{R: 0x8a, G: 0x84, B: 0x7a, A: 0xff},
	}
	lightPalette = map[fyne.ThemeColorName]color.Color{
		theme.ColorNameBackground:      color.NRGBA{R: 0xfa, G: 0xf6, B: 0xee, A: 0xff},
		theme.ColorNameInputBackground: color.NRGBA{R: 0xff, G: 0xfd, B: 0xf8, A: 0xff},
		theme.ColorNameForeground:      color.NRGBA{R: 0x2b, G: 0x28, B: 0x24, A: 0xff},
		theme.ColorNamePlaceHolder:     color.NRGBA{R: 0x9a, G: 0x93, B: 0x88, A: 0xff},
	}
)

func (m *readerTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return accent
	case theme.ColorNameHover:
		return accentHover
	}

	palette := lightPalette
	if variant == theme.VariantDark {
		palette = darkPalette
	}
	if c, ok := palette[name]; ok {
		return c
	}
	return m.Theme.Color(name, variant)
}

func (m *readerTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return 15
	case theme.SizeNameHeadingText:
		return 24
	case theme.SizeNameSubHeadingText:
		return 16
	case theme.SizeNamePadding:
		return 6
	}
	return m.Theme.Size(name)
}
