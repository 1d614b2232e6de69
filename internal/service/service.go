package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	ai_client "modern-reader/internal/ai"
	"modern-reader/internal/config"
	"modern-reader/internal/history"
	"modern-reader/internal/ui"
	"modern-reader/internal/utils"
)

const (
	appID       = "com.modernreader.linux"
	windowTitle = "Modern Reader"

	statusMaxLength   = 80
	historyRowLength  = 70
	historyDateFormat = "01-02 15:04"
)

type App struct {
	fyneApp fyne.App
	window  fyne.Window

	// ctx is canceled when the window closes; in-flight requests abort with it.
	ctx    context.Context
	cancel context.CancelFunc

	api     ReaderAPI
	history *history.Store
	cfg     config.Config

	inputEntry    *widget.Entry
	styleSelect   *widget.Select
	enhanceButton *widget.Button
	analyzeButton *widget.Button
	healthButton  *widget.Button
	progress      *widget.ProgressBarInfinite
	resultLabel   *widget.Label
	statusLabel   *widget.Label

	// busy counts in-flight enhance/analyze calls. Only touched on the UI goroutine.
	busy int
}

// NewMainApp builds the window around api. hist may be nil.
func NewMainApp(cfg config.Config, api ReaderAPI, hist *history.Store) *App {
	return newApp(app.NewWithID(appID), cfg, api, hist)
}

func newApp(fyneApp fyne.App, cfg config.Config, api ReaderAPI, hist *history.Store) *App {
	fyneApp.Settings().SetTheme(ui.NewReaderTheme())

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		fyneApp: fyneApp,
		window:  fyneApp.NewWindow(windowTitle),
		ctx:     ctx,
		cancel:  cancel,
		api:     api,
		history: hist,
		cfg:     cfg,
	}
	a.window.Resize(fyne.NewSize(900, 700))

	a.buildContent()
	a.createMenu()

	a.window.Canvas().AddShortcut(&desktop.CustomShortcut{
		KeyName:  fyne.KeyReturn,
		Modifier: fyne.KeyModifierControl,
	}, func(fyne.Shortcut) {
		if a.window.Canvas().Focused() == a.inputEntry {
			a.handleEnhance()
		}
	})

	a.window.SetCloseIntercept(func() {
		a.cancel()
		a.fyneApp.Quit()
	})
	return a
}

func (a *App) buildContent() {
	title := widget.NewRichText(&widget.TextSegment{
		Text:  windowTitle,
		Style: widget.RichTextStyleHeading,
	})
	subtitle := widget.NewLabel("Modern Reader for Linux")

	a.inputEntry = widget.NewMultiLineEntry()
	a.inputEntry.SetPlaceHolder("Enter the text to enhance or analyze...")
	a.inputEntry.Wrapping = fyne.TextWrapWord
	a.inputEntry.SetMinRowsVisible(5)

	a.styleSelect = widget.NewSelect(ai_client.StyleNames(), nil)
	a.styleSelect.SetSelected(a.defaultStyle().String())
	styleRow := container.NewHBox(widget.NewLabel("Enhancement style:"), a.styleSelect)

	inputCard := widget.NewCard("Input text", "", container.NewVBox(a.inputEntry, styleRow))

	a.enhanceButton = widget.NewButton("AI Enhance", a.handleEnhance)
	a.enhanceButton.Importance = widget.HighImportance
	a.analyzeButton = widget.NewButton("Analyze Emotion", a.handleAnalyze)
	a.healthButton = widget.NewButton("Health Check", a.handleHealth)

	a.progress = widget.NewProgressBarInfinite()
	a.progress.Stop()
	a.progress.Hide()

	buttons := container.NewBorder(nil, nil,
		container.NewHBox(a.enhanceButton, a.analyzeButton, a.healthButton), nil,
		a.progress)

	a.resultLabel = widget.NewLabel(noResultText)
	a.resultLabel.Wrapping = fyne.TextWrapWord
	resultScroll := container.NewVScroll(a.resultLabel)
	resultScroll.SetMinSize(fyne.NewSize(0, 200))
	resultCard := widget.NewCard("Result", "", resultScroll)

	a.statusLabel = widget.NewLabel(notConnectedText)
	a.statusLabel.Importance = widget.LowImportance

	top := container.NewVBox(title, subtitle, inputCard, buttons)
	a.window.SetContent(container.NewBorder(top, a.statusLabel, nil, nil, resultCard))
}

func (a *App) createMenu() {
	loginItem := fyne.NewMenuItem("Log in...", a.showLoginDialog)
	accountMenu := fyne.NewMenu("Account", loginItem)

	showHistoryItem := fyne.NewMenuItem("Show history...", a.showHistoryDialog)
	clearHistoryItem := fyne.NewMenuItem("Clear history", a.confirmClearHistory)
	historyMenu := fyne.NewMenu("History", showHistoryItem, clearHistoryItem)

	a.window.SetMainMenu(fyne.NewMainMenu(accountMenu, historyMenu))
}

func (a *App) defaultStyle() ai_client.Style {
	style, err := ai_client.ParseStyle(a.cfg.UI.DefaultStyle)
	if err != nil {
		if a.cfg.UI.DefaultStyle != "" {
			slog.Warn("[App] Ignoring configured default style", slog.String("error", err.Error()))
		}
		return ai_client.DefaultStyle
	}
	return style
}

func (a *App) selectedStyle() ai_client.Style {
	style, err := ai_client.ParseStyle(a.styleSelect.Selected)
	if err != nil {
		return ai_client.DefaultStyle
	}
	return style
}

// beginBusy and endBusy run on the UI goroutine.
func (a *App) beginBusy(button *widget.Button) {
	button.Disable()
	a.busy++
	a.progress.Show()
	a.progress.Start()
}

func (a *App) endBusy(button *widget.Button) {
	button.Enable()
	if a.busy > 0 {
		a.busy--
	}
	if a.busy == 0 {
		a.progress.Stop()
		a.progress.Hide()
	}
}

func (a *App) handleEnhance() {
	text := a.inputEntry.Text
	if !hasText(text) {
		return
	}
	style := a.selectedStyle()
	slog.Info("[App] Enhancing text", slog.String("style", style.String()), slog.Int("length", len(text)))

	a.beginBusy(a.enhanceButton)
	go func() {
		out := runEnhance(a.ctx, a.api, text, style)
		a.record(history.Entry{
			Action: history.ActionEnhance,
			Style:  style.String(),
			Input:  text,
			Output: out.Text,
			Failed: out.Failed,
		})
		fyne.Do(func() {
			a.resultLabel.SetText(out.Text)
			a.endBusy(a.enhanceButton)
		})
	}()
}

func (a *App) handleAnalyze() {
	text := a.inputEntry.Text
	if !hasText(text) {
		return
	}
	slog.Info("[App] Analyzing emotion", slog.Int("length", len(text)))

	a.beginBusy(a.analyzeButton)
	go func() {
		out := runAnalyze(a.ctx, a.api, text)
		a.record(history.Entry{
			Action: history.ActionEmotion,
			Input:  text,
			Output: out.Text,
			Failed: out.Failed,
		})
		fyne.Do(func() {
			a.resultLabel.SetText(out.Text)
			a.endBusy(a.analyzeButton)
		})
	}()
}

func (a *App) handleHealth() {
	go func() {
		out := runHealth(a.ctx, a.api)
		a.record(history.Entry{
			Action: history.ActionHealth,
			Output: out.Text,
			Failed: out.Failed,
		})
		fyne.Do(func() {
			a.setStatus(out.Text)
		})
	}()
}

func (a *App) setStatus(text string) {
	a.statusLabel.SetText(utils.TruncateText(utils.FirstLine(text), statusMaxLength))
}

func (a *App) showLoginDialog() {
	identifier := widget.NewEntry()
	identifier.SetPlaceHolder("email or username")
	password := widget.NewPasswordEntry()

	items := []*widget.FormItem{
		widget.NewFormItem("Account", identifier),
		widget.NewFormItem("Password", password),
	}
	dialog.ShowForm("Log in", "Log in", "Cancel", items, func(confirmed bool) {
		if !confirmed {
			return
		}
		id := strings.TrimSpace(identifier.Text)
		if id == "" {
			dialog.ShowInformation("Log in", "Enter an email or username.", a.window)
			return
		}
		a.login(id, password.Text)
	}, a.window)
}

func (a *App) login(identifier, password string) {
	slog.Info("[App] Logging in")
	go func() {
		out := runLogin(a.ctx, a.api, identifier, password)
		a.record(history.Entry{
			Action: history.ActionLogin,
			Input:  identifier,
			Output: out.Text,
			Failed: out.Failed,
		})
		fyne.Do(func() {
			if out.Failed {
				dialog.ShowInformation("Log in", out.Text, a.window)
				return
			}
			a.setStatus(out.Text)
		})
	}()
}

// record appends to the history; failures to persist are only logged.
func (a *App) record(e history.Entry) {
	if a.history == nil {
		return
	}
	if _, err := a.history.Append(e); err != nil {
		slog.Warn("[App] Failed to save history", slog.String("error", err.Error()))
	}
}

func historyRow(e history.Entry) string {
	return fmt.Sprintf("%s  %-7s  %s",
		e.CreatedAt.Local().Format(historyDateFormat), e.Action, utils.Preview(e.Output, historyRowLength))
}

func (a *App) showHistoryDialog() {
	if a.history == nil || a.history.Len() == 0 {
		dialog.ShowInformation("History", "No history yet.", a.window)
		return
	}
	entries := a.history.Entries()

	var selected *history.Entry
	list := widget.NewList(
		func() int {
			return len(entries)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("template")
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(historyRow(entries[i]))
		},
	)
	list.OnSelected = func(id widget.ListItemID) {
		selected = &entries[id]
	}

	scroll := container.NewVScroll(list)
	scroll.SetMinSize(fyne.NewSize(560, 320))

	dialog.ShowCustomConfirm("History", "Load", "Close", scroll, func(load bool) {
		if load && selected != nil {
			a.loadEntry(*selected)
		}
	}, a.window)
}

// loadEntry puts a past action back into the window.
func (a *App) loadEntry(e history.Entry) {
	if e.Action == history.ActionHealth || e.Action == history.ActionLogin {
		a.setStatus(e.Output)
		return
	}
	if e.Input != "" {
		a.inputEntry.SetText(e.Input)
	}
	if style, err := ai_client.ParseStyle(e.Style); err == nil {
		a.styleSelect.SetSelected(style.String())
	}
	a.resultLabel.SetText(e.Output)
}

func (a *App) confirmClearHistory() {
	if a.history == nil {
		return
	}
	dialog.ShowConfirm("Clear history", "Delete every history entry?", func(ok bool) {
		if !ok {
			return
		}
		if err := a.history.Clear(); err != nil {
			dialog.ShowError(fmt.Errorf("failed to clear history: %w", err), a.window)
		}
	}, a.window)
}

// Run is the main entry point of the application
func (a *App) Run() {
	if a.cfg.UI.HealthOnStartup {
		a.handleHealth()
	}
	a.window.Show()
	a.fyneApp.Run()
	a.cancel()
}
