package hunt

import (
	"context"
	"fmt"
	"time"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/engine"
	"github.com/ConserveLee/cavebot/internal/engine/screen"
	"github.com/ConserveLee/cavebot/internal/logger"
	"github.com/kbinani/screenshot"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/widget"
)

const statusRefresh = 500 * time.Millisecond

// NewHuntPanel creates the UI panel that runs the bot
func NewHuntPanel(configPath string) fyne.CanvasObject {
	// --- Data Binding ---
	logData := binding.NewStringList()
	statusData := binding.NewString()
	statusData.Set("Status: Ready")

	var (
		bot        *engine.Bot
		stopStatus context.CancelFunc
		displayID  int
	)

	// --- UI Components ---

	// 1. Screen Selector
	var displayOptions []string
	for i := 0; i < screen.DisplayCount(); i++ {
		bounds := screenshot.GetDisplayBounds(i)
		displayOptions = append(displayOptions, fmt.Sprintf("Display %d (%dx%d)", i, bounds.Dx(), bounds.Dy()))
	}
	if len(displayOptions) == 0 {
		displayOptions = []string{"Display 0 (Default)"}
	}
	displaySelect := widget.NewSelect(displayOptions, func(selected string) {
		var id int
		if _, err := fmt.Sscanf(selected, "Display %d", &id); err == nil {
			displayID = id
		}
	})
	displaySelect.SetSelected(displayOptions[0])

	configEntry := widget.NewEntry()
	configEntry.SetText(configPath)

	// 2. Status & Logs
	statusLabel := widget.NewLabelWithData(statusData)
	statusLabel.TextStyle = fyne.TextStyle{Bold: true}

	logList := widget.NewListWithData(
		logData,
		func() fyne.CanvasObject { return widget.NewLabel("Log entry template") },
		func(i binding.DataItem, o fyne.CanvasObject) { o.(*widget.Label).Bind(i.(binding.String)) },
	)
	logData.AddListener(binding.NewDataListener(func() {
		list, _ := logData.Get()
		if len(list) > 0 {
			logList.ScrollToBottom()
		}
	}))

	// 3. Buttons
	startBtn := widget.NewButton("Start", nil)
	stopBtn := widget.NewButton("Stop", nil)
	stopBtn.Disable()

	setIdle := func() {
		stopBtn.Disable()
		startBtn.Enable()
		displaySelect.Enable()
		configEntry.Enable()
	}

	startBtn.OnTapped = func() {
		cfg, notices, err := config.Load(configEntry.Text)
		if err != nil {
			logger.NewAppLogger(logData, logger.Options{}).Error("Config: %v", err)
			return
		}
		appLogger := logger.NewAppLogger(logData, logger.Options{Debug: cfg.Runtime.Debug, Format: cfg.Runtime.LogFormat})
		for _, n := range notices {
			appLogger.Info("%s", n)
		}
		cfg.Screen.Display = displayID

		startBtn.Disable()
		displaySelect.Disable()
		configEntry.Disable()
		statusData.Set("Status: Starting...")

		bot = engine.NewBot(cfg, appLogger, engine.Options{})
		ctx, cancel := context.WithCancel(context.Background())
		stopStatus = cancel
		go func() {
			// Start blocks until the first frame arrives
			if err := bot.Start(context.Background()); err != nil {
				cancel()
				appLogger.Error("Start failed: %v", err)
				statusData.Set("Status: Stopped")
				fyne.Do(setIdle)
				return
			}
			go refreshStatus(ctx, bot, statusData)
			fyne.Do(stopBtn.Enable)
		}()
	}

	stopBtn.OnTapped = func() {
		stopBtn.Disable()
		if stopStatus != nil {
			stopStatus()
		}
		go func() {
			bot.Stop()
			statusData.Set(FormatStatus(bot.Snapshot()))
			fyne.Do(setIdle)
		}()
	}

	// --- Layout ---
	controls := container.NewVBox(
		widget.NewLabel("Hunt:"),
		container.NewHBox(widget.NewLabel("Screen:"), displaySelect),
		container.NewBorder(nil, nil, widget.NewLabel("Config:"), nil, configEntry),
		statusLabel,
		container.NewHBox(startBtn, stopBtn),
		widget.NewSeparator(),
		widget.NewLabel("Log:"),
	)

	return container.NewBorder(controls, nil, nil, nil, logList)
}

// refreshStatus mirrors the bot state into the status label while it runs
func refreshStatus(ctx context.Context, bot *engine.Bot, status binding.String) {
	ticker := time.NewTicker(statusRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status.Set(FormatStatus(bot.Snapshot()))
		}
	}
}
