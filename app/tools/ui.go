package tools

import (
	"fmt"
	"image"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/engine/screen"
	"github.com/kbinani/screenshot"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// NewToolsPanel creates the UI panel for recording templates
func NewToolsPanel(win fyne.Window, configPath string) fyne.CanvasObject {
	selectedDisplay := 0

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
			selectedDisplay = id
		}
	})
	displaySelect.SetSelected(displayOptions[0])

	infoLabel := widget.NewLabel("1. Select the game screen\n2. Capture & Crop\n3. Drag a box around the template\n4. Save it as an anchor, loot item or minimap waypoint")
	infoLabel.Alignment = fyne.TextAlignCenter

	loadConfig := func() *config.Config {
		cfg, _, err := config.Load(configPath)
		if err != nil {
			dialog.ShowError(err, win)
			return nil
		}
		return cfg
	}

	cropBtn := widget.NewButton("Capture & Crop", func() {
		cfg := loadConfig()
		if cfg == nil {
			return
		}
		frame, err := (&screen.ScreenGrabber{DisplayIndex: selectedDisplay}).Grab()
		if err != nil {
			dialog.ShowError(err, win)
			return
		}
		showCropperWindow(cfg, frame)
	})
	cropBtn.Importance = widget.HighImportance

	openDirBtn := widget.NewButton("Open Assets", func() {
		if cfg := loadConfig(); cfg != nil {
			openDir(cfg.Runtime.AssetsDir)
		}
	})

	return container.NewVBox(
		widget.NewLabel("Screen:"),
		displaySelect,
		widget.NewSeparator(),
		infoLabel,
		cropBtn,
		widget.NewSeparator(),
		openDirBtn,
	)
}

func openDir(path string) {
	absPath, _ := filepath.Abs(path)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", absPath)
	case "windows":
		cmd = exec.Command("explorer", absPath)
	default:
		cmd = exec.Command("xdg-open", absPath)
	}
	_ = cmd.Start()
}

func showCropperWindow(cfg *config.Config, frame *image.RGBA) {
	w := fyne.CurrentApp().NewWindow("Crop Template")
	w.Resize(fyne.NewSize(800, 600))

	lbl := widget.NewLabel("Drag over the image to select a region...")
	lbl.Alignment = fyne.TextAlignCenter

	saveBtn := widget.NewButton("Save Selection", nil)
	saveBtn.Disable()

	var selection image.Rectangle
	cropper := NewCropperWidget(frame, func(rect image.Rectangle) {
		selection = rect
		lbl.SetText(fmt.Sprintf("Selected %v (%dx%d)", rect, rect.Dx(), rect.Dy()))
		saveBtn.Enable()
	})

	saveBtn.OnTapped = func() {
		// Copy so the saved template does not alias the frame
		if crop := screen.CopyRegion(frame, selection); crop != nil {
			showSaveForm(w, cfg, crop)
		}
	}

	w.SetContent(container.NewBorder(nil, container.NewVBox(lbl, saveBtn), nil, nil, cropper))
	w.Show()
}

func showSaveForm(win fyne.Window, cfg *config.Config, img image.Image) {
	preview := canvas.NewImageFromImage(img)
	preview.FillMode = canvas.ImageFillContain
	preview.ScaleMode = canvas.ImageScalePixels
	preview.SetMinSize(fyne.NewSize(100, 100))

	labels := make([]string, 0, len(kindOrder))
	byLabel := make(map[string]TemplateKind, len(kindOrder))
	for _, k := range kindOrder {
		labels = append(labels, kindLabels[k])
		byLabel[kindLabels[k]] = k
	}

	nameEntry := widget.NewEntry()
	kindSelect := widget.NewSelect(labels, func(s string) {
		kind := byLabel[s]
		nameEntry.SetText(suggestName(kind, templateDir(cfg, kind)))
	})
	kindSelect.SetSelected(labels[0])

	content := container.NewVBox(
		container.NewCenter(preview),
		widget.NewLabel("Use as:"),
		kindSelect,
		widget.NewLabel("File name:"),
		nameEntry,
	)

	dialog.ShowCustomConfirm("Save Template", "Save", "Cancel", content, func(confirm bool) {
		if !confirm {
			return
		}
		path, err := saveTemplate(cfg, byLabel[kindSelect.Selected], nameEntry.Text, img)
		if err != nil {
			dialog.ShowError(err, win)
			return
		}
		dialog.ShowInformation("Saved", path, win)
	}, win)
}
