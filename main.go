package main

import (
	"flag"

	"github.com/ConserveLee/cavebot/app/hunt"
	"github.com/ConserveLee/cavebot/app/tools"
	"github.com/ConserveLee/cavebot/internal/config"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "YAML or TOML configuration file")
	flag.Parse()

	myApp := app.New()
	myWindow := myApp.NewWindow("Cavebot")
	myWindow.Resize(fyne.NewSize(500, 600))

	tabs := container.NewAppTabs(
		container.NewTabItem("Hunt", hunt.NewHuntPanel(*configPath)),
		container.NewTabItem("Tools", tools.NewToolsPanel(myWindow, *configPath)),
	)
	tabs.SetTabLocation(container.TabLocationTop)

	myWindow.SetContent(tabs)
	myWindow.ShowAndRun()
}
