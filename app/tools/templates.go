package tools

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/ConserveLee/cavebot/internal/engine/screen"
)

// TemplateKind is where a cropped template is used
type TemplateKind int

const (
	KindAnchor TemplateKind = iota
	KindLoot
	KindMinimap
)

var kindLabels = map[TemplateKind]string{
	KindAnchor:  "UI anchor (battle / follow / health / mana)",
	KindLoot:    "Loot item",
	KindMinimap: "Minimap waypoint",
}

var kindOrder = []TemplateKind{KindAnchor, KindLoot, KindMinimap}

// anchorNames are the files the modules look for in the assets dir
var anchorNames = []string{
	constants.BattleAnchor,
	constants.FollowAnchor,
	constants.HealthAnchor,
	constants.ManaAnchor,
}

// templateDir returns the directory a kind is saved to
func templateDir(cfg *config.Config, kind TemplateKind) string {
	switch kind {
	case KindLoot:
		return cfg.Loot.TemplatesDir
	case KindMinimap:
		if cfg.Minimap.WaypointsFile == "" {
			return "minimap"
		}
		return filepath.Dir(cfg.Minimap.WaypointsFile)
	default:
		return cfg.Runtime.AssetsDir
	}
}

// suggestName proposes a file name for a new template
func suggestName(kind TemplateKind, dir string) string {
	switch kind {
	case KindMinimap:
		return nextWaypointName(dir)
	case KindLoot:
		return "item.png"
	default:
		for _, name := range anchorNames {
			if _, err := os.Stat(filepath.Join(dir, name)); errors.Is(err, os.ErrNotExist) {
				return name
			}
		}
		return anchorNames[0]
	}
}

// nextWaypointName returns wp_NN.png one past the highest number in dir
func nextWaypointName(dir string) string {
	files, _ := filepath.Glob(filepath.Join(dir, "*.png"))
	next := 0
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		// "wp_07" -> "07"
		parts := strings.FieldsFunc(name, func(r rune) bool { return r < '0' || r > '9' })
		if len(parts) == 0 {
			continue
		}
		if idx, err := strconv.Atoi(parts[0]); err == nil && idx >= next {
			next = idx + 1
		}
	}
	return fmt.Sprintf("wp_%02d.png", next)
}

// saveTemplate writes img and, for minimap waypoints, appends it to the route file
func saveTemplate(cfg *config.Config, kind TemplateKind, name string, img image.Image) (string, error) {
	if name == "" {
		return "", errors.New("file name must not be empty")
	}
	if filepath.Ext(name) == "" {
		name += ".png"
	}
	dir := templateDir(cfg, kind)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := screen.NewSearcher().SaveDebugFrame(path, img); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	if kind != KindMinimap {
		return path, nil
	}

	routeFile := cfg.Minimap.WaypointsFile
	if routeFile == "" {
		routeFile = filepath.Join(dir, "route.json")
	}
	route, err := config.LoadMinimapRoute(routeFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		route = config.MinimapRoute{Name: filepath.Base(dir)}
	case err != nil:
		return path, err
	}
	route.Waypoints = append(route.Waypoints, path)
	return path, config.SaveMinimapRoute(routeFile, route)
}
