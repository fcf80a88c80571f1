package modules

import (
	"context"
	"image"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/ConserveLee/cavebot/internal/engine/input"
	"github.com/ConserveLee/cavebot/internal/logger"
)

type lootTemplate struct {
	name string
	img  image.Image
}

// Loot opens corpses around the character after a kill and takes whitelisted items
type Loot struct {
	deps     *Deps
	cfg      config.LootConfig
	viewport config.ViewportConfig
	log      *logger.AppLogger

	takeAll   bool
	templates []lootTemplate

	// jitter returns the extra pixels added to the tile offset for one pass
	jitter func() int
}

// NewLoot creates the loot module
func NewLoot(d *Deps, cfg config.LootConfig, viewport config.ViewportConfig) *Loot {
	return &Loot{
		deps:     d,
		cfg:      cfg,
		viewport: viewport,
		log:      d.logger("Loot"),
		takeAll:  cfg.TakeAll(),
		jitter: func() int {
			return constants.LootJitterMin + rand.IntN(constants.LootJitterMax-constants.LootJitterMin+1)
		},
	}
}

// Name implements Module
func (l *Loot) Name() string { return "Loot" }

// Run implements Module
func (l *Loot) Run(ctx context.Context) error {
	if !l.cfg.Enabled {
		l.log.Info("Module disabled")
		return nil
	}
	if !l.resolveTemplates() {
		l.log.Info("Nothing to collect - module idle")
		return nil
	}

	runLoop(ctx, l.deps, l.log, l.processTick)
	return nil
}

// resolveTemplates loads one PNG per whitelisted item. It reports whether there is anything to loot.
func (l *Loot) resolveTemplates() bool {
	if l.takeAll {
		l.log.Info("Take-all mode - every item will be collected")
		return true
	}
	l.templates = l.templates[:0]
	for _, name := range l.cfg.Whitelist {
		path := filepath.Join(l.cfg.TemplatesDir, name+".png")
		img, err := l.deps.Searcher.LoadImage(path)
		if err != nil {
			l.log.Warn("template not found: %s", path)
			continue
		}
		l.templates = append(l.templates, lootTemplate{name: name, img: img})
		l.log.Info("Whitelisted: %s", name)
	}
	if len(l.templates) == 0 {
		l.log.Warn("No valid whitelist templates - loot collection disabled")
		return false
	}
	return true
}

func (l *Loot) processTick(ctx context.Context) time.Duration {
	if !l.deps.State.Loot().Pending {
		return constants.LootPollInterval
	}
	l.pass(ctx)
	return constants.LootPollInterval
}

// pass runs one looting round. Both handoff flags are always cleared afterwards.
func (l *Loot) pass(ctx context.Context) {
	st := l.deps.State
	if !st.BeginLooting() {
		return
	}
	defer st.FinishLooting()

	l.log.Info("Waiting %.1fs for corpse", l.cfg.DelayAfterKill)
	if !l.deps.sleep(ctx, config.Seconds(l.cfg.DelayAfterKill)) {
		return
	}

	for _, p := range l.surroundingTiles() {
		if !l.lootTile(ctx, p) {
			return
		}
	}
	l.log.Info("Done")
}

// lootTile holds the input gate for one tile. It returns false when cancelled.
func (l *Loot) lootTile(ctx context.Context, tile image.Point) bool {
	release, err := l.deps.Gate.Acquire(ctx, l.Name())
	if err != nil {
		return false
	}
	defer release()

	dev := l.deps.Device
	dev.ModifierClick(input.KeyShift, input.Right, tile.X, tile.Y)

	if l.takeAll {
		return l.deps.sleep(ctx, constants.LootTakeAllClickGap)
	}

	// Let the container window render
	if !l.deps.sleep(ctx, constants.LootContainerWait) {
		return false
	}

	if frame := l.deps.Frames.Frame(); frame != nil {
		for _, item := range l.findItems(frame) {
			l.log.Info("Taking %s at (%d,%d)", item.name, item.at.X, item.at.Y)
			dev.ModifierClick(input.KeyCtrl, input.Left, item.at.X, item.at.Y)
			if !l.deps.sleep(ctx, constants.LootTakeGap) {
				return false
			}
		}
	}

	// Close the container so windows don't stack over the game view
	dev.KeyTap(input.KeyEscape)
	return l.deps.sleep(ctx, constants.LootCloseWait)
}

type lootHit struct {
	name string
	at   image.Point // click point (template centre)
}

func (l *Loot) findItems(frame image.Image) []lootHit {
	roi := l.cfg.ScanRegion.Rect()
	var hits []lootHit
	for _, t := range l.templates {
		b := t.img.Bounds()
		half := image.Pt(b.Dx()/2, b.Dy()/2)
		for _, m := range l.deps.Searcher.FindAllTemplatesInROI(frame, t.img, roi, constants.LootTolerance) {
			hits = append(hits, lootHit{name: t.name, at: m.Add(half)})
		}
	}
	return hits
}

// surroundingTiles returns the screen points of the 8 tiles around the character
func (l *Loot) surroundingTiles() []image.Point {
	cx, cy := l.viewport.CenterX, l.viewport.CenterY
	o := l.viewport.TileSize + l.jitter()
	return []image.Point{
		{cx - o, cy},
		{cx - o, cy + o},
		{cx, cy + o},
		{cx + o, cy + o},
		{cx + o, cy},
		{cx + o, cy - o},
		{cx, cy - o},
		{cx - o, cy - o},
	}
}
