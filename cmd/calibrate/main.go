// Command calibrate checks screen regions and templates against a live
// capture or a saved screenshot, and records waypoints.
//
//	calibrate dump-frame -out frame.png
//	calibrate show-anchors -in frame.png
//	calibrate show-bars
//	calibrate show-coords -save coords.png
//	calibrate match -tpl loot/gold_coin.png -in frame.png
//	calibrate record-waypoint -file routes/hunt.json
//	calibrate record-waypoint -minimap -file routes/minimap.json
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/ConserveLee/cavebot/internal/engine/screen"
)

type command struct {
	name  string
	usage string
	run   func(e *env, args []string) error
}

var commands = []command{
	{"dump-frame", "save the current frame", dumpFrame},
	{"show-anchors", "locate the UI anchor templates", showAnchors},
	{"show-bars", "read HP and mana percentages", showBars},
	{"show-coords", "OCR the coordinate display", showCoords},
	{"match", "test a template at several tolerances", matchTemplate},
	{"record-waypoint", "append the current position to a route", recordWaypoint},
}

// env is shared by every subcommand
type env struct {
	cfg      *config.Config
	searcher *screen.Searcher
	in       string
}

// frame loads -in or captures the configured display
func (e *env) frame() (*image.RGBA, error) {
	if e.in == "" {
		g := &screen.ScreenGrabber{DisplayIndex: e.cfg.Screen.Display}
		return g.Grab()
	}
	img, err := e.searcher.LoadImage(e.in)
	if err != nil {
		return nil, err
	}
	return screen.CopyRegion(toRGBA(img), img.Bounds()), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	name := os.Args[1]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		fs := flag.NewFlagSet(name, flag.ExitOnError)
		configPath := fs.String("config", config.DefaultPath, "configuration file")
		in := fs.String("in", "", "screenshot to analyse instead of a live capture")
		args := splitArgs(os.Args[2:])
		_ = fs.Parse(args.common)

		cfg, notices, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		for _, n := range notices {
			fmt.Println(n)
		}
		if err := c.run(&env{cfg: cfg, searcher: screen.NewSearcher(), in: *in}, args.rest); err != nil {
			fatal(err)
		}
		return
	}
	usage()
	os.Exit(2)
}

type splitResult struct {
	common []string
	rest   []string
}

// splitArgs separates -config and -in from the subcommand's own flags
func splitArgs(args []string) splitResult {
	var r splitResult
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-config", "--config", "-in", "--in":
			r.common = append(r.common, args[i])
			if i+1 < len(args) {
				r.common = append(r.common, args[i+1])
				i++
			}
		default:
			r.rest = append(r.rest, args[i])
		}
	}
	return r
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: calibrate <command> [-config file] [-in screenshot] [flags]")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-16s %s\n", c.name, c.usage)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "calibrate: %v\n", err)
	os.Exit(1)
}

func dumpFrame(e *env, args []string) error {
	fs := flag.NewFlagSet("dump-frame", flag.ExitOnError)
	out := fs.String("out", "frame.png", "output PNG")
	_ = fs.Parse(args)

	frame, err := e.frame()
	if err != nil {
		return err
	}
	if err := e.searcher.SaveDebugFrame(*out, frame); err != nil {
		return err
	}
	fmt.Printf("Saved %dx%d frame to %s\n", frame.Bounds().Dx(), frame.Bounds().Dy(), *out)
	return nil
}

// locate finds one anchor template and prints the result
func (e *env) locate(frame image.Image, name string) (image.Point, bool) {
	path := filepath.Join(e.cfg.Runtime.AssetsDir, name)
	tpl, err := e.searcher.LoadImage(path)
	if err != nil {
		fmt.Printf("  %-12s missing (%v)\n", name, err)
		return image.Point{}, false
	}
	x, y, ok := e.searcher.FindTemplate(frame, tpl, constants.DefaultTolerance)
	if !ok {
		fmt.Printf("  %-12s not found\n", name)
		return image.Point{}, false
	}
	fmt.Printf("  %-12s at (%d,%d)\n", name, x, y)
	return image.Pt(x, y), true
}

func showAnchors(e *env, _ []string) error {
	frame, err := e.frame()
	if err != nil {
		return err
	}
	fmt.Printf("Frame %dx%d, assets in %s\n", frame.Bounds().Dx(), frame.Bounds().Dy(), e.cfg.Runtime.AssetsDir)
	for _, name := range []string{constants.FollowAnchor, constants.HealthAnchor, constants.ManaAnchor} {
		e.locate(frame, name)
	}

	battle, ok := e.locate(frame, constants.BattleAnchor)
	if !ok {
		return nil
	}
	pixel := battle.Add(image.Pt(constants.BattlePixelOffsetX, constants.BattlePixelOffsetY))
	indicator := pixel.Add(e.cfg.Combat.IndicatorOffset())
	fmt.Printf("  enemy pixel  %v color=%v enemy=%t\n", pixel, frame.At(pixel.X, pixel.Y),
		screen.EnemyPresent(frame, pixel, constants.EmptyBattleColor))
	fmt.Printf("  indicator    %v attacking=%t\n", indicator, screen.AttackIndicator(frame, indicator))
	return nil
}

func showBars(e *env, _ []string) error {
	frame, err := e.frame()
	if err != nil {
		return err
	}
	if pos, ok := e.locate(frame, constants.HealthAnchor); ok {
		start := pos.Add(image.Pt(constants.HealthOffsetX, constants.HealthOffsetY))
		pct := screen.ReadBarPercent(frame, start.X, start.Y, constants.BarWidth, constants.HealthBarColor, constants.BarTolerance)
		fmt.Printf("HP   %.1f%% (threshold %.0f%%)\n", pct, e.cfg.Healing.HPThreshold)
	}
	if pos, ok := e.locate(frame, constants.ManaAnchor); ok {
		start := pos.Add(image.Pt(constants.ManaOffsetX, constants.ManaOffsetY))
		pct := screen.ReadBarPercent(frame, start.X, start.Y, constants.BarWidth, constants.ManaBarColor, constants.BarTolerance)
		fmt.Printf("Mana %.1f%% (threshold %.0f%%)\n", pct, e.cfg.Healing.ManaThreshold)
	}
	return nil
}

func readCoords(e *env, frame *image.RGBA, save string) (screen.Coordinates, error) {
	region := screen.CopyRegion(frame, e.cfg.CoordDisplay.Rect())
	if region == nil {
		return screen.Coordinates{}, fmt.Errorf("coord_display %v is outside the frame", e.cfg.CoordDisplay.Rect())
	}
	if save != "" {
		if err := e.searcher.SaveDebugFrame(save, screen.Binarize(region)); err != nil {
			return screen.Coordinates{}, err
		}
		fmt.Printf("Saved OCR input to %s\n", save)
	}

	ocr := screen.NewOCRReader()
	defer ocr.Close()
	if err := ocr.Check(); err != nil {
		return screen.Coordinates{}, err
	}
	return ocr.Read(region)
}

func showCoords(e *env, args []string) error {
	fs := flag.NewFlagSet("show-coords", flag.ExitOnError)
	save := fs.String("save", "", "write the binarized OCR input here")
	_ = fs.Parse(args)

	frame, err := e.frame()
	if err != nil {
		return err
	}
	c, err := readCoords(e, frame, *save)
	if errors.Is(err, screen.ErrCapabilityUnavailable) {
		return fmt.Errorf("%w - install tesseract or switch to the minimap strategy", err)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Position %d, %d, %d\n", c.X, c.Y, c.Z)
	return nil
}

func matchTemplate(e *env, args []string) error {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	tplPath := fs.String("tpl", "", "template PNG")
	_ = fs.Parse(args)
	if *tplPath == "" {
		return errors.New("-tpl is required")
	}

	frame, err := e.frame()
	if err != nil {
		return err
	}
	tpl, err := e.searcher.LoadImage(*tplPath)
	if err != nil {
		return err
	}
	fmt.Printf("Screen size: %dx%d\n", frame.Bounds().Dx(), frame.Bounds().Dy())
	fmt.Printf("Using MaxFailRate: %.0f%%\n", constants.MaxFailRate*100)
	fmt.Printf("\n=== Testing %s (%dx%d) ===\n", filepath.Base(*tplPath), tpl.Bounds().Dx(), tpl.Bounds().Dy())

	for _, tolerance := range []float64{constants.LootTolerance, constants.DefaultTolerance, 80} {
		matches := e.searcher.FindAllTemplates(frame, tpl, tolerance)
		fmt.Printf("  Tolerance %.0f: %d matches", tolerance, len(matches))
		if len(matches) > 0 {
			fmt.Printf(" -> %v", matches)
		}
		fmt.Println()
	}
	return nil
}

func recordWaypoint(e *env, args []string) error {
	fs := flag.NewFlagSet("record-waypoint", flag.ExitOnError)
	file := fs.String("file", "", "route file to append to")
	name := fs.String("name", "route", "route name for new files")
	minimap := fs.Bool("minimap", false, "record a minimap crop instead of OCR coordinates")
	_ = fs.Parse(args)
	if *file == "" {
		return errors.New("-file is required")
	}

	frame, err := e.frame()
	if err != nil {
		return err
	}
	if *minimap {
		return recordMinimapWaypoint(e, frame, *file, *name)
	}

	c, err := readCoords(e, frame, "")
	if err != nil {
		return err
	}
	wps, err := config.LoadCoordinateWaypoints(*file)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	wps = append(wps, config.Waypoint{X: c.X, Y: c.Y, Z: c.Z})
	if err := config.SaveCoordinateWaypoints(*file, *name, wps); err != nil {
		return err
	}
	fmt.Printf("Waypoint %d: %d, %d, %d -> %s\n", len(wps), c.X, c.Y, c.Z, *file)
	return nil
}

// recordMinimapWaypoint saves a template_size square around the player dot
func recordMinimapWaypoint(e *env, frame *image.RGBA, file, name string) error {
	route, err := config.LoadMinimapRoute(file)
	switch {
	case errors.Is(err, os.ErrNotExist):
		route = config.MinimapRoute{Name: name}
	case err != nil:
		return err
	}

	mm := e.cfg.Minimap.Rect()
	half := e.cfg.Minimap.TemplateSize / 2
	c := image.Pt(mm.Min.X+mm.Dx()/2, mm.Min.Y+mm.Dy()/2)
	crop := screen.CopyRegion(frame, image.Rect(c.X-half, c.Y-half, c.X+half, c.Y+half))
	if crop == nil {
		return fmt.Errorf("minimap region %v is outside the frame", mm)
	}

	path := filepath.Join(filepath.Dir(file), fmt.Sprintf("wp_%02d.png", len(route.Waypoints)))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := e.searcher.SaveDebugFrame(path, crop); err != nil {
		return err
	}
	route.Waypoints = append(route.Waypoints, path)
	if err := config.SaveMinimapRoute(file, route); err != nil {
		return err
	}
	fmt.Printf("Minimap waypoint %d -> %s\n", len(route.Waypoints)-1, path)
	return nil
}
