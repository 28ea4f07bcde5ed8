package main

import (
	"fmt"
	"image/color"
	"math"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/Garsondee/Nav-Sense/internal/nav"
	"github.com/Garsondee/Nav-Sense/internal/sim"
)

// borderWidth is the pixel gap between the window edge and the map view.
const borderWidth = 24

// dumpRadius is the margin around the start-goal segment for overlays and
// clipboard dumps.
const dumpRadius = 30

var featureColors = map[sim.FeatureKind]color.RGBA{
	sim.FeatureHill: {R: 90, G: 80, B: 50, A: 140},
	sim.FeatureLake: {R: 40, G: 80, B: 150, A: 200},
	sim.FeatureVoid: {R: 0, G: 0, B: 0, A: 255},
	sim.FeatureHole: {R: 20, G: 16, B: 12, A: 255},
	sim.FeatureMesa: {R: 120, G: 110, B: 95, A: 220},
}

// Viewer plays one scenario in a window. It implements ebiten.Game.
type Viewer struct {
	sc    sim.Scenario
	seed  int64
	extra []sim.SimOption

	width, height int
	viewW, viewH  int

	ts       *sim.TestSim
	cam      camera
	log      *phaseLog
	seen     int
	overlay  []nav.OverlayCell
	overTick int

	paused   bool
	speed    int // ticks per frame
	prevKeys map[ebiten.Key]bool
	status   string
	logger   *log.Logger
}

func newViewer(sc sim.Scenario, seed int64, logger *log.Logger, extra ...sim.SimOption) *Viewer {
	v := &Viewer{
		sc:       sc,
		seed:     seed,
		extra:    extra,
		width:    1600,
		height:   900,
		log:      newPhaseLog(),
		speed:    1,
		prevKeys: map[ebiten.Key]bool{},
		logger:   logger,
	}
	v.viewW = v.width - logPanelWidth - 2*borderWidth
	v.viewH = v.height - 2*borderWidth
	v.restart()
	return v
}

// restart rebuilds the scenario from its seed.
func (v *Viewer) restart() {
	v.ts = v.sc.New(v.seed, v.extra...)
	lo, hi := sceneBounds(v.ts)
	v.cam = fitCamera(lo, hi, borderWidth, borderWidth, float64(v.viewW), float64(v.viewH), 20)
	v.log.reset()
	v.seen = 0
	v.overlay, v.overTick = nil, -1
	v.pullEvents()
	v.status = fmt.Sprintf("started %s seed=%d", v.sc.Name, v.seed)
	v.logger.Info("scenario started", "scenario", v.sc.Name, "seed", v.seed)
}

func (v *Viewer) subject() (*sim.Order, bool) {
	return v.ts.OrderOf(v.sc.Subject)
}

func (v *Viewer) pullEvents() {
	entries := v.ts.Log.Entries()
	for _, e := range entries[v.seen:] {
		v.log.add(e)
	}
	v.seen = len(entries)
}

func (v *Viewer) Update() error {
	v.handleInput()
	if v.paused || v.ts.AllDone() {
		return nil
	}
	v.ts.RunTicks(v.speed)
	v.pullEvents()
	if v.ts.AllDone() {
		if o, ok := v.subject(); ok {
			v.status = fmt.Sprintf("finished at T=%d: %s", v.ts.Tick, o.Status)
			v.logger.Info("scenario finished", "tick", v.ts.Tick, "status", o.Status, "err", o.Err)
		}
	}
	return nil
}

func (v *Viewer) pressed(k ebiten.Key, cur map[ebiten.Key]bool) bool {
	cur[k] = ebiten.IsKeyPressed(k)
	return cur[k] && !v.prevKeys[k]
}

// handleInput processes keypresses (edge-triggered).
func (v *Viewer) handleInput() {
	cur := map[ebiten.Key]bool{}

	if v.pressed(ebiten.KeySpace, cur) {
		v.paused = !v.paused
	}
	if v.pressed(ebiten.KeyR, cur) {
		v.restart()
	}
	if v.pressed(ebiten.KeyC, cur) {
		v.copyDump()
	}
	if v.pressed(ebiten.KeyPeriod, cur) && v.speed < 16 {
		v.speed *= 2
	}
	if v.pressed(ebiten.KeyComma, cur) && v.speed > 1 {
		v.speed /= 2
	}
	if v.pressed(ebiten.KeyEqual, cur) {
		v.cam = v.cam.zoom(1.25)
	}
	if v.pressed(ebiten.KeyMinus, cur) {
		v.cam = v.cam.zoom(1 / 1.25)
	}

	const panStep = 8.0
	if ebiten.IsKeyPressed(ebiten.KeyW) || ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
		v.cam = v.cam.pan(0, -panStep)
	}
	if ebiten.IsKeyPressed(ebiten.KeyS) || ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		v.cam = v.cam.pan(0, panStep)
	}
	if ebiten.IsKeyPressed(ebiten.KeyA) || ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
		v.cam = v.cam.pan(-panStep, 0)
	}
	if ebiten.IsKeyPressed(ebiten.KeyD) || ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		v.cam = v.cam.pan(panStep, 0)
	}

	v.prevKeys = cur
}

// copyDump puts the subject's grid dump on the clipboard.
func (v *Viewer) copyDump() {
	o, ok := v.subject()
	if !ok || o.Handle.IsZero() {
		v.status = "nothing to dump"
		return
	}
	dump := v.ts.Nav.Dump(o.Handle, dumpRadius)
	if dump == "" {
		v.status = "attempt finished, grid released"
		return
	}
	if err := clipboard.WriteAll(dump); err != nil {
		v.status = "clipboard: " + err.Error()
		v.logger.Warn("clipboard write failed", "err", err)
		return
	}
	v.status = fmt.Sprintf("copied grid dump (%d bytes)", len(dump))
}

func (v *Viewer) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 12, G: 14, B: 12, A: 255})
	vector.FillRect(screen, borderWidth, borderWidth, float32(v.viewW), float32(v.viewH), color.RGBA{R: 28, G: 36, B: 30, A: 255}, false)

	v.drawFeatures(screen)
	v.drawOverlay(screen)
	v.drawObjects(screen)
	v.drawChain(screen)
	v.drawUnits(screen)

	vector.StrokeRect(screen, borderWidth-1, borderWidth-1, float32(v.viewW+2), float32(v.viewH+2), 2.0, color.RGBA{R: 65, G: 90, B: 65, A: 255}, false)
	v.log.draw(screen, v.width-logPanelWidth, v.height)
	v.drawHUD(screen)
}

func (v *Viewer) drawFeatures(screen *ebiten.Image) {
	for _, f := range v.ts.Terrain.Features() {
		x, y := v.cam.toScreen(mgl64.Vec3{f.X, 0, f.Z})
		vector.FillCircle(screen, x, y, v.cam.length(f.Radius), featureColors[f.Kind], true)
	}
}

func (v *Viewer) drawOverlay(screen *ebiten.Image) {
	o, ok := v.subject()
	if !ok || o.Handle.IsZero() {
		return
	}
	if v.overTick != v.ts.Tick {
		if cells := v.ts.Nav.Overlay(o.Handle, dumpRadius); cells != nil {
			v.overlay = cells
		}
		v.overTick = v.ts.Tick
	}
	cs := v.ts.Config.Grid.CellSize
	side := v.cam.length(cs)
	for _, c := range v.overlay {
		x, y := v.cam.toScreen(c.Center.Sub(mgl64.Vec3{cs / 2, 0, cs / 2}))
		col := color.RGBA{R: 160, G: 40, B: 40, A: 90}
		if c.Claimed {
			col = color.RGBA{R: 200, G: 200, B: 60, A: 70}
		}
		vector.FillRect(screen, x, y, side, side, col, false)
	}
}

func (v *Viewer) drawObjects(screen *ebiten.Image) {
	for _, o := range v.ts.World.Objects() {
		x, y := v.cam.toScreen(o.Pos)
		col := color.RGBA{R: 110, G: 104, B: 92, A: 255}
		switch {
		case o.Ghost:
			col = color.RGBA{R: 110, G: 104, B: 92, A: 80}
		case o.Kind == nav.KindCargo:
			col = color.RGBA{R: 200, G: 160, B: 60, A: 255}
		case o.Kind == nav.KindFlora:
			col = color.RGBA{R: 60, G: 150, B: 70, A: 255}
		case o.Installation != nav.InstallNone:
			col = color.RGBA{R: 150, G: 150, B: 190, A: 255}
		}
		vector.FillCircle(screen, x, y, v.cam.length(o.Radius), col, true)
	}
}

func (v *Viewer) drawChain(screen *ebiten.Image) {
	o, ok := v.subject()
	if !ok {
		return
	}
	snap, ok := v.ts.Nav.Snapshot(o.Handle)
	if !ok || len(snap.Chain) == 0 {
		return
	}
	for i := 1; i < len(snap.Chain); i++ {
		x0, y0 := v.cam.toScreen(snap.Chain[i-1])
		x1, y1 := v.cam.toScreen(snap.Chain[i])
		col := color.RGBA{R: 90, G: 140, B: 220, A: 200}
		if i <= snap.Index {
			col = color.RGBA{R: 70, G: 80, B: 100, A: 160}
		}
		vector.StrokeLine(screen, x0, y0, x1, y1, 1.5, col, true)
	}
	for i, p := range snap.Chain {
		x, y := v.cam.toScreen(p)
		r := float32(2.5)
		if i == snap.Index {
			r = 4
		}
		vector.FillCircle(screen, x, y, r, color.RGBA{R: 140, G: 190, B: 255, A: 255}, true)
	}
}

func (v *Viewer) drawUnits(screen *ebiten.Image) {
	for _, u := range v.ts.World.Units() {
		tr := u.Trail()
		for i := 1; i < len(tr); i++ {
			x0, y0 := v.cam.toScreen(tr[i-1])
			x1, y1 := v.cam.toScreen(tr[i])
			vector.StrokeLine(screen, x0, y0, x1, y1, 1.0, color.RGBA{R: 200, G: 200, B: 200, A: 60}, false)
		}

		p := u.Position()
		x, y := v.cam.toScreen(p)
		r := v.cam.length(u.Profile().Radius)
		if r < 3 {
			r = 3
		}
		body := color.RGBA{R: 70, G: 110, B: 210, A: 255}
		if u.ID() == v.sc.Subject {
			body = color.RGBA{R: 230, G: 200, B: 70, A: 255}
		}
		if u.Colliding() {
			body = color.RGBA{R: 220, G: 70, B: 70, A: 255}
		}
		vector.FillCircle(screen, x, y, r, body, true)
		hx, hy := v.cam.toScreen(p.Add(mgl64.Vec3{math.Cos(u.Heading()), 0, math.Sin(u.Heading())}.Mul(u.Profile().Radius * 1.6)))
		vector.StrokeLine(screen, x, y, hx, hy, 1.5, color.White, true)
		ebitenutil.DebugPrintAt(screen, u.Label(), int(x)+int(r)+2, int(y)-8)
	}
}

func (v *Viewer) drawHUD(screen *ebiten.Image) {
	phase := "idle"
	if o, ok := v.subject(); ok {
		if p, ok := v.ts.Nav.Phase(o.Handle); ok {
			phase = p.String()
		} else if o.Err != nil {
			phase = "refused: " + o.Err.Error()
		}
	}
	state := "running"
	if v.paused {
		state = "paused"
	}
	lines := []string{
		fmt.Sprintf("%s seed=%d  T=%d  x%d  %s", v.sc.Name, v.seed, v.ts.Tick, v.speed, state),
		fmt.Sprintf("U%d phase: %s", v.sc.Subject, phase),
		v.status,
		"[space] pause  [R] restart  [C] copy grid  [,/.] speed  [-/=] zoom  [WASD] pan",
	}
	for i, l := range lines {
		ebitenutil.DebugPrintAt(screen, l, borderWidth+6, borderWidth+6+i*16)
	}
}

func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return v.width, v.height
}
