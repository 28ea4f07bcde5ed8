package main

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"

	"github.com/Garsondee/Nav-Sense/internal/nav"
)

const (
	logPanelWidth = 360
	logMaxEntries = 80
	logLineHeight = 14
)

var logFace = text.NewGoXFace(basicfont.Face7x13)

// categoryColors tints log lines by event category.
var categoryColors = map[string]color.RGBA{
	nav.CatNav:      {R: 220, G: 220, B: 220, A: 255},
	nav.CatPhase:    {R: 120, G: 200, B: 120, A: 255},
	nav.CatPlan:     {R: 110, G: 160, B: 230, A: 255},
	nav.CatTraverse: {R: 170, G: 170, B: 140, A: 255},
	nav.CatRecover:  {R: 235, G: 150, B: 60, A: 255},
}

// phaseLog is a ring buffer of the latest navigation events.
type phaseLog struct {
	entries []nav.Event
	head    int
	count   int
}

func newPhaseLog() *phaseLog {
	return &phaseLog{entries: make([]nav.Event, logMaxEntries)}
}

func (pl *phaseLog) add(e nav.Event) {
	pl.entries[pl.head] = e
	pl.head = (pl.head + 1) % logMaxEntries
	if pl.count < logMaxEntries {
		pl.count++
	}
}

// recent returns entries oldest first.
func (pl *phaseLog) recent() []nav.Event {
	out := make([]nav.Event, pl.count)
	for i := 0; i < pl.count; i++ {
		out[i] = pl.entries[(pl.head-pl.count+i+logMaxEntries)%logMaxEntries]
	}
	return out
}

func (pl *phaseLog) reset() {
	pl.head, pl.count = 0, 0
}

func logLine(e nav.Event) string {
	return fmt.Sprintf("%4d %-4s %s/%s %s", e.Tick, e.Unit, e.Category, e.Key, e.Value)
}

// draw renders the panel at panelX, newest entry at the bottom.
func (pl *phaseLog) draw(screen *ebiten.Image, panelX, panelH int) {
	x := float32(panelX)
	vector.FillRect(screen, x, 0, logPanelWidth, float32(panelH), color.RGBA{R: 10, G: 12, B: 14, A: 248}, false)
	vector.StrokeLine(screen, x, 0, x, float32(panelH), 1.0, color.RGBA{R: 50, G: 60, B: 80, A: 255}, false)
	vector.FillRect(screen, x, 0, logPanelWidth, 18, color.RGBA{R: 20, G: 26, B: 36, A: 255}, false)
	drawText(screen, "NAVIGATION LOG", panelX+8, 3, color.RGBA{R: 200, G: 210, B: 230, A: 255})

	entries := pl.recent()
	maxVisible := (panelH - 24) / logLineHeight
	if len(entries) > maxVisible {
		entries = entries[len(entries)-maxVisible:]
	}
	y := 22
	for i, e := range entries {
		if i >= len(entries)-3 {
			vector.FillRect(screen, x+2, float32(y), logPanelWidth-4, logLineHeight, color.RGBA{R: 28, G: 34, B: 46, A: 160}, false)
		}
		col, ok := categoryColors[e.Category]
		if !ok {
			col = color.RGBA{R: 150, G: 150, B: 150, A: 255}
		}
		drawText(screen, logLine(e), panelX+6, y, col)
		y += logLineHeight
	}
}

func drawText(dst *ebiten.Image, s string, x, y int, col color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleWithColor(col)
	text.Draw(dst, s, logFace, op)
}
