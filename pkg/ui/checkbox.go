package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// debugGlyphWidth is the advance of the ebitenutil debug font.
const debugGlyphWidth = 6

var (
	frameColor = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	focusColor = color.RGBA{R: 255, G: 220, B: 120, A: 255}
	tickColor  = color.RGBA{R: 110, G: 210, B: 120, A: 255}
)

// hitBox is the clickable area of a widget.
type hitBox struct {
	X, Y, W, H float64
}

func (b hitBox) hovered() bool {
	mx, my := ebiten.CursorPosition()
	x, y := float64(mx), float64(my)
	return x >= b.X && x <= b.X+b.W && y >= b.Y && y <= b.Y+b.H
}

// clicked reports a left press that started on the box this tick.
func (b hitBox) clicked() bool {
	return inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) && b.hovered()
}

// Checkbox toggles a live boolean setting of the swarm, such as infection
// spread or pyramid collapse.
type Checkbox struct {
	Label string
	Value bool
	X, Y  float64
	Size  float64

	// OnChange, when set, is called with the new value after a toggle.
	OnChange func(bool)
}

func NewCheckbox(x, y float64, label string, value bool) *Checkbox {
	return &Checkbox{Label: label, Value: value, X: x, Y: y, Size: 14}
}

func (c *Checkbox) Height() float64 { return c.Size + 6 }
func (c *Checkbox) SetY(y float64)  { c.Y = y }

func (c *Checkbox) box() hitBox { return hitBox{X: c.X, Y: c.Y, W: c.Size, H: c.Size} }

// Update flips the value when the box is clicked.
func (c *Checkbox) Update() {
	if !c.box().clicked() {
		return
	}
	c.Value = !c.Value
	if c.OnChange != nil {
		c.OnChange(c.Value)
	}
}

// Draw renders the box, a tick when set, and the state next to it.
func (c *Checkbox) Draw(screen *ebiten.Image) {
	x, y, s := float32(c.X), float32(c.Y), float32(c.Size)
	border := frameColor
	if c.box().hovered() {
		border = focusColor
	}
	vector.StrokeRect(screen, x, y, s, s, 1.5, border, true)

	state := "off"
	if c.Value {
		state = "on"
		vector.StrokeLine(screen, x+s*0.2, y+s*0.55, x+s*0.42, y+s*0.78, 2, tickColor, true)
		vector.StrokeLine(screen, x+s*0.42, y+s*0.78, x+s*0.82, y+s*0.22, 2, tickColor, true)
	}
	ebitenutil.DebugPrintAt(screen, state, int(c.X+c.Size+8), int(c.Y-1))
}
