package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Button triggers a one-shot swarm command, such as a kickstart.
type Button struct {
	Label string
	X, Y  float64
	W, H  float64

	// OnClick runs once per press.
	OnClick func()

	Fill        color.RGBA
	HoverFill   color.RGBA
	PressedFill color.RGBA
}

func NewButton(x, y, width, height float64, label string, onClick func()) *Button {
	return &Button{
		Label:       label,
		X:           x,
		Y:           y,
		W:           width,
		H:           height,
		OnClick:     onClick,
		Fill:        color.RGBA{R: 70, G: 95, B: 140, A: 255},
		HoverFill:   color.RGBA{R: 90, G: 125, B: 185, A: 255},
		PressedFill: color.RGBA{R: 45, G: 65, B: 100, A: 255},
	}
}

func (b *Button) Height() float64 { return b.H + 8 }
func (b *Button) SetY(y float64)  { b.Y = y }

func (b *Button) box() hitBox { return hitBox{X: b.X, Y: b.Y, W: b.W, H: b.H} }

func (b *Button) Update() {
	if b.box().clicked() && b.OnClick != nil {
		b.OnClick()
	}
}

// Draw renders the button with its label centered. The fill darkens while the
// button is held down.
func (b *Button) Draw(screen *ebiten.Image) {
	fill, border := b.Fill, frameColor
	if b.box().hovered() {
		fill, border = b.HoverFill, focusColor
		if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
			fill = b.PressedFill
		}
	}
	x, y, w, h := float32(b.X), float32(b.Y), float32(b.W), float32(b.H)
	vector.FillRect(screen, x, y, w, h, fill, true)
	vector.StrokeRect(screen, x, y, w, h, 1, border, true)

	textX := b.X + (b.W-float64(len(b.Label)*debugGlyphWidth))/2
	ebitenutil.DebugPrintAt(screen, b.Label, int(max(b.X+4, textX)), int(b.Y+b.H/2-8))
}
