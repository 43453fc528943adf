// Package ui holds the few ebiten widgets the viewer needs: sliders,
// checkboxes and buttons stacked in a scrollable panel.
package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

const (
	titleHeight   = 30.0
	sectionHeight = 25.0
	labelHeight   = 15.0
)

// Widget is implemented by everything a Panel can hold.
type Widget interface {
	Update()
	Draw(screen *ebiten.Image)
	Height() float64
	SetY(y float64)
}

// Section is a titled group of consecutive widgets.
type Section struct {
	Title      string
	StartIndex int // Widget index where this section starts
	EndIndex   int // Widget index where this section ends (exclusive)
}

// Panel manages a collection of widgets in a scrollable column.
type Panel struct {
	X, Y          float64
	Width, Height float64
	Title         string
	Widgets       []Widget
	Labels        []string
	ScrollOffset  float64

	BGColor     color.RGBA
	BorderColor color.RGBA

	sections []Section
}

// NewPanel creates an empty panel.
func NewPanel(x, y, width, height float64, title string) *Panel {
	return &Panel{
		X:           x,
		Y:           y,
		Width:       width,
		Height:      height,
		Title:       title,
		BGColor:     color.RGBA{R: 40, G: 40, B: 45, A: 230},
		BorderColor: color.RGBA{R: 100, G: 100, B: 110, A: 255},
	}
}

// AddSection starts a section. Widgets added afterwards belong to it.
func (p *Panel) AddSection(title string) {
	p.EndSection()
	p.sections = append(p.sections, Section{Title: title, StartIndex: len(p.Widgets), EndIndex: len(p.Widgets)})
}

// EndSection closes the current section
func (p *Panel) EndSection() {
	if len(p.sections) > 0 {
		p.sections[len(p.sections)-1].EndIndex = len(p.Widgets)
	}
}

func (p *Panel) add(label string, w Widget) {
	w.SetY(p.Y + p.contentHeight() + labelHeight)
	p.Widgets = append(p.Widgets, w)
	p.Labels = append(p.Labels, label)
	p.EndSection()
}

// AddSlider adds a slider widget to the panel
func (p *Panel) AddSlider(label string, min, max, value float64, onChange func(float64)) *Slider {
	s := NewSlider(p.X+10, 0, p.Width-20, label, min, max, value)
	s.OnChange = onChange
	p.add(label, s)
	return s
}

// AddCheckbox adds a checkbox widget to the panel
func (p *Panel) AddCheckbox(label string, value bool, onChange func(bool)) *Checkbox {
	c := NewCheckbox(p.X+10, 0, label, value)
	c.OnChange = onChange
	p.add(label, c)
	return c
}

// AddButton adds a button widget to the panel
func (p *Panel) AddButton(label string, onClick func()) *Button {
	b := NewButton(p.X+10, 0, p.Width-20, 18, label, onClick)
	p.add("", b)
	return b
}

// contentHeight is the unscrolled height of the title, sections and widgets.
func (p *Panel) contentHeight() float64 {
	h := titleHeight + float64(len(p.sections))*sectionHeight
	for _, w := range p.Widgets {
		h += w.Height()
	}
	return h
}

// Contains reports whether a screen point falls on the panel.
func (p *Panel) Contains(x, y int) bool {
	fx, fy := float64(x), float64(y)
	return fx >= p.X && fx <= p.X+p.Width && fy >= p.Y && fy <= p.Y+p.Height
}

// Update handles scrolling and input for all widgets
func (p *Panel) Update() {
	if _, dy := ebiten.Wheel(); dy != 0 {
		maxScroll := max(0, p.contentHeight()-p.Height+40)
		p.ScrollOffset = min(maxScroll, max(0, p.ScrollOffset-dy*20))
	}
	for _, w := range p.Widgets {
		w.Update()
	}
}

// Draw renders the panel and all widgets
func (p *Panel) Draw(screen *ebiten.Image) {
	vector.FillRect(screen,
		float32(p.X), float32(p.Y),
		float32(p.Width), float32(p.Height),
		p.BGColor, true)
	vector.StrokeRect(screen,
		float32(p.X), float32(p.Y),
		float32(p.Width), float32(p.Height),
		2, p.BorderColor, true)
	ebitenutil.DebugPrintAt(screen, p.Title, int(p.X+10), int(p.Y+5))

	currentY := p.Y + titleHeight - p.ScrollOffset
	visible := func(y float64) bool { return y >= p.Y && y <= p.Y+p.Height-20 }

	for _, section := range p.sections {
		if visible(currentY) {
			vector.FillRect(screen,
				float32(p.X+5), float32(currentY),
				float32(p.Width-10), 20,
				color.RGBA{R: 60, G: 60, B: 70, A: 255}, true)
			ebitenutil.DebugPrintAt(screen, section.Title, int(p.X+10), int(currentY+5))
		}
		currentY += sectionHeight

		for i := section.StartIndex; i < section.EndIndex; i++ {
			w := p.Widgets[i]
			// widgets move with the scroll so that their hit boxes follow
			w.SetY(currentY + labelHeight)
			if visible(currentY) {
				ebitenutil.DebugPrintAt(screen, p.Labels[i], int(p.X+10), int(currentY))
				w.Draw(screen)
			}
			currentY += w.Height()
		}
	}
}
