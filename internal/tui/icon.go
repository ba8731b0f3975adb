package tui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderIcon draws img as cols×rows terminal cells using upper half blocks,
// two source pixels per cell. Transparent pixels are left blank.
func renderIcon(img image.Image, cols, rows int) string {
	if img == nil || cols <= 0 || rows <= 0 {
		return ""
	}
	b := img.Bounds()
	if b.Empty() {
		return ""
	}

	sample := func(x, y, w, h int) (lipgloss.Color, bool) {
		px := b.Min.X + x*b.Dx()/w
		py := b.Min.Y + y*b.Dy()/h
		r, g, bl, a := img.At(px, py).RGBA()
		if a < 0x8000 {
			return "", false
		}
		return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r>>8, g>>8, bl>>8)), true
	}

	lines := make([]string, 0, rows)
	for y := 0; y < rows; y++ {
		var line strings.Builder
		for x := 0; x < cols; x++ {
			top, topOK := sample(x, 2*y, cols, 2*rows)
			bottom, bottomOK := sample(x, 2*y+1, cols, 2*rows)
			style := lipgloss.NewStyle()
			switch {
			case topOK && bottomOK:
				line.WriteString(style.Foreground(top).Background(bottom).Render("▀"))
			case topOK:
				line.WriteString(style.Foreground(top).Render("▀"))
			case bottomOK:
				line.WriteString(style.Foreground(bottom).Render("▄"))
			default:
				line.WriteString(" ")
			}
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}
