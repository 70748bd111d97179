package recorder

import (
	"image"
	"image/color"
	"image/draw"
)

// Screencast frames do not include the OS pointer, so it is drawn back in.
var (
	cursorOutline = color.RGBA{0, 0, 0, 255}
	cursorFill    = color.RGBA{255, 255, 255, 255}
)

// cursorSprite is the arrow pointer with its hotspot at the top-left corner.
// '#' is outline, '.' is fill, anything else is transparent.
var cursorSprite = []string{
	"#",
	"##",
	"#.#",
	"#..#",
	"#...#",
	"#....#",
	"#.....#",
	"#......#",
	"#.......#",
	"#........#",
	"#.........#",
	"#......####",
	"#...#..#",
	"#..# #..#",
	"#.#  #..#",
	"##    #..#",
	"#     #..#",
	"       ##",
}

// stampCursor returns a copy of frame with the pointer at hotspot. The origin
// means the pointer has not moved yet and leaves the frame bare.
func stampCursor(frame image.Image, hotspot image.Point) image.Image {
	bounds := frame.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame, bounds.Min, draw.Src)

	if hotspot == (image.Point{}) {
		return out
	}

	for dy, row := range cursorSprite {
		for dx, px := range row {
			var c color.RGBA
			switch px {
			case '#':
				c = cursorOutline
			case '.':
				c = cursorFill
			default:
				continue
			}
			if p := hotspot.Add(image.Pt(dx, dy)); p.In(bounds) {
				out.SetRGBA(p.X, p.Y, c)
			}
		}
	}
	return out
}
