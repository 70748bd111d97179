package recorder

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nfnt/resize"
)

// GIFOptions configures GIF generation
type GIFOptions struct {
	MaxWidth  uint
	NoCursor  bool
	MinDelay  time.Duration // shortest per-frame delay; GIF timing is in 1/100s
	HoldFinal time.Duration // how long the last frame stays up
}

// EncodeGIF renders the frames of m into a GIF at out and returns its size.
// Per-frame delays follow the capture timestamps.
func EncodeGIF(m Manifest, out string, opts GIFOptions) (int64, error) {
	if len(m.Frames) == 0 {
		return 0, fmt.Errorf("recording has no frames")
	}
	if opts.MaxWidth == 0 {
		opts.MaxWidth = 800
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = 20 * time.Millisecond
	}
	if opts.HoldFinal <= 0 {
		opts.HoldFinal = time.Second
	}

	first, err := loadFrame(m.Dir, m.Frames[0].File)
	if err != nil {
		return 0, err
	}

	// Determine output size, maintaining aspect ratio
	bounds := first.Bounds()
	outputWidth := opts.MaxWidth
	if uint(bounds.Dx()) < outputWidth {
		outputWidth = uint(bounds.Dx())
	}
	outputHeight := uint(float64(outputWidth) * float64(bounds.Dy()) / float64(bounds.Dx()))

	// Cursor positions are CSS pixels; frames may be device pixels.
	scale := float64(outputWidth) / float64(bounds.Dx())
	if m.ViewportWidth > 0 {
		scale = float64(outputWidth) / float64(m.ViewportWidth)
	}

	g := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(m.Frames)),
		Delay:     make([]int, 0, len(m.Frames)),
		LoopCount: 0, // Infinite loop
	}

	palette := generatePalette(first)

	for i, f := range m.Frames {
		img := first
		if i > 0 {
			if img, err = loadFrame(m.Dir, f.File); err != nil {
				return 0, err
			}
		}

		resized := resize.Resize(outputWidth, outputHeight, img, resize.Lanczos3)
		if !opts.NoCursor {
			resized = stampCursor(resized, image.Pt(int(f.Cursor.X*scale), int(f.Cursor.Y*scale)))
		}

		paletted := image.NewPaletted(resized.Bounds(), palette)
		draw.FloydSteinberg.Draw(paletted, resized.Bounds(), resized, image.Point{})

		g.Image = append(g.Image, paletted)
		g.Delay = append(g.Delay, frameDelay(m.Frames, i, opts))
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return 0, err
	}
	file, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	if err := gif.EncodeAll(file, g); err != nil {
		return 0, err
	}

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// frameDelay returns the display time of frame i in 1/100s.
func frameDelay(frames []Frame, i int, opts GIFOptions) int {
	d := opts.HoldFinal
	if i+1 < len(frames) {
		d = frames[i+1].At.Sub(frames[i].At)
	}
	if d < opts.MinDelay {
		d = opts.MinDelay
	}
	return int(d / (10 * time.Millisecond))
}

func loadFrame(dir, name string) (image.Image, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", name, err)
	}
	return img, nil
}

// generatePalette builds a 256-color palette from the most frequent colors of img
func generatePalette(img image.Image) color.Palette {
	bounds := img.Bounds()
	counts := make(map[color.RGBA]int)

	// Sample every 4th pixel for performance
	step := 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, _ := img.At(x, y).RGBA()
			counts[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}]++
		}
	}

	type colorCount struct {
		c     color.RGBA
		count int
	}
	colors := make([]colorCount, 0, len(counts))
	for c, n := range counts {
		colors = append(colors, colorCount{c, n})
	}
	sort.Slice(colors, func(i, j int) bool {
		if colors[i].count != colors[j].count {
			return colors[i].count > colors[j].count
		}
		return rgbaKey(colors[i].c) < rgbaKey(colors[j].c)
	})

	palette := make(color.Palette, 0, 256)
	// The cursor sprite always needs pure black and white.
	palette = append(palette, cursorOutline, cursorFill)
	for i := 0; i < len(colors) && len(palette) < 256; i++ {
		palette = append(palette, colors[i].c)
	}
	// Pad with grayscale
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}

func rgbaKey(c color.RGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}
