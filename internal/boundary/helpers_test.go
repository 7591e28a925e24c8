package boundary_test

import (
	"image"
	"image/color"

	"lecturenote/internal/boundary"
)

const canvas = 128

// slideWithMarks returns a white canvas with n 4x4 black marks, each placed
// inside its own 16x16 cell so marks never touch.
func slideWithMarks(n int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, canvas, canvas))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for k := 0; k < n; k++ {
		cx := (k % 8) * 16
		cy := (k / 8) * 16
		for y := cy + 2; y < cy+6; y++ {
			for x := cx + 2; x < cx+6; x++ {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return img
}

// splitSlide returns a canvas whose left half is white and right half black,
// or the inverse when inverted is true.
func splitSlide(inverted bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, canvas, canvas))
	for y := 0; y < canvas; y++ {
		for x := 0; x < canvas; x++ {
			white := x < canvas/2
			if inverted {
				white = !white
			}
			if white {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func framesAt(timestamps []float64, images ...image.Image) []boundary.Frame {
	frames := make([]boundary.Frame, len(timestamps))
	for i, ts := range timestamps {
		frames[i] = boundary.Frame{Ordinal: i, Timestamp: ts, Image: images[i]}
	}
	return frames
}
