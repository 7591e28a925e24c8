package boundary

import (
	"image"

	"golang.org/x/image/draw"
)

// toGray reduces img to 8-bit luminance, downscaling to maxWidth (keeping the
// aspect ratio) when the frame is wider. maxWidth <= 0 keeps native size.
func toGray(img image.Image, maxWidth int) *image.Gray {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxWidth > 0 && width > maxWidth {
		height = max(1, height*maxWidth/width)
		width = maxWidth
		gray := image.NewGray(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, bounds, draw.Src, nil)
		return gray
	}
	gray := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// resizeGray scales src to exactly width x height.
func resizeGray(src *image.Gray, width, height int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func sameSize(a, b *image.Gray) bool {
	return a.Bounds().Dx() == b.Bounds().Dx() && a.Bounds().Dy() == b.Bounds().Dy()
}
