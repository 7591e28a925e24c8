package boundary

import "image"

// edgeMagnitude is the Sobel gradient magnitude above which a pixel counts as
// an edge.
const edgeMagnitude = 128

// EdgeCount returns the number of edge pixels in img using the Sobel operator.
// The one-pixel border is ignored.
func EdgeCount(img *image.Gray) int {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}
	at := func(x, y int) int {
		return int(img.Pix[y*img.Stride+x])
	}
	const threshold = edgeMagnitude * edgeMagnitude
	count := 0
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			if gx*gx+gy*gy > threshold {
				count++
			}
		}
	}
	return count
}
