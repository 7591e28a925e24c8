package boundary

import "image"

const (
	ssimWindow = 8
	ssimC1     = (0.01 * 255) * (0.01 * 255)
	ssimC2     = (0.03 * 255) * (0.03 * 255)
)

// SSIM returns the mean structural similarity of two equally sized grayscale
// images over non-overlapping 8x8 windows. Identical images score 1.
func SSIM(a, b *image.Gray) float64 {
	ab, bb := a.Bounds(), b.Bounds()
	width, height := min(ab.Dx(), bb.Dx()), min(ab.Dy(), bb.Dy())
	if width == 0 || height == 0 {
		return 0
	}

	var total float64
	var windows int
	for y0 := 0; y0 < height; y0 += ssimWindow {
		for x0 := 0; x0 < width; x0 += ssimWindow {
			x1, y1 := min(x0+ssimWindow, width), min(y0+ssimWindow, height)
			total += windowSSIM(a, b, x0, y0, x1, y1)
			windows++
		}
	}
	return total / float64(windows)
}

// windowSSIM works in coordinates relative to each image's origin.
func windowSSIM(a, b *image.Gray, x0, y0, x1, y1 int) float64 {
	n := float64((x1 - x0) * (y1 - y0))
	var sumA, sumB, sumAA, sumBB, sumAB float64
	for y := y0; y < y1; y++ {
		rowA := a.Pix[y*a.Stride:]
		rowB := b.Pix[y*b.Stride:]
		for x := x0; x < x1; x++ {
			pa := float64(rowA[x])
			pb := float64(rowB[x])
			sumA += pa
			sumB += pb
			sumAA += pa * pa
			sumBB += pb * pb
			sumAB += pa * pb
		}
	}
	meanA, meanB := sumA/n, sumB/n
	varA := sumAA/n - meanA*meanA
	varB := sumBB/n - meanB*meanB
	cov := sumAB/n - meanA*meanB

	num := (2*meanA*meanB + ssimC1) * (2*cov + ssimC2)
	den := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
	return num / den
}
