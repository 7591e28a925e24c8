package boundary

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// Frame is one sampled still image. Image may be nil, in which case Path is
// decoded when the detector reaches the frame.
type Frame struct {
	Ordinal   int         `json:"ordinal"`
	Timestamp float64     `json:"timestamp_sec"`
	Path      string      `json:"path,omitempty"`
	Image     image.Image `json:"-"`
}

// SlideInterval is a contiguous span attributed to one visually stable slide.
type SlideInterval struct {
	SlideNumber int     `json:"slide_number"`
	Lineage     int     `json:"lineage"`
	StartSec    float64 `json:"start_sec"`
	EndSec      float64 `json:"end_sec"`
	Frame       Frame   `json:"representative_frame"`
	// TransitionScore is the similarity that opened the interval; nil for the
	// first interval and for reveal continuations.
	TransitionScore *float64 `json:"transition_score,omitempty"`
	// Reveal marks an interval opened by peak detection. It shares its lineage
	// with the slide it continues.
	Reveal bool `json:"reveal,omitempty"`
}

// Duration returns the interval length in seconds.
func (s SlideInterval) Duration() float64 {
	return s.EndSec - s.StartSec
}

var errEmptyFrame = errors.New("frame has no pixels")

// Load returns the frame image, decoding Path when Image is unset.
func (f Frame) Load() (image.Image, error) {
	img := f.Image
	if img == nil {
		if f.Path == "" {
			return nil, errEmptyFrame
		}
		file, err := os.Open(f.Path)
		if err != nil {
			return nil, fmt.Errorf("open frame: %w", err)
		}
		defer file.Close()
		decoded, _, err := image.Decode(file)
		if err != nil {
			return nil, fmt.Errorf("decode frame %s: %w", f.Path, err)
		}
		img = decoded
	}
	if img.Bounds().Empty() {
		return nil, errEmptyFrame
	}
	return img, nil
}
