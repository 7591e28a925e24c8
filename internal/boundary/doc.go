// Package boundary partitions a sampled lecture frame stream into slide
// intervals.
//
// Two signals run over grayscale frames. Structural similarity against the
// open interval's reference frame detects slide changes; an edge-pixel count
// tracked by PeakTracker detects progressive reveals (content written onto a
// slide and then cleared) inside a visually stable slide. Frames that cannot
// be decoded are skipped with a warning so one corrupt sample never discards a
// lecture.
package boundary
