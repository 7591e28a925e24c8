// Package vision runs the visual half of lecture analysis: it samples frames
// from the video, partitions them into slide intervals with the boundary
// detector, stores each slide's representative frame, and asks a vision
// model to transcribe the slide into markdown with LaTeX.
//
// Slides are processed one at a time in interval order so the extracted
// texts stay index-paired with the intervals.
package vision
