// Package frames samples still images from a lecture video at a fixed
// interval using ffmpeg and hands them to the boundary detector.
package frames
