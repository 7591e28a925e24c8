// Package audio picks the audio stream a lecture recording should be
// transcribed from.
//
// Lecture captures often carry several tracks (a room microphone, a lapel
// mic, an interpreter). Select prefers a stream in the requested language,
// then the container's default stream, then the one with the most channels,
// and finally the first audio stream.
package audio
