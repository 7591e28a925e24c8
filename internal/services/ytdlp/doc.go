// Package ytdlp downloads remote lecture videos with the yt-dlp executable.
//
// A Fetcher merges the best video and audio streams into a single MP4 under a
// caller-owned directory and reports the resulting path. Command execution is
// pluggable so tests can simulate downloads without the binary.
package ytdlp
