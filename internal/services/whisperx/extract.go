package whisperx

import "fmt"

// extractArgs builds the ffmpeg arguments that turn one audio stream of
// source into a mono 16 kHz WAV file suitable for WhisperX.
func extractArgs(source string, audioIndex int, dest string) ([]string, error) {
	if audioIndex < 0 {
		return nil, fmt.Errorf("extract audio: invalid audio stream index %d", audioIndex)
	}
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", fmt.Sprintf("0:%d", audioIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}, nil
}
