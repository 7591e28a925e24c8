package speech_test

import (
	"context"
	"errors"
	"testing"

	"lecturenote/internal/logging"
	"lecturenote/internal/media/ffprobe"
	"lecturenote/internal/services"
	"lecturenote/internal/speech"
	"lecturenote/internal/transcript"
)

type fakeTranscriber struct {
	extractedIndex int
	transcribeErr  error
}

func (f *fakeTranscriber) ExtractAudio(ctx context.Context, source string, audioIndex int, dest string) error {
	f.extractedIndex = audioIndex
	return nil
}

func (f *fakeTranscriber) TranscribeFile(ctx context.Context, source, outputDir string) (transcript.Transcript, error) {
	if f.transcribeErr != nil {
		return transcript.Transcript{}, f.transcribeErr
	}
	return transcript.New([]transcript.Span{{Start: 0, End: 3, Text: "hello"}}, "en"), nil
}

var lectureStreams = []ffprobe.Stream{
	{Index: 0, CodecType: "video"},
	{Index: 1, CodecType: "audio", Tags: map[string]string{"language": "eng"}},
}

func TestRunTranscribesSelectedStream(t *testing.T) {
	fake := &fakeTranscriber{}
	phase := speech.NewPhase(fake, "en", t.TempDir(), logging.NewNop())
	var last float64
	result, err := phase.Run(context.Background(), speech.Input{TaskID: "t1", VideoPath: "/v.mp4", Streams: lectureStreams}, func(v float64) { last = v })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fake.extractedIndex != 1 || result.Text != "hello" || last != 1 {
		t.Fatalf("unexpected run: index=%d result=%+v progress=%v", fake.extractedIndex, result, last)
	}
}

func TestRunWithoutAudioIsEmpty(t *testing.T) {
	phase := speech.NewPhase(&fakeTranscriber{}, "", t.TempDir(), logging.NewNop())
	result, err := phase.Run(context.Background(), speech.Input{TaskID: "t2", Streams: lectureStreams[:1]}, nil)
	if err != nil || !result.Empty() {
		t.Fatalf("expected empty transcript, got %+v, %v", result, err)
	}
}

func TestRunWithoutProviderIsEmpty(t *testing.T) {
	phase := speech.NewPhase(nil, "", t.TempDir(), logging.NewNop())
	if phase.Available() {
		t.Fatal("expected provider unavailable")
	}
	result, err := phase.Run(context.Background(), speech.Input{TaskID: "t3", Streams: lectureStreams}, nil)
	if err != nil || !result.Empty() {
		t.Fatalf("expected empty transcript, got %+v, %v", result, err)
	}
}

func TestRunWrapsProviderFailure(t *testing.T) {
	phase := speech.NewPhase(&fakeTranscriber{transcribeErr: errors.New("cuda out of memory")}, "", t.TempDir(), logging.NewNop())
	_, err := phase.Run(context.Background(), speech.Input{TaskID: "t4", Streams: lectureStreams}, nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
