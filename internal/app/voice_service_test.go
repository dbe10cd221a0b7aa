package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gopherai-insect/internal/ai"
	"gopherai-insect/internal/pkg/fieldextract"
	"gopherai-insect/internal/storage/localfs"
)

type fakeTTS struct {
	voices     []ai.Voice
	listErr    error
	listCalls  int
	lastSpeech ai.SpeechRequest
}

func (f *fakeTTS) Synthesize(_ context.Context, _ string, in ai.SpeechRequest) ([]byte, error) {
	f.lastSpeech = in
	return []byte("ID3 fake mp3"), nil
}

func (f *fakeTTS) ListVoices(context.Context, string, string) ([]ai.Voice, error) {
	f.listCalls++
	return f.voices, f.listErr
}

var voiceDefaults = VoiceDefaults{
	LanguageCode: "ko-KR",
	VoiceName:    "ko-KR-Standard-A",
	SpeakingRate: 0.9,
	Pitch:        2.0,
}

func newVoiceService(t *testing.T, tts SpeechSynthesizer, key string) (*VoiceService, *localfs.Storage) {
	t.Helper()
	store, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	return NewVoiceService(tts, key, nil, store, "/audio", voiceDefaults, nil), store
}

func floatPtr(v float64) *float64 { return &v }

var voiceFileName = regexp.MustCompile(`^voice_[0-9a-f]{8}_\d+\.mp3$`)

func TestGenerateVoice(t *testing.T) {
	tts := &fakeTTS{voices: []ai.Voice{
		{Name: "ko-KR-Standard-C", SSMLGender: "MALE"},
		{Name: "ko-KR-Standard-B", SSMLGender: "FEMALE"},
		{Name: "ko-KR-Neural2-A", SSMLGender: "FEMALE"},
	}}
	svc, store := newVoiceService(t, tts, "tts-key")

	res, err := svc.Generate(context.Background(), VoiceInput{Text: "안녕 무당벌레야"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !voiceFileName.MatchString(res.AudioFilename) {
		t.Fatalf("audio filename = %q", res.AudioFilename)
	}
	if res.AudioURL != "/audio/"+res.AudioFilename || !store.Exists(res.AudioFilename) {
		t.Fatalf("audio url = %q", res.AudioURL)
	}
	if res.VoiceName != "ko-KR-Neural2-A" {
		t.Fatalf("voice = %q, want recommended neural voice", res.VoiceName)
	}
	if res.TextLength != 8 {
		t.Fatalf("text length = %d, want rune count 8", res.TextLength)
	}
	if res.Settings.SpeakingRate != 0.9 || res.Settings.Pitch != 2.0 {
		t.Fatalf("settings = %+v", res.Settings)
	}
	if tts.lastSpeech.LanguageCode != "ko-KR" {
		t.Fatalf("speech request = %+v", tts.lastSpeech)
	}

	if _, err := svc.Generate(context.Background(), VoiceInput{Text: "또 만나"}); err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if tts.listCalls != 1 {
		t.Fatalf("voice list fetched %d times, want 1", tts.listCalls)
	}
}

func TestGenerateVoiceFromInsectFields(t *testing.T) {
	tts := &fakeTTS{}
	svc, _ := newVoiceService(t, tts, "tts-key")

	res, err := svc.Generate(context.Background(), VoiceInput{
		Insect:    map[string]string{fieldextract.KeyName: "개미", fieldextract.KeyFood: "설탕"},
		VoiceName: "ko-KR-Wavenet-A",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.VoiceName != "ko-KR-Wavenet-A" {
		t.Fatalf("voice = %q", res.VoiceName)
	}
	if !strings.Contains(tts.lastSpeech.Text, "개미") || !strings.Contains(tts.lastSpeech.Text, "설탕") {
		t.Fatalf("narration = %q", tts.lastSpeech.Text)
	}
	if tts.listCalls != 0 {
		t.Fatal("explicit voice should skip the voice list")
	}
}

func TestGenerateVoiceFallsBackToDefaultVoice(t *testing.T) {
	tts := &fakeTTS{listErr: errors.New("boom")}
	svc, _ := newVoiceService(t, tts, "tts-key")

	res, err := svc.Generate(context.Background(), VoiceInput{Text: "안녕"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.VoiceName != "ko-KR-Standard-A" {
		t.Fatalf("voice = %q, want configured default", res.VoiceName)
	}
}

type slowFailingTTS struct {
	delay     time.Duration
	listCalls atomic.Int32
}

func (f *slowFailingTTS) Synthesize(context.Context, string, ai.SpeechRequest) ([]byte, error) {
	return []byte("ID3 fake mp3"), nil
}

func (f *slowFailingTTS) ListVoices(context.Context, string, string) ([]ai.Voice, error) {
	f.listCalls.Add(1)
	time.Sleep(f.delay)
	return nil, errors.New("voices forbidden")
}

func TestGenerateVoiceSharesFailedVoiceLookup(t *testing.T) {
	tts := &slowFailingTTS{delay: 200 * time.Millisecond}
	svc, _ := newVoiceService(t, tts, "tts-key")

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	start := time.Now()
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Generate(context.Background(), VoiceInput{Text: "안녕"})
			if err == nil && res.VoiceName != voiceDefaults.VoiceName {
				err = errors.New("unexpected voice " + res.VoiceName)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	elapsed := time.Since(start)

	for err := range errs {
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}
	if got := tts.listCalls.Load(); got != 1 {
		t.Fatalf("voice list fetched %d times, want 1", got)
	}
	if elapsed > 600*time.Millisecond {
		t.Fatalf("concurrent calls took %v, lookups were serialized", elapsed)
	}

	if _, err := svc.Generate(context.Background(), VoiceInput{Text: "또 안녕"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := tts.listCalls.Load(); got != 1 {
		t.Fatalf("failure not remembered, fetched %d times", got)
	}
}

func TestVoicesRetriesAfterFailureWindow(t *testing.T) {
	tts := &fakeTTS{listErr: errors.New("boom")}
	svc, _ := newVoiceService(t, tts, "tts-key")
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if _, err := svc.Voices(context.Background()); err == nil {
		t.Fatal("first lookup should fail")
	}
	if _, err := svc.Voices(context.Background()); err == nil || tts.listCalls != 1 {
		t.Fatalf("within window: err = %v, calls = %d", err, tts.listCalls)
	}

	now = now.Add(voiceListRetryAfter + time.Second)
	tts.listErr = nil
	tts.voices = []ai.Voice{{Name: "ko-KR-Neural2-A", SSMLGender: "FEMALE"}}
	voices, err := svc.Voices(context.Background())
	if err != nil || len(voices) != 1 || tts.listCalls != 2 {
		t.Fatalf("after window: voices = %v, err = %v, calls = %d", voices, err, tts.listCalls)
	}
}

func TestGenerateVoiceValidation(t *testing.T) {
	svc, _ := newVoiceService(t, &fakeTTS{}, "tts-key")
	tests := []struct {
		name string
		in   VoiceInput
	}{
		{name: "empty text", in: VoiceInput{Text: "  "}},
		{name: "rate too low", in: VoiceInput{Text: "a", SpeakingRate: floatPtr(0.1)}},
		{name: "rate too high", in: VoiceInput{Text: "a", SpeakingRate: floatPtr(4.5)}},
		{name: "pitch", in: VoiceInput{Text: "a", Pitch: floatPtr(-21)}},
		{name: "volume", in: VoiceInput{Text: "a", VolumeGainDB: floatPtr(17)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Generate(context.Background(), tc.in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}

	unconfigured, _ := newVoiceService(t, &fakeTTS{}, "")
	if _, err := unconfigured.Generate(context.Background(), VoiceInput{Text: "a"}); !errors.Is(err, ErrVoiceNotConfigured) {
		t.Fatalf("err = %v, want ErrVoiceNotConfigured", err)
	}
	if _, err := unconfigured.Voices(context.Background()); !errors.Is(err, ErrVoiceNotConfigured) {
		t.Fatalf("Voices err = %v", err)
	}
}

func TestVoiceCleanupRemovesOnlyOldAudio(t *testing.T) {
	svc, store := newVoiceService(t, &fakeTTS{}, "tts-key")
	write := func(name string, age time.Duration) {
		path := filepath.Join(store.Dir(), name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		at := time.Now().Add(-age)
		if err := os.Chtimes(path, at, at); err != nil {
			t.Fatal(err)
		}
	}
	write("voice_old.mp3", 48*time.Hour)
	write("voice_new.mp3", time.Hour)
	write("notes_old.txt", 48*time.Hour)

	removed, err := svc.Cleanup(24 * time.Hour)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if len(removed) != 1 || removed[0] != "voice_old.mp3" {
		t.Fatalf("removed = %v", removed)
	}
	if !store.Exists("voice_new.mp3") || !store.Exists("notes_old.txt") {
		t.Fatal("cleanup removed files it should keep")
	}
}
