package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cultiflow/voicedesk/internal/audio"
	"github.com/cultiflow/voicedesk/internal/ledger"
	"github.com/cultiflow/voicedesk/internal/models"
	"github.com/cultiflow/voicedesk/internal/qastore"
)

type fakeSTT struct {
	text string
	err  error
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	return f.text, f.err
}
func (f *fakeSTT) Close() error { return nil }

type fakeTranslate struct {
	out map[string]string // "pair|text" -> translated
	err error
}

func (f *fakeTranslate) Translate(ctx context.Context, text, pair string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if v, ok := f.out[pair+"|"+text]; ok {
		return v, nil
	}
	return text, nil
}
func (f *fakeTranslate) Close() error { return nil }

type fakeTTS struct {
	err   error
	calls int
}

func (f *fakeTTS) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("tts:" + language + ":" + text), nil
}
func (f *fakeTTS) Close() error { return nil }

// copyStrategy stands in for audio conversion: it moves the temp TTS bytes to
// the output path unchanged.
type copyStrategy struct{}

func (copyStrategy) Name() string { return "copy" }
func (copyStrategy) Convert(ctx context.Context, in, out string) error {
	b, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0o644)
}

type failStrategy struct{}

func (failStrategy) Name() string { return "fail" }
func (failStrategy) Convert(ctx context.Context, in, out string) error {
	return errors.New("conversion broken")
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	p        *Pipeline
	pg, lite *qastore.MemoryBackend
	led      *ledger.Memory
	tts      *fakeTTS
	dir      string
	audioIn  string
	out      string
	fallback string
}

func newFixture(t *testing.T, sttText string, tr *fakeTranslate) *fixture {
	t.Helper()
	dir := t.TempDir()

	audioIn := filepath.Join(dir, "query.wav")
	if err := os.WriteFile(audioIn, []byte("recorded question audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	fallback := filepath.Join(dir, "please_wait.wav")
	if err := os.WriteFile(fallback, []byte("FALLBACK CLIP"), 0o644); err != nil {
		t.Fatal(err)
	}

	pg := qastore.NewMemoryBackend("postgres")
	lite := qastore.NewMemoryBackend("sqlite")
	store, err := qastore.New(pg, lite, "cultiflow", quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upsert(context.Background(), "What is the company name?", "The company name is Cultiflow.", "en"); err != nil {
		t.Fatal(err)
	}

	led := ledger.NewMemory()
	ttsP := &fakeTTS{}
	f := &fixture{
		pg: pg, lite: lite, led: led, tts: ttsP,
		dir: dir, audioIn: audioIn,
		out:      filepath.Join(dir, "response.wav"),
		fallback: fallback,
	}
	f.p = &Pipeline{
		STT:       &fakeSTT{text: sttText},
		TTS:       ttsP,
		Store:     store,
		Ledger:    led,
		Converter: audio.NewConverterWith(quietLogger(), copyStrategy{}),
		Log:       quietLogger(),
		Opts: Options{
			SpokenLanguage:   "tw",
			LookupLanguages:  []string{"en", "tw"},
			DefaultAnswer:    "Thank you for calling. I did not understand that clearly.",
			ApologyText:      "Mepa wo kyɛw, san ka bio.",
			FallbackClipPath: fallback,
		},
	}
	if tr != nil {
		f.p.Translator = tr
	}
	return f
}

func (f *fixture) request() Request {
	ext := "1002"
	return Request{AudioPath: f.audioIn, OutputPath: f.out, Extension: ext}
}

func TestProcess_MatchedQuestionCompletes(t *testing.T) {
	// Scenario A: "what's the company name" resolves through the matcher
	// even though it is not an exact key.
	tr := &fakeTranslate{out: map[string]string{
		"tw-en|wo din de sɛn":                  "what's the company name",
		"en-tw|The company name is Cultiflow.": "Cultiflow din no",
	}}
	f := newFixture(t, "wo din de sɛn", tr)

	res, err := f.p.Process(context.Background(), f.request())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Status != models.CallStatusCompleted {
		t.Fatalf("status = %q, want completed", res.Status)
	}
	if res.Answer != "The company name is Cultiflow." {
		t.Fatalf("answer = %q", res.Answer)
	}

	// The spoken response is the translated answer.
	out, _ := os.ReadFile(f.out)
	if string(out) != "tts:tw:Cultiflow din no" {
		t.Fatalf("response audio = %q", out)
	}

	call, _ := f.led.GetCall(context.Background(), res.CallID)
	if call == nil || call.Status != models.CallStatusCompleted {
		t.Fatalf("ledger call = %+v", call)
	}
	convs, _ := f.led.GetCallConversations(context.Background(), res.CallID)
	if len(convs) != 1 || convs[0].AnswerText != "The company name is Cultiflow." {
		t.Fatalf("conversations = %+v", convs)
	}
	if convs[0].TotalProcessingTime < 0 {
		t.Fatal("timing breakdown missing")
	}
}

func TestProcess_SingleTokenQueryGetsDefaultAnswer(t *testing.T) {
	// Scenario B: a lone "cultiflow" must not fuzzy-match the stored
	// multi-word question; the caller hears the default answer.
	tr := &fakeTranslate{out: map[string]string{"tw-en|cultiflow": "cultiflow"}}
	f := newFixture(t, "cultiflow", tr)

	res, err := f.p.Process(context.Background(), f.request())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Status != models.CallStatusCompleted {
		t.Fatalf("status = %q, want completed (no-match is not a failure)", res.Status)
	}
	if res.Answer != f.p.Opts.DefaultAnswer {
		t.Fatalf("answer = %q, want default", res.Answer)
	}
}

func TestProcess_STTFailure(t *testing.T) {
	// Scenario C: empty transcript → failed call, [STT_FAILED] conversation,
	// apology audio spoken in the caller's language.
	f := newFixture(t, "", nil)

	res, err := f.p.Process(context.Background(), f.request())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Status != models.CallStatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}

	out, _ := os.ReadFile(f.out)
	if !strings.Contains(string(out), f.p.Opts.ApologyText) {
		t.Fatalf("expected apology audio, got %q", out)
	}

	call, _ := f.led.GetCall(context.Background(), res.CallID)
	if call == nil || call.Status != models.CallStatusFailed {
		t.Fatalf("ledger call = %+v", call)
	}
	convs, _ := f.led.GetCallConversations(context.Background(), res.CallID)
	if len(convs) != 1 || convs[0].QuestionText != "[STT_FAILED]" {
		t.Fatalf("conversations = %+v", convs)
	}
}

func TestProcess_STTAndTTSBothFail_FallbackClipStands(t *testing.T) {
	f := newFixture(t, "", nil)
	f.tts.err = errors.New("tts down")

	res, err := f.p.Process(context.Background(), f.request())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Status != models.CallStatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	out, _ := os.ReadFile(f.out)
	if string(out) != "FALLBACK CLIP" {
		t.Fatalf("output = %q, want the fallback clip", out)
	}
}

func TestProcess_TTSFailureMarksAnswerAndRestoresClip(t *testing.T) {
	tr := &fakeTranslate{out: map[string]string{"tw-en|wo din de sɛn": "what is the company name"}}
	f := newFixture(t, "wo din de sɛn", tr)
	f.tts.err = errors.New("tts down")

	res, err := f.p.Process(context.Background(), f.request())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Status != models.CallStatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	out, _ := os.ReadFile(f.out)
	if string(out) != "FALLBACK CLIP" {
		t.Fatalf("output = %q, want the fallback clip", out)
	}
	convs, _ := f.led.GetCallConversations(context.Background(), res.CallID)
	if len(convs) != 1 || !strings.HasSuffix(convs[0].AnswerText, "[TTS_FAILED]") {
		t.Fatalf("conversations = %+v", convs)
	}
}

func TestProcess_ConversionFailureFallsBackToClip(t *testing.T) {
	f := newFixture(t, "wo din de sɛn", &fakeTranslate{out: map[string]string{"tw-en|wo din de sɛn": "what is the company name"}})
	f.p.Converter = audio.NewConverterWith(quietLogger(), failStrategy{})

	res, err := f.p.Process(context.Background(), f.request())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Status != models.CallStatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	out, _ := os.ReadFile(f.out)
	if string(out) != "FALLBACK CLIP" {
		t.Fatalf("output = %q, want the fallback clip", out)
	}
}

func TestProcess_OutputOverwrittenBeforeProcessing(t *testing.T) {
	f := newFixture(t, "", nil)
	f.tts.err = errors.New("tts down")
	// Stale audio from a previous caller must never survive.
	if err := os.WriteFile(f.out, []byte("previous caller's answer"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := f.p.Process(context.Background(), f.request()); err != nil {
		t.Fatalf("process: %v", err)
	}
	out, _ := os.ReadFile(f.out)
	if string(out) == "previous caller's answer" {
		t.Fatal("stale audio survived the pipeline")
	}
}

func TestProcess_PrimaryBackendDownStillAnswers(t *testing.T) {
	// Scenario D: lookup succeeds via the secondary when the primary is
	// unreachable mid-call.
	tr := &fakeTranslate{out: map[string]string{"tw-en|wo din de sɛn": "what is the company name"}}
	f := newFixture(t, "wo din de sɛn", tr)
	f.pg.FailAll = true

	res, err := f.p.Process(context.Background(), f.request())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Status != models.CallStatusCompleted {
		t.Fatalf("status = %q, want completed", res.Status)
	}
	if res.Answer != "The company name is Cultiflow." {
		t.Fatalf("answer = %q", res.Answer)
	}

	f.pg.FailAll = false
	pgRows, _ := f.pg.ListByLanguage(context.Background(), "en")
	liteRows, _ := f.lite.ListByLanguage(context.Background(), "en")
	if pgRows[0].UsageCount != 0 {
		t.Fatalf("primary usage_count = %d, want 0", pgRows[0].UsageCount)
	}
	if liteRows[0].UsageCount != 1 {
		t.Fatalf("secondary usage_count = %d, want 1", liteRows[0].UsageCount)
	}
}

func TestProcess_TranslationFailureIsNotFatal(t *testing.T) {
	// Both translation stages fail; the raw transcript is used for lookup
	// and the untranslated answer is spoken.
	f := newFixture(t, "what is the company name", &fakeTranslate{err: errors.New("translate down")})

	res, err := f.p.Process(context.Background(), f.request())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Status != models.CallStatusCompleted {
		t.Fatalf("status = %q, want completed", res.Status)
	}
	if res.Answer != "The company name is Cultiflow." {
		t.Fatalf("answer = %q", res.Answer)
	}
	out, _ := os.ReadFile(f.out)
	if string(out) != "tts:tw:The company name is Cultiflow." {
		t.Fatalf("expected untranslated answer spoken, got %q", out)
	}
}

func TestProcess_StageHistoryIsOrdered(t *testing.T) {
	tr := &fakeTranslate{}
	f := newFixture(t, "what is the company name", tr)

	res, err := f.p.Process(context.Background(), f.request())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	want := []Stage{StageStarted, StageTranscribing, StageTranslatingIn, StageLookingUp, StageTranslatingOut, StageSynthesizing, StageCompleted}
	if len(res.Stages) != len(want) {
		t.Fatalf("stage history %v, want %v", res.Stages, want)
	}
	for i, ev := range res.Stages {
		if ev.Stage != want[i] {
			t.Fatalf("stage[%d] = %s, want %s", i, ev.Stage, want[i])
		}
		if i > 0 && ev.At.Before(res.Stages[i-1].At) {
			t.Fatal("stage timestamps out of order")
		}
	}
}
