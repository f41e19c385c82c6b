// Package pipeline drives one voice query from recorded audio to a response
// clip: transcribe, optionally translate, look up, optionally translate back,
// synthesize. Adapter failures never escape a stage; each has a designed
// fallback so the caller always hears something.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cultiflow/voicedesk/internal/audio"
	"github.com/cultiflow/voicedesk/internal/ledger"
	"github.com/cultiflow/voicedesk/internal/models"
	"github.com/cultiflow/voicedesk/internal/providers/stt"
	"github.com/cultiflow/voicedesk/internal/providers/translate"
	"github.com/cultiflow/voicedesk/internal/providers/tts"
	"github.com/cultiflow/voicedesk/internal/qastore"
	"github.com/cultiflow/voicedesk/internal/storage"
)

type Stage string

const (
	StageStarted        Stage = "STARTED"
	StageTranscribing   Stage = "TRANSCRIBING"
	StageTranslatingIn  Stage = "TRANSLATING_IN"
	StageLookingUp      Stage = "LOOKING_UP"
	StageTranslatingOut Stage = "TRANSLATING_OUT"
	StageSynthesizing   Stage = "SYNTHESIZING"
	StageCompleted      Stage = "COMPLETED"
	StageFailed         Stage = "FAILED"
)

const sttFailedMarker = "[STT_FAILED]"
const ttsFailedMarker = "[TTS_FAILED]"

// StageEvent records when the pipeline entered a stage.
type StageEvent struct {
	Stage Stage     `json:"stage"`
	At    time.Time `json:"at"`
}

// Options is the per-deployment behavior of the pipeline.
type Options struct {
	// SpokenLanguage is what the caller speaks (and hears back).
	SpokenLanguage string
	// LookupLanguages is the ordered list of store language tags tried per
	// lookup.
	LookupLanguages []string
	// DefaultAnswer is spoken when no pair matches; a miss is not a failure.
	DefaultAnswer string
	// ApologyText is synthesized (in the spoken language) when transcription
	// fails.
	ApologyText string
	// FallbackClipPath, when set, is copied over the output before any work
	// and again whenever synthesis fails, so a caller never hears a previous
	// caller's answer.
	FallbackClipPath string
}

// Request is one voice query to process.
type Request struct {
	AudioPath  string
	OutputPath string
	CallID     uint // 0 means "create a ledger record"
	CallerID   *string
	Extension  string
}

// Result is the terminal outcome of a pipeline run.
type Result struct {
	CallID       uint         `json:"call_id"`
	Status       string       `json:"status"` // completed | failed
	ResponsePath string       `json:"response_path,omitempty"`
	Transcript   string       `json:"transcript,omitempty"`
	Question     string       `json:"question,omitempty"`
	Answer       string       `json:"answer,omitempty"`
	Stages       []StageEvent `json:"stages"`
	STTSeconds   float64      `json:"stt_seconds"`
	TTSSeconds   float64      `json:"tts_seconds"`
	TotalSeconds float64      `json:"total_seconds"`
}

type Pipeline struct {
	STT        stt.Provider
	Translator translate.Provider // nil disables both translation stages
	TTS        tts.Provider
	Store      *qastore.Store
	Ledger     ledger.Ledger
	Converter  *audio.Converter
	Sink       Sink
	Archive    storage.Uploader // optional, fire-and-forget
	Log        *logrus.Logger
	Opts       Options
}

func (p *Pipeline) logger() *logrus.Logger {
	if p.Log != nil {
		return p.Log
	}
	return logrus.StandardLogger()
}

func (p *Pipeline) sink() Sink {
	if p.Sink != nil {
		return p.Sink
	}
	return NopSink{}
}

// Process runs one call to a terminal state. Adapter failures end in a
// "failed" Result, not an error; the only error is misuse (no audio path).
func (p *Pipeline) Process(ctx context.Context, req Request) (*Result, error) {
	if req.AudioPath == "" {
		return nil, fmt.Errorf("pipeline: audio path required")
	}
	if req.OutputPath == "" {
		req.OutputPath = filepath.Join(filepath.Dir(req.AudioPath), "response.wav")
	}

	start := time.Now()
	res := &Result{}
	res.enter(StageStarted)
	log := p.logger().WithFields(logrus.Fields{"audio": req.AudioPath, "output": req.OutputPath})

	p.sink().WriteStatus(map[string]string{
		"status":      "started",
		"audio_file":  req.AudioPath,
		"output_file": req.OutputPath,
	})
	p.sink().WriteLastQuestion("(starting...)", "(starting...)", "")

	// Output hygiene: overwrite the response path with the fallback clip
	// before doing anything, so a hangup or crash mid-pipeline can never
	// replay the previous caller's answer.
	p.restoreFallback(req.OutputPath)

	callID := req.CallID
	if callID == 0 && p.Ledger != nil {
		id, err := p.Ledger.CreateCall(ctx, req.CallerID, req.Extension, req.AudioPath)
		if err != nil {
			log.WithError(err).Warn("pipeline: ledger create failed, continuing without call record")
		} else {
			callID = id
		}
	}
	res.CallID = callID
	log = log.WithField("call_id", callID)

	// Transcription
	res.enter(StageTranscribing)
	p.sink().AppendLive(fmt.Sprintf(">>> %s stage=%s", time.Now().Format("2006-01-02 15:04:05"), StageTranscribing))
	transcript, sttSecs := p.transcribe(ctx, req.AudioPath)
	res.STTSeconds = sttSecs
	if transcript == "" {
		log.Warn("pipeline: transcription failed")
		return p.failSTT(ctx, req, res, callID, start), nil
	}
	res.Transcript = transcript
	p.sink().AppendLive("  transcript: " + transcript)

	// Inbound translation: best-effort; a failure means we look up the raw
	// transcript.
	question := transcript
	if pair := p.inboundPair(); pair != "" {
		res.enter(StageTranslatingIn)
		if translated, err := p.Translator.Translate(ctx, transcript, pair); err != nil {
			log.WithError(err).Warn("pipeline: inbound translation failed, using raw transcript")
		} else if translated != "" {
			question = translated
		}
	}
	res.Question = question
	p.sink().AppendLive("  question: " + question)
	p.sink().WriteLastQuestion(transcript, question, "")

	// Lookup across the configured store languages, in order. No match is a
	// designed outcome, not an error.
	res.enter(StageLookingUp)
	answer := p.Opts.DefaultAnswer
	for _, lang := range p.Opts.LookupLanguages {
		hit, err := p.Store.Find(ctx, question, lang)
		if err != nil {
			log.WithError(err).WithField("language", lang).Warn("pipeline: lookup failed")
			continue
		}
		if hit != nil {
			log.WithFields(logrus.Fields{"qa_id": hit.Pair.ID, "tier": hit.Tier, "backend": hit.Backend, "language": lang}).
				Info("pipeline: matched")
			answer = hit.Pair.AnswerText
			break
		}
	}
	res.Answer = answer
	p.sink().AppendLive("  answer: " + answer)
	p.sink().WriteLastQuestion(transcript, question, answer)

	// Outbound translation: best-effort; a failure means we speak the
	// untranslated answer.
	speakText := answer
	if pair := p.outboundPair(); pair != "" {
		res.enter(StageTranslatingOut)
		if translated, err := p.Translator.Translate(ctx, answer, pair); err != nil {
			log.WithError(err).Warn("pipeline: outbound translation failed, speaking untranslated answer")
		} else if translated != "" {
			speakText = translated
		}
	}

	// Synthesis
	res.enter(StageSynthesizing)
	ttsSecs, err := p.synthesizeTo(ctx, speakText, p.Opts.SpokenLanguage, req.OutputPath)
	res.TTSSeconds = ttsSecs
	if err != nil {
		log.WithError(err).Warn("pipeline: synthesis failed, falling back to clip")
		return p.failTTS(ctx, req, res, callID, start), nil
	}

	res.enter(StageCompleted)
	res.Status = models.CallStatusCompleted
	res.ResponsePath = req.OutputPath
	res.TotalSeconds = time.Since(start).Seconds()

	p.persist(ctx, callID, req, res, res.Question, res.Answer, models.CallStatusCompleted)
	p.sink().WriteStatus(map[string]string{
		"status":      "completed",
		"audio_file":  req.AudioPath,
		"output_file": req.OutputPath,
		"transcript":  transcript,
		"question":    question,
		"answer":      answer,
	})
	p.archive(req, res)
	log.WithFields(logrus.Fields{
		"stt_s":   res.STTSeconds,
		"tts_s":   res.TTSSeconds,
		"total_s": res.TotalSeconds,
	}).Info("pipeline: completed")
	return res, nil
}

func (r *Result) enter(s Stage) {
	r.Stages = append(r.Stages, StageEvent{Stage: s, At: time.Now().UTC()})
}

func (p *Pipeline) inboundPair() string {
	if p.Translator == nil || len(p.Opts.LookupLanguages) == 0 {
		return ""
	}
	if p.Opts.SpokenLanguage == p.Opts.LookupLanguages[0] {
		return ""
	}
	return p.Opts.SpokenLanguage + "-" + p.Opts.LookupLanguages[0]
}

func (p *Pipeline) outboundPair() string {
	if p.Translator == nil || len(p.Opts.LookupLanguages) == 0 {
		return ""
	}
	if p.Opts.SpokenLanguage == p.Opts.LookupLanguages[0] {
		return ""
	}
	return p.Opts.LookupLanguages[0] + "-" + p.Opts.SpokenLanguage
}

func (p *Pipeline) transcribe(ctx context.Context, audioPath string) (string, float64) {
	start := time.Now()
	raw, err := os.ReadFile(audioPath)
	if err != nil {
		p.logger().WithError(err).Warn("pipeline: cannot read recorded audio")
		return "", time.Since(start).Seconds()
	}
	text, err := p.STT.Transcribe(ctx, raw, p.Opts.SpokenLanguage)
	if err != nil {
		p.logger().WithError(err).Warn("pipeline: stt failed")
		return "", time.Since(start).Seconds()
	}
	return text, time.Since(start).Seconds()
}

// synthesizeTo renders text and normalizes it into outputPath.
func (p *Pipeline) synthesizeTo(ctx context.Context, text, language, outputPath string) (float64, error) {
	start := time.Now()
	raw, err := p.TTS.Synthesize(ctx, text, language)
	if err != nil {
		return time.Since(start).Seconds(), err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return time.Since(start).Seconds(), err
	}
	temp := filepath.Join(filepath.Dir(outputPath), "temp_tts_"+filepath.Base(outputPath))
	if err := os.WriteFile(temp, raw, 0o644); err != nil {
		return time.Since(start).Seconds(), err
	}
	defer os.Remove(temp)
	if err := p.Converter.Convert(ctx, temp, outputPath); err != nil {
		return time.Since(start).Seconds(), err
	}
	return time.Since(start).Seconds(), nil
}

// failSTT terminates the run after a transcription failure: speak a fixed
// apology (best-effort; the fallback clip stands if synthesis also fails)
// and record the conversation with the STT marker.
func (p *Pipeline) failSTT(ctx context.Context, req Request, res *Result, callID uint, start time.Time) *Result {
	p.sink().AppendLive("  [could not transcribe - STT failed]")
	p.sink().WriteLastQuestion("(STT failed)", sttFailedMarker, sttFailedMarker)

	ttsSecs, err := p.synthesizeTo(ctx, p.Opts.ApologyText, p.Opts.SpokenLanguage, req.OutputPath)
	res.TTSSeconds = ttsSecs
	responsePath := req.OutputPath
	if err != nil {
		p.logger().WithError(err).Warn("pipeline: apology synthesis failed, fallback clip stands")
		if !p.restoreFallback(req.OutputPath) {
			responsePath = ""
		}
	}

	res.enter(StageFailed)
	res.Status = models.CallStatusFailed
	res.Question = sttFailedMarker
	res.Answer = p.Opts.ApologyText
	res.ResponsePath = responsePath
	res.TotalSeconds = time.Since(start).Seconds()

	p.persist(ctx, callID, req, res, sttFailedMarker, p.Opts.ApologyText, models.CallStatusFailed)
	p.sink().WriteStatus(map[string]string{
		"status":      "stt_failed",
		"audio_file":  req.AudioPath,
		"output_file": req.OutputPath,
		"question":    sttFailedMarker,
		"answer":      sttFailedMarker,
	})
	return res
}

// failTTS terminates the run after a synthesis failure: the fallback clip
// (restored during output hygiene) is the response, and the conversation
// records the answer with the TTS marker appended.
func (p *Pipeline) failTTS(ctx context.Context, req Request, res *Result, callID uint, start time.Time) *Result {
	markedAnswer := res.Answer + " " + ttsFailedMarker
	p.sink().WriteLastQuestion(res.Transcript, res.Question, markedAnswer)

	responsePath := ""
	if p.restoreFallback(req.OutputPath) {
		responsePath = req.OutputPath
	}

	res.enter(StageFailed)
	res.Status = models.CallStatusFailed
	res.ResponsePath = responsePath
	res.TotalSeconds = time.Since(start).Seconds()

	p.persist(ctx, callID, req, res, res.Question, markedAnswer, models.CallStatusFailed)
	p.sink().WriteStatus(map[string]string{
		"status":      "tts_failed",
		"audio_file":  req.AudioPath,
		"output_file": req.OutputPath,
		"question":    res.Question,
		"answer":      markedAnswer,
	})
	return res
}

// restoreFallback copies the pre-recorded clip over the output path.
// Reports whether a clip was actually written.
func (p *Pipeline) restoreFallback(outputPath string) bool {
	if p.Opts.FallbackClipPath == "" {
		return false
	}
	src, err := os.Open(p.Opts.FallbackClipPath)
	if err != nil {
		p.logger().WithError(err).Warn("pipeline: fallback clip unavailable")
		return false
	}
	defer src.Close()
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return false
	}
	dst, err := os.Create(outputPath)
	if err != nil {
		p.logger().WithError(err).Warn("pipeline: cannot write output path")
		return false
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		p.logger().WithError(err).Warn("pipeline: fallback copy failed")
		return false
	}
	return true
}

// persist writes the Conversation and the terminal Call update. Ledger
// failures are logged, never fatal: analytics must not take down a call.
func (p *Pipeline) persist(ctx context.Context, callID uint, req Request, res *Result, question, answer, status string) {
	if p.Ledger == nil || callID == 0 {
		return
	}
	qPath := req.AudioPath
	conv := &models.Conversation{
		CallID:              callID,
		QuestionText:        question,
		AnswerText:          answer,
		QuestionAudioPath:   &qPath,
		STTProcessingTime:   res.STTSeconds,
		TTSProcessingTime:   res.TTSSeconds,
		TotalProcessingTime: res.TotalSeconds,
		Language:            p.Opts.SpokenLanguage,
	}
	if res.ResponsePath != "" {
		rp := res.ResponsePath
		conv.AnswerAudioPath = &rp
	}
	if _, err := p.Ledger.AddConversation(ctx, conv); err != nil {
		p.logger().WithError(err).Warn("pipeline: conversation persist failed")
	}

	now := time.Now().UTC()
	dur := int64(res.TotalSeconds)
	upd := ledger.CallUpdate{
		EndTime:         &now,
		Status:          &status,
		DurationSeconds: &dur,
	}
	if res.ResponsePath != "" {
		rp := res.ResponsePath
		upd.ResponseFilePath = &rp
	}
	if err := p.Ledger.UpdateCall(ctx, callID, upd); err != nil {
		p.logger().WithError(err).Warn("pipeline: call update failed")
	}
}

// archive uploads the question and response audio in the background. Purely
// best-effort: the result is never awaited.
func (p *Pipeline) archive(req Request, res *Result) {
	if p.Archive == nil || res.CallID == 0 {
		return
	}
	upload := func(path, name string) {
		f, err := os.Open(path)
		if err != nil {
			return
		}
		defer f.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := p.Archive.Upload(ctx, name, "audio/wav", f); err != nil {
			p.logger().WithError(err).Debug("pipeline: archive upload failed")
		}
	}
	prefix := fmt.Sprintf("calls/%s/%d", time.Now().UTC().Format("2006-01-02"), res.CallID)
	go upload(req.AudioPath, prefix+"/question.wav")
	if res.ResponsePath != "" {
		go upload(res.ResponsePath, prefix+"/answer.wav")
	}
}
