package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Sink receives operator-facing side files: an append-only live transcript
// log, a last-question snapshot, and a last-call status file. It is
// non-authoritative; implementations must never let an I/O failure reach the
// pipeline, so none of these methods return an error.
type Sink interface {
	AppendLive(lines ...string)
	WriteLastQuestion(transcript, question, answer string)
	WriteStatus(fields map[string]string)
}

// FileSink writes the side files into one directory, swallowing every error.
type FileSink struct {
	Dir string
}

func NewFileSink(dir string) *FileSink { return &FileSink{Dir: dir} }

func (s *FileSink) AppendLive(lines ...string) {
	if s.Dir == "" {
		return
	}
	_ = os.MkdirAll(s.Dir, 0o755)
	f, err := os.OpenFile(filepath.Join(s.Dir, "live_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	for _, line := range lines {
		_, _ = f.WriteString(line + "\n")
	}
}

func (s *FileSink) WriteLastQuestion(transcript, question, answer string) {
	if s.Dir == "" {
		return
	}
	_ = os.MkdirAll(s.Dir, 0o755)
	body := fmt.Sprintf("transcript: %s\nquestion: %s\nanswer: %s\n", transcript, question, answer)
	_ = os.WriteFile(filepath.Join(s.Dir, "last_question.txt"), []byte(body), 0o644)
}

func (s *FileSink) WriteStatus(fields map[string]string) {
	if s.Dir == "" {
		return
	}
	_ = os.MkdirAll(s.Dir, 0o755)
	body := "timestamp=" + time.Now().Format(time.RFC3339) + "\n"
	for _, k := range []string{"status", "audio_file", "output_file", "transcript", "question", "answer"} {
		if v, ok := fields[k]; ok {
			body += k + "=" + v + "\n"
		}
	}
	_ = os.WriteFile(filepath.Join(s.Dir, "last_call_log.txt"), []byte(body), 0o644)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) AppendLive(...string)                  {}
func (NopSink) WriteLastQuestion(_, _, _ string)      {}
func (NopSink) WriteStatus(map[string]string)         {}
