// qactl is the operator tool for the voice desk: manage Q&A pairs, inspect
// the call ledger, and run a text-mode question end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cultiflow/voicedesk/config"
	"github.com/cultiflow/voicedesk/internal/audio"
	"github.com/cultiflow/voicedesk/internal/ledger"
	"github.com/cultiflow/voicedesk/internal/logger"
	"github.com/cultiflow/voicedesk/internal/models"
	"github.com/cultiflow/voicedesk/internal/providers/translate"
	"github.com/cultiflow/voicedesk/internal/providers/tts"
	"github.com/cultiflow/voicedesk/internal/qastore"
)

const usage = `usage: qactl <command> [flags]

commands:
  add       -question Q -answer A [-language L]     add or update a pair
  delete    -id N                                   delete a pair
  view      -id N                                   show one pair
  list      [-language L] [-limit N]                list pairs, most used first
  search    -query Q [-language L]                  run the matcher against the store
  calls     [-limit N]                              recent calls
  convs     -call N                                 conversations of one call
  stats     [-date YYYY-MM-DD]                      one day of call statistics
  reset     [-language L]                           wipe pairs and load the seed set
  ask       -question Q [-out FILE]                 text-mode pipeline: lookup, translate, speak
`

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cfg := config.LoadLoose()
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "add":
		err = cmdAdd(ctx, cfg, os.Args[2:])
	case "delete":
		err = cmdDelete(ctx, cfg, os.Args[2:])
	case "view":
		err = cmdView(ctx, cfg, os.Args[2:])
	case "list":
		err = cmdList(ctx, cfg, os.Args[2:])
	case "search":
		err = cmdSearch(ctx, cfg, os.Args[2:])
	case "calls":
		err = cmdCalls(ctx, cfg, os.Args[2:])
	case "convs":
		err = cmdConvs(ctx, cfg, os.Args[2:])
	case "stats":
		err = cmdStats(ctx, cfg, os.Args[2:])
	case "reset":
		err = cmdReset(ctx, cfg, os.Args[2:])
	case "ask":
		err = cmdAsk(ctx, cfg, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("qactl %s: %v", os.Args[1], err)
	}
}

// openStore connects to whatever backends are reachable. Postgres being down
// is normal for an operator laptop; SQLite alone is enough.
func openStore(cfg *config.Config) (*qastore.Store, error) {
	logg := logger.New()

	liteDB, err := config.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	secondary, err := qastore.NewGormBackend("sqlite", liteDB)
	if err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	var primary qastore.Backend
	if pgDB, err := config.OpenPostgres(); err == nil {
		if backend, err := qastore.NewGormBackend("postgres", pgDB); err == nil {
			primary = backend
		}
	}

	return qastore.New(primary, secondary, cfg.OrgToken, logg)
}

func openLedger(cfg *config.Config) (ledger.Ledger, error) {
	liteDB, err := config.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return ledger.New(liteDB)
}

func cmdAdd(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	question := fs.String("question", "", "question text")
	answer := fs.String("answer", "", "answer text")
	language := fs.String("language", "tw", "language tag")
	fs.Parse(args)
	if *question == "" || *answer == "" {
		return fmt.Errorf("-question and -answer are required")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	id, err := store.Upsert(ctx, *question, *answer, *language)
	if err != nil {
		return err
	}
	fmt.Printf("saved qa_id=%d\n", id)
	return nil
}

func cmdDelete(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.Uint("id", 0, "qa id")
	fs.Parse(args)
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	deleted, err := store.Delete(ctx, *id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("qa_id=%d not found", *id)
	}
	fmt.Printf("deleted qa_id=%d\n", *id)
	return nil
}

func cmdView(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	id := fs.Uint("id", 0, "qa id")
	fs.Parse(args)
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	pair, err := store.Get(ctx, *id)
	if err != nil {
		return err
	}
	if pair == nil {
		return fmt.Errorf("qa_id=%d not found", *id)
	}
	printPair(*pair)
	return nil
}

func cmdList(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	language := fs.String("language", "", "filter by language tag")
	limit := fs.Int("limit", 0, "max pairs")
	fs.Parse(args)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	rows, err := store.List(ctx, *language, *limit)
	if err != nil {
		return err
	}
	for _, p := range rows {
		printPair(p)
	}
	fmt.Printf("%d pair(s)\n", len(rows))
	return nil
}

func cmdSearch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	query := fs.String("query", "", "question to match")
	language := fs.String("language", "", "language tag (default: configured lookup order)")
	fs.Parse(args)
	if *query == "" {
		return fmt.Errorf("-query is required")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	languages := cfg.LookupLanguages
	if *language != "" {
		languages = []string{*language}
	}
	for _, lang := range languages {
		hit, err := store.Find(ctx, *query, lang)
		if err != nil {
			return err
		}
		if hit != nil {
			fmt.Printf("match tier=%s backend=%s language=%s\n", hit.Tier, hit.Backend, lang)
			printPair(hit.Pair)
			return nil
		}
	}
	fmt.Println("no match")
	return nil
}

func cmdCalls(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("calls", flag.ExitOnError)
	limit := fs.Int("limit", 10, "max calls")
	fs.Parse(args)

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	rows, err := led.GetRecentCalls(ctx, *limit)
	if err != nil {
		return err
	}
	for _, call := range rows {
		dur := "-"
		if call.DurationSeconds != nil {
			dur = fmt.Sprintf("%ds", *call.DurationSeconds)
		}
		fmt.Printf("call_id=%d  %s  ext=%s  status=%s  dur=%s\n",
			call.ID, call.StartTime.Format(time.RFC3339), call.Extension, call.Status, dur)
	}
	fmt.Printf("%d call(s)\n", len(rows))
	return nil
}

func cmdConvs(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("convs", flag.ExitOnError)
	callID := fs.Uint("call", 0, "call id")
	fs.Parse(args)
	if *callID == 0 {
		return fmt.Errorf("-call is required")
	}

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	rows, err := led.GetCallConversations(ctx, *callID)
	if err != nil {
		return err
	}
	for _, conv := range rows {
		fmt.Printf("[%d] Q: %s\n    A: %s\n    stt=%.2fs tts=%.2fs total=%.2fs\n",
			conv.ID, conv.QuestionText, conv.AnswerText,
			conv.STTProcessingTime, conv.TTSProcessingTime, conv.TotalProcessingTime)
	}
	fmt.Printf("%d conversation(s)\n", len(rows))
	return nil
}

func cmdStats(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	date := fs.String("date", time.Now().UTC().Format("2006-01-02"), "day to aggregate")
	fs.Parse(args)
	if _, err := time.Parse("2006-01-02", *date); err != nil {
		return fmt.Errorf("-date must be YYYY-MM-DD")
	}

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	stats, err := led.GetStatistics(ctx, *date)
	if err != nil {
		return err
	}
	fmt.Printf("date:            %s\n", stats.Date)
	fmt.Printf("calls:           %d (%d ok, %d failed)\n", stats.TotalCalls, stats.SuccessfulCalls, stats.FailedCalls)
	fmt.Printf("avg duration:    %.1fs\n", stats.AvgDurationSeconds)
	fmt.Printf("conversations:   %d\n", stats.TotalConversations)
	fmt.Printf("avg processing:  %.2fs (stt %.2fs, tts %.2fs)\n", stats.AvgProcessingTime, stats.AvgSTTTime, stats.AvgTTSTime)
	return nil
}

func cmdReset(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	language := fs.String("language", "en", "language tag for the seed set")
	fs.Parse(args)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	n, err := store.ResetAndSeed(ctx, *language, nil)
	if err != nil {
		return err
	}
	fmt.Printf("store reset, %d pair(s) seeded\n", n)
	return nil
}

// cmdAsk is the text-mode pipeline: no microphone, no STT. The typed question
// goes through lookup and, when a key is configured, outbound translation and
// synthesis, so an operator can verify answers before callers hear them.
func cmdAsk(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	question := fs.String("question", "", "question text")
	out := fs.String("out", "", "write spoken answer to this WAV file")
	fs.Parse(args)
	if *question == "" {
		return fmt.Errorf("-question is required")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	answer := cfg.DefaultAnswer
	for _, lang := range cfg.LookupLanguages {
		hit, err := store.Find(ctx, *question, lang)
		if err != nil {
			continue
		}
		if hit != nil {
			fmt.Printf("matched tier=%s backend=%s language=%s\n", hit.Tier, hit.Backend, lang)
			answer = hit.Pair.AnswerText
			break
		}
	}
	fmt.Printf("answer: %s\n", answer)

	if *out == "" {
		return nil
	}
	if cfg.GhanaNLPAPIKey == "" {
		return fmt.Errorf("GHANANLP_API_KEY is required to synthesize speech")
	}

	speakText := answer
	if cfg.SpokenLanguage != cfg.LookupLanguages[0] {
		tr := translate.NewGhanaNLP(cfg.GhanaNLPAPIKey)
		defer tr.Close()
		pairTag := cfg.LookupLanguages[0] + "-" + cfg.SpokenLanguage
		if translated, err := tr.Translate(ctx, answer, pairTag); err == nil && translated != "" {
			speakText = translated
			fmt.Printf("spoken (%s): %s\n", cfg.SpokenLanguage, speakText)
		}
	}

	ttsP := tts.NewGhanaNLP(cfg.GhanaNLPAPIKey)
	defer ttsP.Close()
	raw, err := ttsP.Synthesize(ctx, speakText, cfg.SpokenLanguage)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	temp := *out + ".raw"
	if err := os.WriteFile(temp, raw, 0o644); err != nil {
		return err
	}
	defer os.Remove(temp)
	if err := audio.NewConverter(logger.New()).Convert(ctx, temp, *out); err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}

func printPair(p models.QAPair) {
	lastUsed := "never"
	if p.LastUsed != nil {
		lastUsed = p.LastUsed.Format(time.RFC3339)
	}
	fmt.Printf("[%d] (%s) used=%d last=%s\n  Q: %s\n  A: %s\n",
		p.ID, p.Language, p.UsageCount, lastUsed, p.QuestionText, p.AnswerText)
}
