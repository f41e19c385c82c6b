// Package audio normalizes synthesized audio to the 16 kHz 16-bit mono WAV
// the telephony side plays back. Conversion is an ordered list of strategies;
// the first one that succeeds wins.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Strategy is one way to turn an arbitrary audio file into the target WAV.
type Strategy interface {
	Name() string
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// Converter tries its strategies in order.
type Converter struct {
	strategies []Strategy
	log        *logrus.Logger
}

// NewConverter builds the default chain: native WAV resample, then ffmpeg,
// then sox.
func NewConverter(log *logrus.Logger) *Converter {
	if log == nil {
		log = logrus.New()
	}
	return &Converter{
		strategies: []Strategy{nativeWAV{}, execStrategy{name: "ffmpeg"}, execStrategy{name: "sox"}},
		log:        log,
	}
}

// NewConverterWith builds a chain from explicit strategies; used in tests.
func NewConverterWith(log *logrus.Logger, strategies ...Strategy) *Converter {
	if log == nil {
		log = logrus.New()
	}
	return &Converter{strategies: strategies, log: log}
}

// Convert writes a 16 kHz 16-bit mono WAV at outputPath. It returns the
// first strategy's success, or the last failure when every strategy failed.
func (c *Converter) Convert(ctx context.Context, inputPath, outputPath string) error {
	var lastErr error
	for _, s := range c.strategies {
		if err := s.Convert(ctx, inputPath, outputPath); err != nil {
			c.log.WithError(err).WithField("strategy", s.Name()).Debug("audio: conversion strategy failed")
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("audio: no conversion strategy configured")
	}
	return fmt.Errorf("audio: all conversion strategies failed: %w", lastErr)
}

// nativeWAV resamples PCM WAV input in-process: no external tool needed for
// the common case, since GhanaNLP TTS already returns WAV.
type nativeWAV struct{}

func (nativeWAV) Name() string { return "native-wav" }

func (nativeWAV) Convert(ctx context.Context, inputPath, outputPath string) error {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	w, err := decodeWAV(raw)
	if err != nil {
		return err
	}
	out := resampleLinear(w.samples, w.sampleRate, targetRate)
	return os.WriteFile(outputPath, encodeWAV(out, targetRate), 0o644)
}

// execStrategy shells out to ffmpeg or sox when they are installed.
type execStrategy struct {
	name string
}

func (s execStrategy) Name() string { return s.name }

func (s execStrategy) Convert(ctx context.Context, inputPath, outputPath string) error {
	var cmd *exec.Cmd
	switch s.name {
	case "ffmpeg":
		cmd = exec.CommandContext(ctx, "ffmpeg",
			"-i", inputPath,
			"-acodec", "pcm_s16le",
			"-ar", strconv.Itoa(targetRate),
			"-ac", strconv.Itoa(targetChannels),
			"-y", outputPath)
	case "sox":
		cmd = exec.CommandContext(ctx, "sox", inputPath,
			"-r", strconv.Itoa(targetRate),
			"-b", strconv.Itoa(targetBits),
			"-c", strconv.Itoa(targetChannels),
			outputPath)
	default:
		return fmt.Errorf("audio: unknown exec strategy %q", s.name)
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("audio: %s failed: %w: %s", s.name, err, string(out))
	}
	return nil
}
