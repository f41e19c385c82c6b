package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cultiflow/voicedesk/internal/pipeline"
)

// CallWorkerPool consumes queued voice queries from a Redis stream and runs
// each through the pipeline. Multiple assistant instances can share the
// consumer group; a message is processed by exactly one of them.
type CallWorkerPool struct {
	Redis      *redis.Client
	Pipeline   *pipeline.Pipeline
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

// Enqueue adds one voice query to the stream. Used by the ingest endpoint and
// by operator tooling.
func Enqueue(ctx context.Context, rdb *redis.Client, stream string, req pipeline.Request) (string, error) {
	if stream == "" {
		stream = "calls:stream"
	}
	values := map[string]any{
		"audio_path":  req.AudioPath,
		"output_path": req.OutputPath,
		"extension":   req.Extension,
	}
	if req.CallerID != nil {
		values["caller_id"] = *req.CallerID
	}
	return rdb.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Result()
}

func (p *CallWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Pipeline == nil {
		return errors.New("CallWorkerPool missing dependency: Redis/Pipeline must be set")
	}
	if p.Stream == "" {
		p.Stream = "calls:stream"
	}
	if p.Group == "" {
		p.Group = "call-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 5
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *CallWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *CallWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	req := pipeline.Request{
		AudioPath:  getStr("audio_path"),
		OutputPath: getStr("output_path"),
		Extension:  getStr("extension"),
	}
	if req.AudioPath == "" {
		return
	}
	if caller := getStr("caller_id"); caller != "" {
		req.CallerID = &caller
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id": msg.ID,
		"audio":    req.AudioPath,
	})

	result, err := p.Pipeline.Process(ctx, req)
	if err != nil {
		log.WithError(err).Error("call processing failed")
		_ = p.Redis.Publish(ctx, "calls:status", `{"type":"status","status":"failed","redis_id":"`+msg.ID+`"}`).Err()
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"type":     "call_result",
		"redis_id": msg.ID,
		"result":   result,
	})
	_ = p.Redis.Publish(ctx, "calls:results", string(payload)).Err()
	log.WithFields(logrus.Fields{
		"call_id": result.CallID,
		"status":  result.Status,
	}).Info("call processed")
}
