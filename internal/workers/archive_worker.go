// Package workers contains background consumers fed through Redis Streams.
package workers

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/careerflow/interview/internal/services"
	"github.com/careerflow/interview/internal/storage"
)

// RecordingStream is the Redis Stream carrying finished-session audio to
// the archive workers.
const RecordingStream = "recordings:stream"

// EnqueueRecording publishes one session's captured audio for archiving.
// Called from the voice handler after the session ends; failures are the
// caller's to log, never to surface.
func EnqueueRecording(ctx context.Context, rdb *redis.Client, sessionID string, pcm []byte) error {
	return rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: RecordingStream,
		Values: map[string]any{
			"session_id":   sessionID,
			"audio_base64": base64.StdEncoding.EncodeToString(pcm),
			"ts_unix":      strconv.FormatInt(time.Now().UTC().Unix(), 10),
		},
	}).Err()
}

// ArchiveWorkerPool drains RecordingStream: each entry is decoded,
// uploaded to the recording store, and the session record is pointed at
// the resulting URL.
type ArchiveWorkerPool struct {
	Redis      *redis.Client
	Sessions   services.SessionService
	Store      *storage.RecordingStore
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *ArchiveWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Sessions == nil || p.Store == nil {
		return errors.New("ArchiveWorkerPool missing dependency: Redis/Sessions/Store must be set")
	}
	if p.Stream == "" {
		p.Stream = RecordingStream
	}
	if p.Group == "" {
		p.Group = "archive-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
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

func (p *ArchiveWorkerPool) runConsumer(ctx context.Context, consumer string) {
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
			Count:    5,
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

func (p *ArchiveWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	sessionID := getStr("session_id")
	b64 := getStr("audio_base64")
	if sessionID == "" || b64 == "" {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   msg.ID,
		"session_id": sessionID,
	})

	pcm, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		log.WithError(err).Warn("base64 decode failed; dropping recording")
		return
	}

	url, err := p.Store.Save(ctx, sessionID, pcm)
	if err != nil {
		log.WithError(err).Error("recording upload failed")
		return
	}

	if err := p.Sessions.SetRecordingURL(ctx, sessionID, url); err != nil {
		log.WithError(err).Warn("failed to attach recording url to session")
		return
	}
	log.WithField("bytes", len(pcm)).Info("recording archived")
}
