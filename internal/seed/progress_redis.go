package seed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisProgressSink publishes ProgressEvents on a per-job pub/sub channel,
// for operator consoles or other processes to observe a running seed or
// cleanup job without polling the job's own process.
//
// Grounded on internal/infrastructure/project.RedisNotificationStore,
// generalized from its Set/Keys/MGet polling shape to Redis pub/sub, which
// fits a continuously-updating progress stream better than a polled key.
type RedisProgressSink struct {
	log *zap.SugaredLogger
	rdb *redis.Client
}

// NewRedisProgressSink builds a sink publishing on "seed-progress:<job id>".
func NewRedisProgressSink(log *zap.SugaredLogger, rdb *redis.Client) *RedisProgressSink {
	return &RedisProgressSink{log: log, rdb: rdb}
}

func channelFor(jobID string) string {
	return fmt.Sprintf("seed-progress:%s", jobID)
}

func (s *RedisProgressSink) Report(ev ProgressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Warnw("marshal progress event", "job", ev.JobID, zap.Error(err))
		return
	}
	if err := s.rdb.Publish(context.Background(), channelFor(ev.JobID), payload).Err(); err != nil {
		s.log.Warnw("publish progress event", "job", ev.JobID, zap.Error(err))
	}
}

// Subscribe returns a channel of ProgressEvents for jobID, decoded from the
// underlying pub/sub messages. The subscription is closed when ctx is
// done.
func (s *RedisProgressSink) Subscribe(ctx context.Context, jobID string) (<-chan ProgressEvent, error) {
	sub := s.rdb.Subscribe(ctx, channelFor(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		return nil, err
	}
	out := make(chan ProgressEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev ProgressEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
