package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/solstudio/ig-agent-go/internal/config"
	"github.com/solstudio/ig-agent-go/internal/repository"
	"github.com/solstudio/ig-agent-go/internal/service"
)

// ReclaimJob periodically requeues messages stuck in processing past the
// deadline (a crashed or timed-out pass never released its claim) and
// re-arms a dispatch for each affected conversation.
type ReclaimJob struct {
	messages  repository.MessageRepository
	scheduler service.Scheduler
	deadline  time.Duration
	interval  time.Duration
	done      chan struct{}
}

func NewReclaimJob(messages repository.MessageRepository, scheduler service.Scheduler, interval time.Duration) *ReclaimJob {
	return &ReclaimJob{
		messages:  messages,
		scheduler: scheduler,
		deadline:  config.ProcessingDeadline,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (j *ReclaimJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("reclaim job started")
}

func (j *ReclaimJob) Stop() {
	close(j.done)
	log.Info().Msg("reclaim job stopped")
}

func (j *ReclaimJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.reclaim()
		}
	}
}

func (j *ReclaimJob) reclaim() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	keys, err := j.messages.ReclaimStuck(ctx, j.deadline)
	if err != nil {
		log.Error().Err(err).Msg("failed to reclaim stuck messages")
		return
	}
	if len(keys) == 0 {
		return
	}

	log.Warn().Strs("conversationKeys", keys).Msg("reclaimed stuck messages")

	for _, key := range keys {
		if err := j.scheduler.Schedule(ctx, key); err != nil {
			log.Error().Err(err).
				Str("conversationKey", key).
				Msg("failed to re-arm dispatch after reclaim")
		}
	}
}
