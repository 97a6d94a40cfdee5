package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/solstudio/ig-agent-go/internal/config"
)

// Processor runs one processing pass for a conversation. A "not claimed" exit
// is a nil return; only genuine failures should surface as errors.
type Processor interface {
	Process(ctx context.Context, conversationKey string) error
}

// Worker drains due dispatch jobs on a ticker. Each job failure is retried
// with exponential backoff up to MaxDispatchAttempts, then abandoned; the
// aborted claim leaves the messages pending, so the next inbound webhook
// re-arms the conversation.
type Worker struct {
	dispatcher *Dispatcher
	processor  Processor
	interval   time.Duration
	done       chan struct{}
}

func NewWorker(dispatcher *Dispatcher, processor Processor, interval time.Duration) *Worker {
	return &Worker{
		dispatcher: dispatcher,
		processor:  processor,
		interval:   interval,
		done:       make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go w.run()
	log.Info().Dur("interval", w.interval).Msg("dispatch worker started")
}

func (w *Worker) Stop() {
	close(w.done)
	log.Info().Msg("dispatch worker stopped")
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.drain()
		}
	}
}

const drainBatchSize = 10

func (w *Worker) drain() {
	popCtx, cancel := context.WithTimeout(context.Background(), config.RedisOpTimeout)
	names, err := w.dispatcher.PopDue(popCtx, time.Now(), drainBatchSize)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("failed to pop due dispatch jobs")
		return
	}

	for _, name := range names {
		w.runJob(name)
	}
}

func (w *Worker) runJob(name string) {
	conversationKey, err := ParseJobName(name)
	if err != nil {
		log.Error().Err(err).Str("job", name).Msg("dropping malformed dispatch job")
		return
	}

	// Every job in the batch gets the full timeout, however long the jobs
	// before it ran.
	jobCtx, cancel := context.WithTimeout(context.Background(), config.DispatchJobTimeout)
	defer cancel()

	if err := w.processor.Process(jobCtx, conversationKey); err != nil {
		w.retry(name, conversationKey, err)
		return
	}

	clearCtx, cancel := context.WithTimeout(context.Background(), config.RedisOpTimeout)
	defer cancel()
	if err := w.dispatcher.ClearAttempts(clearCtx, name); err != nil {
		log.Warn().Err(err).Str("job", name).Msg("failed to clear dispatch attempts")
	}
}

func (w *Worker) retry(name, conversationKey string, cause error) {
	// Retry bookkeeping runs on its own deadline; the job context is
	// usually already spent when the pass failed.
	ctx, cancel := context.WithTimeout(context.Background(), config.RedisOpTimeout)
	defer cancel()

	attempts, err := w.dispatcher.BumpAttempts(ctx, name)
	if err != nil {
		log.Error().Err(err).Str("job", name).Msg("failed to count dispatch attempt")
		attempts = config.MaxDispatchAttempts
	}

	if attempts >= config.MaxDispatchAttempts {
		log.Error().
			Err(cause).
			Str("conversationKey", conversationKey).
			Str("job", name).
			Int64("attempts", attempts).
			Msg("dispatch abandoned after max attempts")
		if err := w.dispatcher.ClearAttempts(ctx, name); err != nil {
			log.Warn().Err(err).Str("job", name).Msg("failed to clear dispatch attempts")
		}
		return
	}

	backoff := config.DispatchBackoffBase * (1 << (attempts - 1))
	log.Warn().
		Err(cause).
		Str("conversationKey", conversationKey).
		Str("job", name).
		Int64("attempt", attempts).
		Dur("backoff", backoff).
		Msg("dispatch failed, retrying")

	if err := w.dispatcher.Requeue(ctx, name, backoff); err != nil {
		log.Error().Err(err).Str("job", name).Msg("failed to requeue dispatch job")
	}
}
