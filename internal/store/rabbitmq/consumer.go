package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// HandleFunc processes one job. A non-nil error dead-letters the delivery.
type HandleFunc func(ctx context.Context, msg JobMessage) error

var errBadMessage = errors.New("rabbitmq: bad job message")

// Serve feeds deliveries to a pool of concurrency workers until ctx ends or
// msgs is closed, then waits for in-flight jobs.
func Serve(ctx context.Context, msgs <-chan amqp.Delivery, concurrency int, handle HandleFunc, log logrus.FieldLogger) {
	if concurrency <= 0 {
		concurrency = 1
	}
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				process(ctx, workerID, d, handle, log)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("worker: shutting down")
			return
		case d, ok := <-msgs:
			if !ok {
				log.Warn("worker: delivery channel closed")
				return
			}
			jobs <- d
		}
	}
}

func process(ctx context.Context, workerID int, d amqp.Delivery, handle HandleFunc, log logrus.FieldLogger) {
	var m JobMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
		if err == nil {
			err = errBadMessage
		}
		log.WithError(err).WithField("worker", workerID).Warn("worker: bad message")
		_ = d.Nack(false, false)
		return
	}

	entry := log.WithFields(logrus.Fields{"worker": workerID, "job_id": m.JobID})
	start := time.Now()
	if err := handle(ctx, m); err != nil {
		entry.WithError(err).WithField("cost", time.Since(start).String()).Warn("worker: job failed")
		_ = d.Nack(false, false)
		return
	}
	if err := d.Ack(false); err != nil {
		entry.WithError(err).Warn("worker: ack failed")
	}
}
