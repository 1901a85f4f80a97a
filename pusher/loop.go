package pusher

import (
	"context"
	"sync"

	"github.com/streadway/amqp"

	"go.mozilla.org/autoland/bus"
)

// JobConsumer is the subset of bus.Bus the pusher depends on to read jobs
// off the "hgpusher" routing key's queue, mirroring
// orchestrator.ResultConsumer.
type JobConsumer interface {
	Consume(queue, consumerTag string) (<-chan amqp.Delivery, error)
}

// Loop drains one job at a time off the pusher's queue and hands each to a
// Worker, grounded on the teacher's worker/pool.go Start/Stop-with-stopChan
// shape, generalized from a fixed worker pool to the single-lock-holder
// consume loop of spec.md §4.2/§9.
type Loop struct {
	worker *Worker
	queue  JobConsumer
	name   string
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewLoop builds a Loop reading queueName off consumer.
func NewLoop(worker *Worker, consumer JobConsumer, queueName string) *Loop {
	return &Loop{worker: worker, queue: consumer, name: queueName, stop: make(chan struct{})}
}

// Start launches the consume goroutine. It returns immediately; call Stop
// to shut it down.
func (l *Loop) Start(ctx context.Context) error {
	deliveries, err := l.queue.Consume(l.name, "pusher")
	if err != nil {
		return err
	}
	l.wg.Add(1)
	go l.run(ctx, deliveries)
	return nil
}

// Stop signals the consume goroutine to exit and waits for it to finish.
func (l *Loop) Stop() {
	close(l.stop)
	l.wg.Wait()
}

func (l *Loop) run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			job, err := bus.DecodeJob(d.Body)
			if err != nil {
				l.worker.Svc.Log.WithError(err).Warn("pusher: malformed job, dropping")
				d.Nack(false, false)
				continue
			}
			result := l.worker.Process(ctx, job)
			if err := l.worker.Svc.Bus.Publish(bus.RoutingKeyOrchestrator, result); err != nil {
				l.worker.Svc.Log.WithError(err).WithField("bug_id", job.BugID).Warn("pusher: failed to publish result, requeuing job")
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}
}
