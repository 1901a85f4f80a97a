package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.mozilla.org/autoland/bus"
)

// Loop drives the orchestrator's three concerns in independent goroutines —
// tracker polling and the comment outbox sweep on their own tickers, result
// draining on the bus delivery channel — instead of the source's three
// cooperatively-scheduled coroutines. Grounded on the teacher's
// worker/pool.go Pool/Worker Start/Stop shape: one goroutine per concern,
// each selecting on its ticker or delivery channel and a shared stop channel.
type Loop struct {
	svc  *Services
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewLoop builds a Loop over svc.
func NewLoop(svc *Services) *Loop {
	return &Loop{svc: svc, stop: make(chan struct{})}
}

// Start launches the poll, result-drain, and outbox goroutines. It returns
// immediately; call Stop to shut them down.
func (l *Loop) Start(ctx context.Context) {
	l.wg.Add(3)
	go l.runPoll(ctx)
	go l.runResults(ctx)
	go l.runOutbox(ctx)
}

// Stop signals every goroutine to exit and waits for them to finish.
func (l *Loop) Stop() {
	close(l.stop)
	l.wg.Wait()
}

func (l *Loop) runPoll(ctx context.Context) {
	defer l.wg.Done()
	ticker := time.NewTicker(l.svc.Config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case <-ticker.C:
			if err := Discover(ctx, l.svc, time.Now()); err != nil {
				l.svc.Log.WithError(err).Warn("orchestrator: discover tick failed")
			}
		}
	}
}

func (l *Loop) runOutbox(ctx context.Context) {
	defer l.wg.Done()
	ticker := time.NewTicker(l.svc.Config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case <-ticker.C:
			if err := l.svc.Outbox.Tick(ctx, time.Now()); err != nil {
				l.svc.Log.WithError(err).Warn("orchestrator: outbox tick failed")
			}
		}
	}
}

func (l *Loop) runResults(ctx context.Context) {
	defer l.wg.Done()
	deliveries, err := l.svc.Results.Consume(l.svc.ResultsQueue, "orchestrator")
	if err != nil {
		l.svc.Log.WithError(err).Error("orchestrator: result consumer failed to start")
		return
	}
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
			result, err := bus.DecodeResult(d.Body)
			if err != nil {
				l.svc.Log.WithError(err).Warn("orchestrator: malformed result, dropping")
				d.Nack(false, false)
				continue
			}
			if err := OnResult(ctx, l.svc, result, time.Now()); err != nil {
				l.svc.Log.WithError(err).WithField("bug_id", result.BugID).Warn("orchestrator: on_result failed, requeuing")
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}
}
