package chat

import (
	"go.uber.org/zap"

	"chatty/logger"
	"chatty/tools/safe"
)

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout spreads broadcast payloads over a small worker pool so a large
// roster push never runs on the caller's goroutine. Enqueueing into a
// client is non-blocking; a full queue means a slow client and the
// frame is dropped for that handle only.
type Fanout struct {
	jobs chan fanoutJob
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 256
	}
	f := &Fanout{jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		safe.Go(func() {
			for job := range f.jobs {
				for _, c := range job.conns {
					if !c.Enqueue(job.payload) {
						logger.Debug("fanout drop: slow or closed client",
							zap.String("user_id", c.UserID),
							zap.String("conn_id", c.ConnID))
					}
				}
			}
		})
	}
	return f
}

// Broadcast queues one payload for delivery to every given connection.
func (f *Fanout) Broadcast(conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	f.jobs <- fanoutJob{conns: conns, payload: payload}
}

// Close stops the workers once queued jobs drain.
func (f *Fanout) Close() {
	close(f.jobs)
}
