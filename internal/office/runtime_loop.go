package office

import (
	"context"
	"time"

	"github.com/umfhero/pixel-agents/internal/office/presence"
)

func (o *Office) Run(ctx context.Context) error {
	defer close(o.done)
	defer o.presence.Stop()

	for {
		// Pending joins go first so replies to a surface's first request
		// find it registered.
		select {
		case j := <-o.join:
			o.handleJoin(j)
			o.publishMetrics()
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.stop:
			return nil
		case j := <-o.join:
			o.handleJoin(j)
		case id := <-o.leave:
			o.handleLeave(id)
		case m := <-o.inbox:
			o.handleSurface(m)
		case m := <-o.activity:
			o.handleActivity(m)
		case <-o.fileChanged:
			o.handleFileChanged()
		case f := <-o.decay:
			f()
		}
		o.publishMetrics()
	}
}

func (o *Office) Stop() {
	select {
	case <-o.stop:
	default:
		close(o.stop)
	}
}

// loopScheduler runs presence callbacks on the Run goroutine.
type loopScheduler struct{ o *Office }

func (s loopScheduler) AfterFunc(d time.Duration, f func()) presence.Timer {
	return time.AfterFunc(d, func() {
		select {
		case s.o.decay <- f:
		case <-s.o.done:
		}
	})
}
