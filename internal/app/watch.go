package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lotero/internal/ingest"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

// Watch syncs immediately and then every interval until ctx is done. A pass
// still running when the next tick fires is not overlapped.
func (a *App) Watch(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("invalid watch interval %s", every)
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(a.Location))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			res, err := a.Sync(ctx)
			if err != nil {
				if errors.Is(err, ingest.ErrSyncInProgress) {
					return
				}
				log.Printf("[Scheduler] sync failed: %v", err)
				return
			}
			log.Printf("[Scheduler] sync done: %d found, %d new", res.Found, len(res.Inserted))
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule sync: %w", err)
	}

	sched.Start()
	log.Printf("Watching mailbox every %s", every)

	<-ctx.Done()
	return sched.Shutdown()
}
