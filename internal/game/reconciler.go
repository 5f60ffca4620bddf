package game

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Reconciler periodically runs every room's reconcile pass and drops
// finished rooms once their retention has passed.
type Reconciler struct {
	Store     *RoomStore
	Interval  time.Duration
	Retention time.Duration
	Logger    *logrus.Entry
	Clock     func() time.Time
}

// Run blocks until ctx is cancelled.
func (rc *Reconciler) Run(ctx context.Context) error {
	interval := rc.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rc.Pass(ctx)
		}
	}
}

// Pass reconciles every room once.
func (rc *Reconciler) Pass(ctx context.Context) {
	now := time.Now()
	if rc.Clock != nil {
		now = rc.Clock()
	}
	for _, room := range rc.Store.Rooms() {
		if at, done := room.FinishedAt(); done && rc.Retention > 0 && now.Sub(at) > rc.Retention {
			rc.logger().WithField("room_id", room.ID).Info("removing finished room")
			rc.Store.Delete(room.ID)
			continue
		}
		passCtx, cancel := context.WithTimeout(ctx, time.Second)
		_, err := room.Reconcile(passCtx)
		cancel()
		if err != nil && !errors.Is(err, ErrRoomClosed) && !errors.Is(err, context.Canceled) {
			rc.logger().WithError(err).WithField("room_id", room.ID).Warn("reconcile pass failed")
		}
	}
}

func (rc *Reconciler) logger() *logrus.Entry {
	if rc.Logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return rc.Logger
}
