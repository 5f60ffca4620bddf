// Package historian drains the public event log from Redis and persists it
// to Postgres in batches. Games that stop producing events before they
// complete are marked abandoned.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/atifkhan161/contract-crown-sub004/internal/protocol"
)

// Source yields queued records. ok is false when the wait timed out.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (rec protocol.Record, ok bool, err error)
}

type Store interface {
	InsertEvents(ctx context.Context, recs []protocol.Record) error
	MarkAbandoned(ctx context.Context, gameID uuid.UUID) error
}

type Config struct {
	BatchSize  int
	FlushDelay time.Duration
	// Inactivity is how long a game may stay silent before it is abandoned.
	Inactivity    time.Duration
	SweepInterval time.Duration
	PopTimeout    time.Duration
}

type Service struct {
	source Source
	store  Store
	cfg    Config
	logger *logrus.Entry
	now    func() time.Time

	batchMu sync.Mutex
	batch   []protocol.Record

	activityMu   sync.Mutex
	lastActivity map[uuid.UUID]time.Time
}

func New(source Source, store Store, cfg Config, logger *logrus.Entry) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = 500 * time.Millisecond
	}
	if cfg.Inactivity <= 0 {
		cfg.Inactivity = 10 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		source:       source,
		store:        store,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		batch:        make([]protocol.Record, 0, cfg.BatchSize),
		lastActivity: make(map[uuid.UUID]time.Time),
	}
}

// Run blocks until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(ctx) })
	g.Go(func() error { return s.flushLoop(ctx) })
	g.Go(func() error { return s.inactivityLoop(ctx) })
	s.logger.Info("historian started")
	err := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.logger.Info("historian stopped")
	return err
}

func (s *Service) readLoop(ctx context.Context) error {
	for {
		rec, ok, err := s.source.Pop(ctx, s.cfg.PopTimeout)
		if ok {
			s.Add(ctx, rec)
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.logger.WithError(err).Error("pop event")
		}
	}
}

func (s *Service) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

func (s *Service) inactivityLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Add tracks activity for the record's game and queues it, flushing once
// the batch is full.
func (s *Service) Add(ctx context.Context, rec protocol.Record) {
	s.activityMu.Lock()
	if rec.Type == protocol.EventGameComplete {
		delete(s.lastActivity, rec.GameID)
	} else {
		s.lastActivity[rec.GameID] = s.now()
	}
	s.activityMu.Unlock()

	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.cfg.BatchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch in one transaction. A failed batch is put
// back in front of the queue and retried on the next flush.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := s.batch
	s.batch = make([]protocol.Record, 0, s.cfg.BatchSize)
	s.batchMu.Unlock()

	if err := s.store.InsertEvents(ctx, pending); err != nil {
		s.logger.WithError(err).WithField("count", len(pending)).Error("flush events")
		if !errors.Is(err, context.Canceled) {
			s.batchMu.Lock()
			s.batch = append(pending, s.batch...)
			s.batchMu.Unlock()
		}
		return
	}
	s.logger.WithField("count", len(pending)).Debug("flushed events")
}

// Sweep marks every game that has been silent longer than the inactivity
// window as abandoned.
func (s *Service) Sweep(ctx context.Context) {
	now := s.now()
	var idle []uuid.UUID
	s.activityMu.Lock()
	for id, last := range s.lastActivity {
		if now.Sub(last) > s.cfg.Inactivity {
			idle = append(idle, id)
			delete(s.lastActivity, id)
		}
	}
	s.activityMu.Unlock()

	// events still waiting in the batch must land before the game closes
	if len(idle) > 0 {
		s.Flush(ctx)
	}
	for _, id := range idle {
		if err := s.store.MarkAbandoned(ctx, id); err != nil {
			s.logger.WithError(err).WithField("game_id", id).Error("mark game abandoned")
			continue
		}
		s.logger.WithField("game_id", id).Info("marked game abandoned due to inactivity")
	}
}

// Tracked reports how many games are being watched for inactivity.
func (s *Service) Tracked() int {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return len(s.lastActivity)
}
