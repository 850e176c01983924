package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Skufu/bloodpanel/internal/dataset"
	"github.com/Skufu/bloodpanel/internal/panel"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

var ErrNotReady = errors.New("classifier: model has not been trained")

type Service struct {
	source dataset.Source
	opts   Options
	log    logrus.FieldLogger

	slots *semaphore.Weighted
	cache *lru.Cache[string, *Model]
	model atomic.Pointer[Model]

	trainings atomic.Int64
}

func New(source dataset.Source, opts Options, logger logrus.FieldLogger) (*Service, error) {
	if source == nil {
		return nil, errors.New("classifier: nil training source")
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Service{
		source: source,
		opts:   opts,
		log:    logger,
		slots:  semaphore.NewWeighted(int64(opts.Concurrency)),
	}
	if opts.Mode == ModeRetrain && opts.CacheSize > 0 {
		cache, err := lru.New[string, *Model](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("classifier: create model cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

func (s *Service) Mode() Mode { return s.opts.Mode }

// Ready reports whether Predict can answer without failing on a missing
// model. Retrain mode is always ready.
func (s *Service) Ready() bool {
	return s.opts.Mode == ModeRetrain || s.model.Load() != nil
}

// Trainings counts completed fits since the service was created.
func (s *Service) Trainings() int64 { return s.trainings.Load() }

// Current returns the pretrained model, or nil.
func (s *Service) Current() *Model { return s.model.Load() }

// Warm fits the shared model in pretrained mode. It is a no-op in retrain
// mode.
func (s *Service) Warm(ctx context.Context) error {
	if s.opts.Mode != ModePretrained {
		return nil
	}
	table, err := s.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load training table: %w", err)
	}
	m, err := s.train(ctx, table)
	if err != nil {
		return err
	}
	s.model.Store(m)
	return nil
}

// Predict returns the label for one panel.
func (s *Service) Predict(ctx context.Context, input panel.Measurements) (int, error) {
	m, err := s.modelFor(ctx)
	if err != nil {
		return 0, err
	}
	label, err := m.Predict(input.Vector())
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	return label, nil
}

func (s *Service) modelFor(ctx context.Context) (*Model, error) {
	if s.opts.Mode == ModePretrained {
		if m := s.model.Load(); m != nil {
			return m, nil
		}
		return nil, ErrNotReady
	}

	table, err := s.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load training table: %w", err)
	}
	if s.cache == nil {
		return s.train(ctx, table)
	}

	hash := table.Hash()
	if m, ok := s.cache.Get(hash); ok {
		return m, nil
	}
	m, err := s.train(ctx, table)
	if err != nil {
		return nil, err
	}
	s.cache.Add(hash, m)
	return m, nil
}

// train fits on a worker goroutine holding one of the service's slots. The
// caller stops waiting when ctx is done; the fit itself checks ctx between
// trees and gives its slot back when it returns.
func (s *Service) train(ctx context.Context, table dataset.Table) (*Model, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	type outcome struct {
		model *Model
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer s.slots.Release(1)
		m, err := Train(ctx, table, s.opts)
		done <- outcome{m, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		n := s.trainings.Add(1)
		s.log.WithFields(logrus.Fields{
			"table_hash": out.model.TableHash[:12],
			"train_rows": out.model.TrainRows,
			"test_rows":  out.model.TestRows,
			"accuracy":   out.model.Accuracy,
			"duration":   out.model.Duration,
			"trainings":  n,
		}).Debug("classifier trained")
		return out.model, nil
	}
}
