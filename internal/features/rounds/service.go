package rounds

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/settlement-engine/internal/common"
	"serotonyl.ru/settlement-engine/internal/features/prediction"
)

// Store is the persistence the lifecycle needs. *Repository implements it.
type Store interface {
	Get(ctx context.Context, id int64) (*Round, error)
	Transition(ctx context.Context, id int64, from, to State) (bool, error)
	SetResult(ctx context.Context, id int64, result string) (bool, error)
	ListByState(ctx context.Context, state State, before time.Time, limit int) ([]*Round, error)
}

// Service enforces the round state machine.
type Service struct {
	store         Store
	defaultLabels []string
	now           func() time.Time
}

// NewService builds the lifecycle service. binaryLabels are the outcomes
// accepted for binary rounds that do not list their own.
func NewService(store Store, binaryLabels []string) *Service {
	return &Service{store: store, defaultLabels: binaryLabels, now: time.Now}
}

func (s *Service) Get(ctx context.Context, id int64) (*Round, error) {
	return s.store.Get(ctx, id)
}

// ListByState returns rounds that have sat in state for at least minAge.
func (s *Service) ListByState(ctx context.Context, state State, minAge time.Duration, limit int) ([]*Round, error) {
	return s.store.ListByState(ctx, state, s.now().Add(-minAge), limit)
}

func (s *Service) Open(ctx context.Context, id int64) (*Round, error) {
	return s.advance(ctx, id, StateOpen)
}

func (s *Service) Close(ctx context.Context, id int64) (*Round, error) {
	return s.advance(ctx, id, StateClosed)
}

// MarkSettled moves a resulted round to settled. The caller must have checked
// that no pending wagers remain.
func (s *Service) MarkSettled(ctx context.Context, id int64) (*Round, error) {
	return s.advance(ctx, id, StateSettled)
}

func (s *Service) advance(ctx context.Context, id int64, to State) (*Round, error) {
	round, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(id, round.State, to); err != nil {
		return nil, err
	}
	ok, err := s.store.Transition(ctx, id, round.State, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		// somebody moved it first
		return nil, fmt.Errorf("%w: round %d changed state concurrently", common.ErrInvalidStateTransition, id)
	}

	log.WithFields(log.Fields{
		"round_id": id,
		"from":     round.State,
		"to":       to,
	}).Info("round state changed")

	return s.store.Get(ctx, id)
}

// DeclareResult validates result against the round category and writes it once.
func (s *Service) DeclareResult(ctx context.Context, id int64, result string) (*Round, error) {
	round, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if round.DeclaredResult != nil {
		return nil, fmt.Errorf("%w: round %d already has %q", common.ErrResultAlreadyDeclared, id, *round.DeclaredResult)
	}
	if err := checkTransition(id, round.State, StateResulted); err != nil {
		return nil, err
	}

	normalized, err := s.validateResult(round, result)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.SetResult(ctx, id, normalized)
	if err != nil {
		return nil, err
	}
	if !ok {
		latest, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if latest.DeclaredResult != nil {
			return nil, fmt.Errorf("%w: round %d already has %q", common.ErrResultAlreadyDeclared, id, *latest.DeclaredResult)
		}
		return nil, fmt.Errorf("%w: round %d is %s", common.ErrInvalidStateTransition, id, latest.State)
	}

	log.WithFields(log.Fields{
		"round_id": id,
		"result":   normalized,
	}).Info("round result declared")

	return s.store.Get(ctx, id)
}

func (s *Service) validateResult(round *Round, result string) (string, error) {
	normalized, err := prediction.NormalizeResult(round.Category, result)
	if err != nil {
		return "", err
	}
	if round.Category != prediction.CategoryBinary {
		return normalized, nil
	}

	labels := round.Outcomes
	if len(labels) == 0 {
		labels = s.defaultLabels
	}
	for _, l := range labels {
		if want, _ := prediction.NormalizeResult(prediction.CategoryBinary, l); want == normalized {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not one of %v", common.ErrInvalidResult, result, labels)
}
