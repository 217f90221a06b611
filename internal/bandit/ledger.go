package bandit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ayuboiii/AILAB/internal/cache"
)

const (
	armCacheSize = 1024
	armCacheTTL  = 5 * time.Minute
)

// Ledger is the append-only record of pick/reward events. Statistics are
// always derived from the event sequence, never stored.
type Ledger struct {
	store Store
	arms  *cache.TTL[string, []Arm]
}

// NewLedger creates a ledger over the given store.
func NewLedger(store Store) *Ledger {
	armCache, err := cache.NewTTL[string, []Arm](armCacheSize, armCacheTTL)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(err)
	}
	return &Ledger{store: store, arms: armCache}
}

// Append validates and records one event, returning its id. A reward event
// without a reward value, or an arm id outside the experiment, fails with
// ErrInvalidEvent.
func (l *Ledger) Append(ctx context.Context, experimentID, armID string, typ EventType, reward *float64) (string, error) {
	if typ == EventReward && reward == nil {
		return "", fmt.Errorf("%w: reward event requires a reward value", ErrInvalidEvent)
	}

	arms, err := l.armsFor(ctx, experimentID)
	if err != nil {
		return "", err
	}
	if armID != "" && !armBelongs(arms, armID) {
		return "", fmt.Errorf("%w: arm %s does not belong to experiment %s", ErrInvalidEvent, armID, experimentID)
	}

	ev := &Event{
		ID:           uuid.NewString(),
		ExperimentID: experimentID,
		ArmID:        armID,
		Type:         typ,
		Reward:       reward,
		CreatedAt:    time.Now().UTC(),
	}
	if err := l.store.AppendEvent(ctx, ev); err != nil {
		return "", fmt.Errorf("append event: %w", err)
	}
	return ev.ID, nil
}

// StatsFor derives per-arm aggregates from the ordered event sequence.
// Arms with no events appear with zero-valued stats so policies can still
// consider them.
func (l *Ledger) StatsFor(ctx context.Context, experimentID string) (Stats, error) {
	arms, err := l.armsFor(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	stats := make(Stats, len(arms))
	index := make(map[string]int, len(arms))
	for i, arm := range arms {
		stats[i] = ArmStats{ArmID: arm.ID, Label: arm.Label}
		index[arm.ID] = i
	}

	events, err := l.store.ListEvents(ctx, experimentID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	for _, ev := range events {
		i, ok := index[ev.ArmID]
		if !ok {
			continue // arm deleted, reference nulled
		}
		switch ev.Type {
		case EventPick:
			stats[i].Picks++
		case EventReward:
			if ev.Reward != nil {
				stats[i].TotalReward += *ev.Reward
				stats[i].RewardCount++
			}
		}
	}

	for i := range stats {
		if stats[i].RewardCount > 0 {
			stats[i].AverageReward = stats[i].TotalReward / float64(stats[i].RewardCount)
		}
	}
	return stats, nil
}

// armsFor reads the experiment's arm list through the cache. Arms are fixed
// at creation, so cached entries cannot be stale.
func (l *Ledger) armsFor(ctx context.Context, experimentID string) ([]Arm, error) {
	if arms, ok := l.arms.Get(experimentID); ok {
		return arms, nil
	}
	arms, err := l.store.ListArms(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	l.arms.Set(experimentID, arms)
	return arms, nil
}

func armBelongs(arms []Arm, armID string) bool {
	for _, a := range arms {
		if a.ID == armID {
			return true
		}
	}
	return false
}
