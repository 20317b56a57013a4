package interview

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/terra-clan/interview-engine/internal/models"
)

// Selector draws random questions per difficulty tier. It is safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSelector creates a Selector. A nil source seeds from the clock.
func NewSelector(src rand.Source) *Selector {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>17|1)
	}
	return &Selector{rnd: rand.New(src)}
}

// SelectByTier validates that every tier holds enough items, then samples the configured
// number per tier without replacement. The result is grouped E, D, C, B, A.
func SelectByTier[T any](s *Selector, scope string, items []T, tierOf func(T) models.Difficulty, counts models.TierCounts) ([]T, error) {
	if err := counts.Validate(); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"questionsPerTier": err.Error()}}
	}

	byTier := make(map[models.Difficulty][]T, len(models.AllDifficulties))
	for _, item := range items {
		tier := tierOf(item)
		byTier[tier] = append(byTier[tier], item)
	}

	for _, tier := range models.AllDifficulties {
		required := counts[tier]
		if required > 0 && len(byTier[tier]) < required {
			return nil, &InsufficientQuestionsError{
				Scope:    scope,
				Tier:     tier,
				Found:    len(byTier[tier]),
				Required: required,
			}
		}
	}

	if counts.Total() == 0 {
		return nil, ErrNoQuestionsConfigured
	}

	selected := make([]T, 0, counts.Total())

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tier := range models.AllDifficulties {
		required := counts[tier]
		if required == 0 {
			continue
		}
		pool := append([]T(nil), byTier[tier]...)
		// Partial Fisher-Yates: the first `required` slots end up uniformly sampled
		for i := 0; i < required; i++ {
			j := i + s.rnd.IntN(len(pool)-i)
			pool[i], pool[j] = pool[j], pool[i]
		}
		selected = append(selected, pool[:required]...)
	}

	return selected, nil
}
