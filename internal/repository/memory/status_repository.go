package memory

import (
	"time"

	"ai-orchestrator-be/internal/orchestrator"

	"github.com/patrickmn/go-cache"
)

// StatusRepository retains terminal session status projections after the
// orchestrator evicts the session. Entries expire per-item after 1 hour.
type StatusRepository struct {
	cache *cache.Cache
}

func NewStatusRepository() *StatusRepository {
	return &StatusRepository{
		cache: cache.New(1*time.Hour, 10*time.Minute),
	}
}

func (r *StatusRepository) Save(projection *orchestrator.SessionStatusProjection) {
	r.cache.Set(projection.ID, projection, cache.DefaultExpiration)
}

func (r *StatusRepository) Get(sessionID string) (*orchestrator.SessionStatusProjection, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*orchestrator.SessionStatusProjection), true
	}
	return nil, false
}

func (r *StatusRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}
