package repository

import (
	"context"
	"sync"
	"time"

	"fund-directory/internal/model"
)

// MemoryRefreshTokenRepository : журнал в памяти для тестов и запуска без БД.
// Все операции выполняются под одним мьютексом, поэтому Rotate атомарен.
type MemoryRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*model.RefreshToken
}

func NewMemoryRefreshTokenRepository() *MemoryRefreshTokenRepository {
	return &MemoryRefreshTokenRepository{tokens: make(map[string]*model.RefreshToken)}
}

func (r *MemoryRefreshTokenRepository) Insert(_ context.Context, token *model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token.ID]; ok {
		return model.ErrFamilyExists
	}
	if r.currentInFamily(token.TokenFamily) != nil {
		return model.ErrFamilyExists
	}

	r.tokens[token.ID] = cloneToken(token)
	return nil
}

func (r *MemoryRefreshTokenRepository) FindByID(_ context.Context, id string) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[id]
	if !ok {
		return nil, model.ErrTokenNotFound
	}
	return cloneToken(token), nil
}

func (r *MemoryRefreshTokenRepository) Rotate(_ context.Context, presentedID string, successor *model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	presented, ok := r.tokens[presentedID]
	if !ok || !presented.IsCurrent() {
		return model.ErrRotationConflict
	}
	if _, taken := r.tokens[successor.ID]; taken {
		return model.ErrRotationConflict
	}

	successorID := successor.ID
	presented.ReplacedByTokenID = &successorID
	r.tokens[successor.ID] = cloneToken(successor)
	return nil
}

func (r *MemoryRefreshTokenRepository) RevokeFamily(_ context.Context, family string, at time.Time) (int64, error) {
	return int64(len(r.revoke(func(t *model.RefreshToken) bool { return t.TokenFamily == family }, at))), nil
}

func (r *MemoryRefreshTokenRepository) RevokeAllForUser(_ context.Context, userID string, at time.Time) ([]string, error) {
	revoked := r.revoke(func(t *model.RefreshToken) bool { return t.UserID == userID }, at)

	seen := make(map[string]bool)
	families := []string{}
	for _, t := range revoked {
		if !seen[t.TokenFamily] {
			seen[t.TokenFamily] = true
			families = append(families, t.TokenFamily)
		}
	}
	return families, nil
}

// Family : строки семейства, для тестов
func (r *MemoryRefreshTokenRepository) Family(family string) []*model.RefreshToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tokens []*model.RefreshToken
	for _, t := range r.tokens {
		if t.TokenFamily == family {
			tokens = append(tokens, cloneToken(t))
		}
	}
	return tokens
}

// revoke : возвращает строки, отозванные этим вызовом
func (r *MemoryRefreshTokenRepository) revoke(match func(*model.RefreshToken) bool, at time.Time) []*model.RefreshToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	var revoked []*model.RefreshToken
	for _, t := range r.tokens {
		if t.RevokedAt == nil && match(t) {
			revokedAt := at
			t.RevokedAt = &revokedAt
			revoked = append(revoked, t)
		}
	}
	return revoked
}

func (r *MemoryRefreshTokenRepository) currentInFamily(family string) *model.RefreshToken {
	for _, t := range r.tokens {
		if t.TokenFamily == family && t.IsCurrent() {
			return t
		}
	}
	return nil
}

func cloneToken(t *model.RefreshToken) *model.RefreshToken {
	c := *t
	if t.RevokedAt != nil {
		revokedAt := *t.RevokedAt
		c.RevokedAt = &revokedAt
	}
	if t.ReplacedByTokenID != nil {
		replacedBy := *t.ReplacedByTokenID
		c.ReplacedByTokenID = &replacedBy
	}
	return &c
}
