package repository

import (
	"context"
	"errors"
	"time"

	"IncluScore/internal/domain/models"
	domrepo "IncluScore/internal/domain/repository"
	pkgcache "IncluScore/pkg/cache"
)

// CachedScoreStore keeps each beneficiary's latest score report in the
// layered cache so dashboard reads skip the engine.
type CachedScoreStore struct {
	cache pkgcache.Service
	ttl   time.Duration
}

func NewCachedScoreStore(cache pkgcache.Service, ttl time.Duration) *CachedScoreStore {
	return &CachedScoreStore{cache: cache, ttl: ttl}
}

func scoreKey(beneficiaryID string) string {
	return pkgcache.GenerateKey("score:latest", beneficiaryID)
}

func (s *CachedScoreStore) SetLatest(ctx context.Context, beneficiaryID string, report *models.ScoreReport) error {
	return s.cache.Set(ctx, scoreKey(beneficiaryID), report, s.ttl)
}

func (s *CachedScoreStore) GetLatest(ctx context.Context, beneficiaryID string) (*models.ScoreReport, error) {
	var report models.ScoreReport
	err := s.cache.Get(ctx, scoreKey(beneficiaryID), &report)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *CachedScoreStore) Invalidate(ctx context.Context, beneficiaryID string) error {
	return s.cache.Delete(ctx, scoreKey(beneficiaryID))
}

var _ domrepo.ScoreCache = (*CachedScoreStore)(nil)
