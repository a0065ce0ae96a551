package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gavel/internal/common/cache"
	"gavel/internal/model"
	appErr "gavel/pkg/errors"
)

const (
	liveStatusKeyPrefix = "submission:status:"
	defaultLiveTTL      = 30 * time.Minute
)

// LiveStatusRepository holds the in-flight view of a submission while it
// waits for or runs through judging. Entries expire on their own; the MySQL
// row is the durable record.
type LiveStatusRepository interface {
	Set(ctx context.Context, status *model.LiveStatus) error
	Get(ctx context.Context, submissionID string) (*model.LiveStatus, error)
	Delete(ctx context.Context, submissionID string) error
}

// RedisLiveStatusRepository implements LiveStatusRepository.
type RedisLiveStatusRepository struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewLiveStatusRepository(c cache.Cache, ttl time.Duration) *RedisLiveStatusRepository {
	if ttl <= 0 {
		ttl = defaultLiveTTL
	}
	return &RedisLiveStatusRepository{cache: c, ttl: ttl}
}

func liveStatusKey(submissionID string) string {
	return liveStatusKeyPrefix + submissionID
}

func (r *RedisLiveStatusRepository) Set(ctx context.Context, status *model.LiveStatus) error {
	if status == nil || status.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "encode live status")
	}
	return r.cache.Set(ctx, liveStatusKey(status.SubmissionID), string(payload), r.ttl)
}

func (r *RedisLiveStatusRepository) Get(ctx context.Context, submissionID string) (*model.LiveStatus, error) {
	raw, err := r.cache.Get(ctx, liveStatusKey(submissionID))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, appErr.Newf(appErr.SubmissionNotFound, "no live status for submission %s", submissionID)
		}
		return nil, err
	}
	var status model.LiveStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "decode live status")
	}
	return &status, nil
}

func (r *RedisLiveStatusRepository) Delete(ctx context.Context, submissionID string) error {
	return r.cache.Del(ctx, liveStatusKey(submissionID))
}
