package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
)

// SlotGenerationKey счётчик поколений кэша справочника слотов
const SlotGenerationKey = "slots:generation"

// SlotCacheRedisRepository ответы справочника слотов в redis.
// Ключи строятся под поколением; старое поколение не читается и доживает свой TTL
type SlotCacheRedisRepository struct {
	client *redis.Client
}

func NewSlotCacheRepository(client *redis.Client) *SlotCacheRedisRepository {
	return &SlotCacheRedisRepository{client: client}
}

// Generation текущее поколение, до первой инвалидации 0
func (r *SlotCacheRedisRepository) Generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, SlotGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get slot cache generation: %w", err)
	}
	return gen, nil
}

// BumpGeneration начинает новое поколение (INCR атомарен)
func (r *SlotCacheRedisRepository) BumpGeneration(ctx context.Context) (int64, error) {
	gen, err := r.client.Incr(ctx, SlotGenerationKey).Result()
	if err != nil {
		return 0, fmt.Errorf("bump slot cache generation: %w", err)
	}
	return gen, nil
}

// Load слоты по ключу; промах = apperr.ErrCacheMiss
func (r *SlotCacheRedisRepository) Load(ctx context.Context, key string) ([]*model.Slot, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get cached slots %s: %w", key, err)
	}

	var slots []*model.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, fmt.Errorf("decode cached slots %s: %w", key, err)
	}
	return slots, nil
}

// Save кладёт слоты под ключ на ttl
func (r *SlotCacheRedisRepository) Save(ctx context.Context, key string, slots []*model.Slot, ttl time.Duration) error {
	payload, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode cached slots %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("set cached slots %s: %w", key, err)
	}
	return nil
}
