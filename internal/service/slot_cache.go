package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
)

const defaultSlotCacheTTL = 30 * time.Second

// SlotCacheStore хранилище кэша справочника слотов (redis)
type SlotCacheStore interface {
	Generation(ctx context.Context) (int64, error)
	BumpGeneration(ctx context.Context) (int64, error)
	Load(ctx context.Context, key string) ([]*model.Slot, error)
	Save(ctx context.Context, key string, slots []*model.Slot, ttl time.Duration) error
}

// SlotCache кэш чтений справочника с поколениями.
// Инвалидация начинает новое поколение; ответ, прочитанный из БД до неё, не сохраняется
type SlotCache struct {
	store   SlotCacheStore
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// slotCacheTicket поколение, под которым началось чтение из БД
type slotCacheTicket struct {
	key        string
	generation int64
	ok         bool
}

// NewSlotCache nil store выключает кэш
func NewSlotCache(store SlotCacheStore, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *SlotCache {
	if ttl <= 0 {
		ttl = defaultSlotCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotCache{store: store, metrics: metrics, ttl: ttl, logger: logger}
}

func (c *SlotCache) Enabled() bool {
	return c != nil && c.store != nil
}

// Lookup ищет ответ под текущим поколением; при промахе ticket передаётся в Store
func (c *SlotCache) Lookup(ctx context.Context, key string) ([]*model.Slot, slotCacheTicket, bool) {
	if !c.Enabled() {
		return nil, slotCacheTicket{}, false
	}

	gen, err := c.store.Generation(ctx)
	if err != nil {
		c.logger.Warn("Slot cache generation unavailable", zap.Error(err))
		return nil, slotCacheTicket{}, false
	}
	ticket := slotCacheTicket{key: generationKey(gen, key), generation: gen, ok: true}

	start := time.Now()
	slots, err := c.store.Load(ctx, ticket.key)
	c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err == nil {
		return slots, ticket, true
	}
	if !errors.Is(err, apperr.ErrCacheMiss) {
		c.logger.Warn("Slot cache read failed", zap.String("key", ticket.key), zap.Error(err))
	}
	return nil, ticket, false
}

// Store сохраняет ответ, если поколение не сменилось с момента Lookup
func (c *SlotCache) Store(ctx context.Context, ticket slotCacheTicket, slots []*model.Slot) {
	if !c.Enabled() || !ticket.ok {
		return
	}

	gen, err := c.store.Generation(ctx)
	if err != nil {
		c.logger.Warn("Slot cache generation unavailable", zap.Error(err))
		return
	}
	if gen != ticket.generation {
		c.metrics.RecordStaleCacheWrite()
		c.logger.Debug("Skip stale slot cache write",
			zap.String("key", ticket.key),
			zap.Int64("read_generation", ticket.generation),
			zap.Int64("current_generation", gen),
		)
		return
	}

	start := time.Now()
	err = c.store.Save(ctx, ticket.key, slots, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("Slot cache write failed", zap.String("key", ticket.key), zap.Error(err))
	}
}

// Invalidate новое поколение: все ранее сохранённые ответы перестают читаться
func (c *SlotCache) Invalidate(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	gen, err := c.store.BumpGeneration(ctx)
	if err != nil {
		return err
	}
	c.logger.Debug("Slot cache invalidated", zap.Int64("generation", gen))
	return nil
}

func generationKey(gen int64, key string) string {
	return fmt.Sprintf("slots:g%d:%s", gen, key)
}
