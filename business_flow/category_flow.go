package businessflow

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/amirphl/wilaya-connect/app/dto"
	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/redis/go-redis/v9"
)

// CategoryFlow serves the notification category catalog to the mobile app
type CategoryFlow interface {
	ListCategories(ctx context.Context) (*dto.ListCategoriesResponse, error)
}

type CategoryFlowImpl struct {
	rdb    *redis.Client
	key    string
	ttl    time.Duration
	logger *log.Logger
}

// NewCategoryFlow creates the catalog flow. rdb may be nil, in which case the
// catalog is rendered on every call.
func NewCategoryFlow(rdb *redis.Client, redisPrefix string, ttl time.Duration, logger *log.Logger) CategoryFlow {
	if ttl <= 0 {
		ttl = utils.CategoriesCacheDuration
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CategoryFlowImpl{
		rdb:    rdb,
		key:    redisPrefix + utils.CategoriesCacheKey,
		ttl:    ttl,
		logger: logger,
	}
}

func (f *CategoryFlowImpl) ListCategories(ctx context.Context) (*dto.ListCategoriesResponse, error) {
	if f.rdb != nil {
		raw, err := f.rdb.Get(ctx, f.key).Bytes()
		switch {
		case err == nil:
			var cached dto.ListCategoriesResponse
			if jerr := json.Unmarshal(raw, &cached); jerr == nil {
				return &cached, nil
			}
		case err != redis.Nil:
			f.logger.Printf("category cache read failed: %v", err)
		}
	}

	resp := &dto.ListCategoriesResponse{Categories: make([]dto.CategoryDTO, 0, len(models.AvailableCategories))}
	for _, c := range models.AvailableCategories {
		resp.Categories = append(resp.Categories, ToCategoryDTO(c))
	}

	if f.rdb != nil {
		if raw, err := json.Marshal(resp); err == nil {
			if err := f.rdb.Set(ctx, f.key, raw, f.ttl).Err(); err != nil {
				f.logger.Printf("category cache write failed: %v", err)
			}
		}
	}
	return resp, nil
}
