package businessflow

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirphl/wilaya-connect/app/dto"
	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCategories_WithoutCache(t *testing.T) {
	flow := NewCategoryFlow(nil, "", 0, quietLogger())

	resp, err := flow.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Categories, len(models.AvailableCategories))
	assert.Equal(t, "etat-civil", resp.Categories[0].ID)
	assert.Equal(t, "État Civil", resp.Categories[0].Name)
	assert.NotEmpty(t, resp.Categories[0].Description)
}

func TestListCategories_Cached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	flow := NewCategoryFlow(rdb, "wc:", time.Minute, quietLogger())
	key := "wc:" + utils.CategoriesCacheKey

	resp, err := flow.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, resp.Categories, len(models.AvailableCategories))
	require.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	// a cached payload is served as-is
	cached, err := json.Marshal(dto.ListCategoriesResponse{Categories: []dto.CategoryDTO{{ID: "x", Name: "Only"}}})
	require.NoError(t, err)
	require.NoError(t, mr.Set(key, string(cached)))

	resp, err = flow.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Categories, 1)
	assert.Equal(t, "Only", resp.Categories[0].Name)

	// corrupt cache entries fall back to the catalog
	require.NoError(t, mr.Set(key, "{not json"))
	resp, err = flow.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, resp.Categories, len(models.AvailableCategories))
}

func TestListCategories_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	flow := NewCategoryFlow(rdb, "", time.Minute, quietLogger())
	resp, err := flow.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, resp.Categories, len(models.AvailableCategories))
}
