package dashboard

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/seuros/amiri/internal/forecast"
	"github.com/seuros/amiri/internal/observability"
)

func key(product string, horizon int) forecast.Selection {
	return forecast.Selection{
		Product:     product,
		Region:      "North",
		HorizonDays: horizon,
		Today:       time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestCacheGetPut(t *testing.T) {
	m := observability.NewMetricsForTesting()
	c := NewCache(2, m)

	_, ok := c.Get(key("Candy A", 30))
	assert.False(t, ok)

	c.Put(key("Candy A", 30), View{Message: "a"})
	v, ok := c.Get(key("Candy A", 30))
	assert.True(t, ok)
	assert.Equal(t, "a", v.Message)

	_, ok = c.Get(key("Candy A", 31))
	assert.False(t, ok, "horizon is part of the key")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheEntries))
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2, nil)

	c.Put(key("A", 1), View{})
	c.Put(key("B", 1), View{})
	_, _ = c.Get(key("A", 1)) // B is now the oldest
	c.Put(key("C", 1), View{})

	_, okA := c.Get(key("A", 1))
	_, okB := c.Get(key("B", 1))
	_, okC := c.Get(key("C", 1))
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
	assert.Equal(t, 2, c.Len())
}

func TestCacheUpdateExistingKey(t *testing.T) {
	c := NewCache(2, nil)
	c.Put(key("A", 1), View{Message: "old"})
	c.Put(key("A", 1), View{Message: "new"})

	v, ok := c.Get(key("A", 1))
	assert.True(t, ok)
	assert.Equal(t, "new", v.Message)
	assert.Equal(t, 1, c.Len())
}

func TestCacheInvalidateAndPurge(t *testing.T) {
	c := NewCache(4, nil)
	c.Put(key("A", 1), View{})
	c.Put(key("B", 1), View{})
	c.Put(key("C", 1), View{})

	c.Invalidate(key("B", 1))
	_, ok := c.Get(key("B", 1))
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Invalidate(key("missing", 1))
	assert.Equal(t, 2, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())

	// still usable after purge
	c.Put(key("D", 1), View{})
	assert.Equal(t, 1, c.Len())
}
