package aggregator

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lintang-b-s/osmroadlength/pkg/datastructure"
	"github.com/lintang-b-s/osmroadlength/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type tableKey struct {
	year int
	city string
}

// TableCache loads each (year, city) table once and shares it read-only between the class jobs of that table.
// concurrent misses on the same key are collapsed into one load.
type TableCache struct {
	source Source
	tables *lru.Cache[tableKey, []datastructure.RoadSegment]
	group  singleflight.Group
	log    *zap.Logger
}

func NewTableCache(source Source, size int, log *zap.Logger) (*TableCache, error) {
	tables, err := lru.New[tableKey, []datastructure.RoadSegment](size)
	if err != nil {
		return nil, err
	}
	return &TableCache{
		source: source,
		tables: tables,
		log:    log,
	}, nil
}

// Get. a transient load failure is retried once, a missing table is not retried.
func (tc *TableCache) Get(ctx context.Context, year int, city string) ([]datastructure.RoadSegment, error) {
	key := tableKey{year: year, city: city}
	if segments, ok := tc.tables.Get(key); ok {
		return segments, nil
	}

	v, err, _ := tc.group.Do(fmt.Sprintf("%d/%s", year, city), func() (interface{}, error) {
		if segments, ok := tc.tables.Get(key); ok {
			return segments, nil
		}

		segments, err := tc.source.Load(ctx, year, city)
		if err != nil && !errors.Is(err, util.ErrNotFound) && ctx.Err() == nil {
			tc.log.Warn("loading input table failed, retrying once",
				zap.Int("year", year), zap.String("city", city), zap.Error(err))
			segments, err = tc.source.Load(ctx, year, city)
		}
		if err != nil {
			return nil, err
		}

		tc.tables.Add(key, segments)
		return segments, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]datastructure.RoadSegment), nil
}
