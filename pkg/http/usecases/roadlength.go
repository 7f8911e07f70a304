package usecases

import (
	"context"
	"runtime"

	"github.com/lintang-b-s/osmroadlength/pkg"
	"github.com/lintang-b-s/osmroadlength/pkg/datastructure"
	"github.com/lintang-b-s/osmroadlength/pkg/geo"
	"github.com/lintang-b-s/osmroadlength/pkg/roadlength"
	"github.com/lintang-b-s/osmroadlength/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ClassLength struct {
	Result    roadlength.BatchResult
	Polylines []string
}

type RoadLengthService struct {
	calc BatchCalculator
	log  *zap.Logger
}

func NewRoadLengthService(calc BatchCalculator, log *zap.Logger) *RoadLengthService {
	return &RoadLengthService{calc: calc, log: log}
}

// ComputeLengths runs one batch per requested class over the same segments, classes in parallel.
// "_link" classes are folded into their base class.
func (rs *RoadLengthService) ComputeLengths(ctx context.Context, classes []string,
	segments []datastructure.RoadSegment, includeGeometry bool) ([]ClassLength, error) {
	if len(classes) == 0 {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "at least one road class is required")
	}

	lengths := make([]ClassLength, len(classes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, class := range classes {
		g.Go(func() error {
			if util.StopConcurrentOperation(gctx) {
				return gctx.Err()
			}
			res := rs.calc.ComputeBatch(pkg.BaseRoadClass(class), segments)
			cl := ClassLength{Result: res}
			if includeGeometry {
				cl.Polylines = make([]string, len(res.UniqueLines))
				for j, ls := range res.UniqueLines {
					cl.Polylines[j] = geo.PolylineFromLine(ls)
				}
			}
			lengths[i] = cl
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError, "road length computation cancelled")
	}

	rs.log.Debug("road lengths computed", zap.Int("classes", len(classes)), zap.Int("segments", len(segments)))
	return lengths, nil
}
