package controllers

import (
	"context"

	"github.com/lintang-b-s/osmroadlength/pkg/datastructure"
	"github.com/lintang-b-s/osmroadlength/pkg/http/usecases"
)

type RoadLengthService interface {
	ComputeLengths(ctx context.Context, classes []string, segments []datastructure.RoadSegment,
		includeGeometry bool) ([]usecases.ClassLength, error)
}
