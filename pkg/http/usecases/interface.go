package usecases

import (
	"github.com/lintang-b-s/osmroadlength/pkg/datastructure"
	"github.com/lintang-b-s/osmroadlength/pkg/roadlength"
)

type BatchCalculator interface {
	ComputeBatch(class string, segments []datastructure.RoadSegment) roadlength.BatchResult
}
