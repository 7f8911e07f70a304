package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/lintang-b-s/osmroadlength/pkg/datastructure"
	"github.com/lintang-b-s/osmroadlength/pkg/roadlength"
	"github.com/lintang-b-s/osmroadlength/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestComputeLengths(t *testing.T) {
	segments := []datastructure.RoadSegment{
		datastructure.NewRoadSegment("trunk", "LINESTRING (116.3 39.9, 116.31 39.9)", "1"),
		datastructure.NewRoadSegment("trunk_link", "LINESTRING (116.4 39.9, 116.41 39.9)", "2"),
		datastructure.NewRoadSegment("service", "LINESTRING (116.5 39.9, 116.5 39.91)", "3"),
	}
	rs := NewRoadLengthService(roadlength.NewCalculator(roadlength.DefaultOptions(), nil), zap.NewNop())

	lengths, err := rs.ComputeLengths(context.Background(), []string{"trunk_link", "service", "footway"}, segments, false)
	require.NoError(t, err)
	require.Len(t, lengths, 3)

	assert.Equal(t, "trunk", lengths[0].Result.Class)
	assert.Equal(t, 2, lengths[0].Result.UniqueCount)
	assert.Nil(t, lengths[0].Polylines)
	assert.Equal(t, "service", lengths[1].Result.Class)
	assert.Greater(t, lengths[1].Result.LengthKm, 1.0)
	assert.Zero(t, lengths[2].Result.LengthKm)

	lengths, err = rs.ComputeLengths(context.Background(), []string{"service"}, segments, true)
	require.NoError(t, err)
	assert.Len(t, lengths[0].Polylines, 1)
}

func TestComputeLengthsErrors(t *testing.T) {
	rs := NewRoadLengthService(roadlength.NewCalculator(roadlength.DefaultOptions(), nil), zap.NewNop())

	_, err := rs.ComputeLengths(context.Background(), nil, nil, false)
	assert.True(t, errors.Is(err, util.ErrBadParamInput))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rs.ComputeLengths(ctx, []string{"primary"}, nil, false)
	assert.True(t, errors.Is(err, context.Canceled))
}
