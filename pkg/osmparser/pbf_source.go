package osmparser

import (
	"context"
	"io"
	"os"
	"runtime"
	"strconv"

	"github.com/lintang-b-s/osmroadlength/pkg/aggregator"
	"github.com/lintang-b-s/osmroadlength/pkg/datastructure"
	"github.com/lintang-b-s/osmroadlength/pkg/util"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type osmWay struct {
	id    osm.WayID
	class string
	nodes []osm.NodeID
}

// class tags, in lookup order. subway/light_rail/monorail live under railway.
var classKeys = []string{"highway", "railway"}

// PBFSource reads road segments straight from per-(year, city) openstreetmap extracts.
// every accepted way becomes one LINESTRING segment, class = its highway/railway tag value.
type PBFSource struct {
	pattern string
	procs   int
	log     *zap.Logger
}

// NewPBFSource. procs <= 0 decodes with one goroutine per cpu.
func NewPBFSource(pattern string, procs int, log *zap.Logger) *PBFSource {
	if procs <= 0 {
		procs = runtime.NumCPU()
	}
	return &PBFSource{pattern: pattern, procs: procs, log: log}
}

func (s *PBFSource) Load(ctx context.Context, year int, city string) ([]datastructure.RoadSegment, error) {
	path := aggregator.ExpandPattern(s.pattern, year, city)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, util.WrapErrorf(err, util.ErrNotFound, "openstreetmap extract %s not found", path)
		}
		return nil, errors.Wrapf(err, "can't open %s", path)
	}
	defer f.Close()

	s.log.Info("reading openstreetmap extract", zap.String("path", path))
	return ReadSegments(ctx, f, s.procs, s.log)
}

// ReadSegments. two passes over the pbf: ways first (node ids + class), then the coordinates of the referenced nodes.
func ReadSegments(ctx context.Context, r io.ReadSeeker, procs int, log *zap.Logger) ([]datastructure.RoadSegment, error) {
	ways := make([]osmWay, 0, 1024)
	needed := make(map[osm.NodeID]orb.Point)

	scanner := osmpbf.New(ctx, r, procs)
	scanner.SkipNodes = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		way, ok := scanner.Object().(*osm.Way)
		if !ok || len(way.Nodes) < 2 {
			continue
		}
		class := wayClass(way)
		if class == "" {
			continue
		}
		if (len(ways)+1)%50000 == 0 {
			log.Info("reading openstreetmap ways", zap.Int("count", len(ways)+1))
		}
		nodes := way.Nodes.NodeIDs()
		for _, id := range nodes {
			needed[id] = orb.Point{}
		}
		ways = append(ways, osmWay{id: way.ID, class: class, nodes: nodes})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, errors.Wrap(err, "can't scan ways")
	}
	scanner.Close()

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "can't rewind extract")
	}

	found := make(map[osm.NodeID]struct{}, len(needed))
	scanner = osmpbf.New(ctx, r, procs)
	scanner.SkipWays = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		node, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, ok := needed[node.ID]; ok {
			needed[node.ID] = orb.Point{node.Lon, node.Lat}
			found[node.ID] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, errors.Wrap(err, "can't scan nodes")
	}
	scanner.Close()

	segments := make([]datastructure.RoadSegment, 0, len(ways))
	missing := 0
	for _, w := range ways {
		ls := make(orb.LineString, 0, len(w.nodes))
		for _, id := range w.nodes {
			if _, ok := found[id]; !ok {
				// clipped extracts cut ways at the boundary
				missing++
				continue
			}
			ls = append(ls, needed[id])
		}
		if len(ls) < 2 {
			continue
		}
		segments = append(segments, datastructure.NewRoadSegment(w.class, wkt.MarshalString(ls),
			strconv.FormatInt(int64(w.id), 10)))
	}
	if missing > 0 {
		log.Debug("way nodes outside the extract", zap.Int("count", missing))
	}

	return segments, nil
}

func wayClass(way *osm.Way) string {
	for _, key := range classKeys {
		if v := way.Tags.Find(key); v != "" {
			return v
		}
	}
	return ""
}
