package datastructure

// RoadSegment is one input row. read-only once loaded.
type RoadSegment struct {
	class      string
	geometry   string // serialized WKT line geometry
	identifier string
}

func NewRoadSegment(class, geometry, identifier string) RoadSegment {
	return RoadSegment{
		class:      class,
		geometry:   geometry,
		identifier: identifier,
	}
}

func (s RoadSegment) GetClass() string {
	return s.class
}

func (s RoadSegment) GetGeometry() string {
	return s.geometry
}

func (s RoadSegment) GetIdentifier() string {
	return s.identifier
}
