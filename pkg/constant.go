package pkg

import "strings"

const (
	// duplicate classifier thresholds, degree units (unprojected lon/lat)
	CENTROID_DISTANCE_THRESHOLD = 0.001
	MIN_DISTANCE_THRESHOLD      = 0.0003
	PARALLEL_TOLERANCE          = 0.01 // 1 - |cos| band around 0/180 degrees

	// side of the centroid box used by the spatial index (half offset 0.0005 each way)
	INDEX_BOX_SIZE = 0.001

	LINK_SUFFIX = "_link"

	// parallel road matching: 1 - |cos| band, looser than the duplicate one
	ALIGNMENT_TOLERANCE = 0.1
)

// study road classes, in output column order
var DefaultRoadClasses = []string{
	"motorway", "primary", "secondary", "tertiary", "trunk",
	"residential", "service", "footway", "subway", "light_rail", "monorail",
}

// classes of the connectivity matrix, before trunk/service are merged into motorway/residential
var ConnectivityRoadClasses = []string{
	"motorway", "trunk", "primary", "secondary", "tertiary", "residential", "service", "footway",
}

// BaseRoadClass folds the ramp/connector variant into its base class: "motorway_link" -> "motorway".
func BaseRoadClass(class string) string {
	return strings.TrimSuffix(class, LINK_SUFFIX)
}

// MatchRoadClass. class of a segment belongs to the requested base class (or its _link variant).
func MatchRoadClass(segmentClass, requested string) bool {
	return segmentClass == requested || segmentClass == requested+LINK_SUFFIX
}
