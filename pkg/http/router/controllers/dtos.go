package controllers

import (
	"github.com/lintang-b-s/osmroadlength/pkg/datastructure"
	"github.com/lintang-b-s/osmroadlength/pkg/http/usecases"
)

type roadSegmentRequest struct {
	Class      string `json:"class" validate:"required"`
	Geometry   string `json:"geometry" validate:"required"`
	Identifier string `json:"identifier"`
}

type roadLengthRequest struct {
	Classes         []string             `json:"classes" validate:"required,min=1,dive,required"`
	Segments        []roadSegmentRequest `json:"segments" validate:"dive"`
	IncludeGeometry bool                 `json:"include_geometry"`
}

func (r roadLengthRequest) toRoadSegments() []datastructure.RoadSegment {
	segments := make([]datastructure.RoadSegment, len(r.Segments))
	for i, s := range r.Segments {
		segments[i] = datastructure.NewRoadSegment(s.Class, s.Geometry, s.Identifier)
	}
	return segments
}

type diagnosticResponse struct {
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

type classLengthResponse struct {
	Class          string               `json:"class"`
	LengthKm       float64              `json:"length_km"`
	LineCount      int                  `json:"line_count"`
	UniqueCount    int                  `json:"unique_count"`
	MultiPartCount int                  `json:"multi_part_count"`
	DuplicatePairs int                  `json:"duplicate_pairs"`
	Diagnostics    []diagnosticResponse `json:"diagnostics"`
	UniqueLines    []string             `json:"unique_lines,omitempty"` // encoded polylines
}

type roadLengthResponse struct {
	Lengths []classLengthResponse `json:"lengths"`
}

func NewRoadLengthResponse(lengths []usecases.ClassLength) roadLengthResponse {
	resp := roadLengthResponse{Lengths: make([]classLengthResponse, len(lengths))}
	for i, l := range lengths {
		diags := make([]diagnosticResponse, len(l.Result.Diagnostics))
		for j, d := range l.Result.Diagnostics {
			diags[j] = diagnosticResponse{Identifier: d.Identifier, Message: d.Err.Error()}
		}
		resp.Lengths[i] = classLengthResponse{
			Class:          l.Result.Class,
			LengthKm:       l.Result.LengthKm,
			LineCount:      l.Result.LineCount,
			UniqueCount:    l.Result.UniqueCount,
			MultiPartCount: l.Result.MultiPartCount,
			DuplicatePairs: len(l.Result.DuplicatePairs),
			Diagnostics:    diags,
			UniqueLines:    l.Polylines,
		}
	}
	return resp
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
