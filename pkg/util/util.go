package util

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/constraints"
)

// error

type Error struct {
	orig error
	msg  string
	code error
}

func (e *Error) Error() string {
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}

	return e.msg
}

func (e *Error) Unwrap() error {
	return e.orig
}

// Is lets errors.Is match the code of a wrapped error, e.g. errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	return e.code != nil && e.code == target
}

func WrapErrorf(orig error, code error, format string, a ...interface{}) error {
	return &Error{
		code: code,
		orig: orig,
		msg:  fmt.Sprintf(format, a...),
	}
}

func (e *Error) Code() error {
	return e.code
}

var (
	ErrInternalServerError = errors.New("internal Server Error")
	ErrNotFound            = errors.New("your requested Item is not found")
	ErrBadParamInput       = errors.New("given Param is not valid")
	ErrParseGeometry       = errors.New("malformed geometry text")
	ErrUnsupportedGeometry = errors.New("geometry type is not a line")
)

var MessageInternalServerError string = "internal server error"

func DegreeToRadians(angle float64) float64 {
	return angle * (math.Pi / 180.0)
}

func RadiansToDegree(rad float64) float64 {
	return 180.0 * rad / math.Pi
}

func Clamp[T constraints.Float](x, lo, hi T) T {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func StopConcurrentOperation(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// TitleRoadClass. "light_rail" -> "Light Rail", the column header used in the output tables.
func TitleRoadClass(class string) string {
	words := strings.Fields(strings.ReplaceAll(class, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// CleanCityName strips apostrophes, city names like "Xi'an" are stored without them on disk.
func CleanCityName(city string) string {
	return strings.ReplaceAll(city, "'", "")
}
