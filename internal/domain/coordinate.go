package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/climate-warehouse-etl/internal/cache"
)

// coordinateRe matches a magnitude followed by one compass letter,
// e.g. "57.05N". The magnitude is validated separately by strconv.
var coordinateRe = regexp.MustCompile(`^([0-9.]+)([NSEW])$`)

// Axis selects latitude or longitude.
type Axis int

const (
	AxisLatitude Axis = iota
	AxisLongitude
)

// Coordinates holds a parsed city position alongside the raw strings it came
// from. Nil Latitude/Longitude means the raw value could not be parsed.
type Coordinates struct {
	Latitude     *float64
	Longitude    *float64
	LatitudeRaw  string
	LongitudeRaw string
	HemisphereNS string
	HemisphereEW string
}

// ParseCoordinate converts a directional coordinate string to signed degrees.
// N and E are positive, S and W negative. Empty or malformed input returns
// nil.
func ParseCoordinate(raw string) *float64 {
	v, _, ok := parseDirectional(raw)
	if !ok {
		return nil
	}
	return &v
}

// ParseLatitude is ParseCoordinate restricted to N/S.
func ParseLatitude(raw string) *float64 {
	return parseAxis(raw, AxisLatitude)
}

// ParseLongitude is ParseCoordinate restricted to E/W.
func ParseLongitude(raw string) *float64 {
	return parseAxis(raw, AxisLongitude)
}

func parseAxis(raw string, axis Axis) *float64 {
	v, dir, ok := parseDirectional(raw)
	if !ok || !axisLetter(dir, axis) {
		return nil
	}
	return &v
}

func parseDirectional(raw string) (float64, byte, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	m := coordinateRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	dir := m[2][0]
	if dir == 'S' || dir == 'W' {
		v = -v
	}
	return v, dir, true
}

// Hemisphere returns the compass letter at the end of a raw coordinate
// string if it belongs to the axis ("N"/"S" for latitude, "E"/"W" for
// longitude), otherwise "".
func Hemisphere(raw string, axis Axis) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	last := s[len(s)-1]
	if !axisLetter(last, axis) {
		return ""
	}
	return string(last)
}

// FormatCoordinate renders signed degrees in directional form, the inverse of
// ParseCoordinate.
func FormatCoordinate(v float64, axis Axis) string {
	letter := "N"
	switch {
	case axis == AxisLatitude && v < 0:
		letter = "S"
	case axis == AxisLongitude && v < 0:
		letter = "W"
	case axis == AxisLongitude:
		letter = "E"
	}
	return strconv.FormatFloat(math.Abs(v), 'f', -1, 64) + letter
}

// ParseCoordinates parses a latitude/longitude pair. Hemispheres come from the
// raw strings; the boolean is false when a parsed sign disagrees with its
// hemisphere letter.
func ParseCoordinates(latRaw, lonRaw string) (Coordinates, bool) {
	c := Coordinates{
		Latitude:     ParseLatitude(latRaw),
		Longitude:    ParseLongitude(lonRaw),
		LatitudeRaw:  strings.TrimSpace(latRaw),
		LongitudeRaw: strings.TrimSpace(lonRaw),
		HemisphereNS: Hemisphere(latRaw, AxisLatitude),
		HemisphereEW: Hemisphere(lonRaw, AxisLongitude),
	}
	consistent := signAgrees(c.Latitude, c.HemisphereNS, AxisLatitude) &&
		signAgrees(c.Longitude, c.HemisphereEW, AxisLongitude)
	return c, consistent
}

// signAgrees checks a parsed value against its raw hemisphere letter. Zero
// lies on both sides.
func signAgrees(v *float64, hemisphere string, axis Axis) bool {
	if v == nil || hemisphere == "" || *v == 0 {
		return true
	}
	return hemisphereFromSign(*v, axis) == hemisphere
}

func hemisphereFromSign(v float64, axis Axis) string {
	if axis == AxisLatitude {
		if v >= 0 {
			return "N"
		}
		return "S"
	}
	if v >= 0 {
		return "E"
	}
	return "W"
}

func axisLetter(c byte, axis Axis) bool {
	if axis == AxisLatitude {
		return c == 'N' || c == 'S'
	}
	return c == 'E' || c == 'W'
}

type coordinatePair struct {
	lat, lon string
}

type parsedCoordinates struct {
	coords     Coordinates
	consistent bool
}

// CoordinateParser memoizes ParseCoordinates. The city extract repeats a few
// thousand coordinate pairs across millions of rows.
type CoordinateParser struct {
	cache *cache.LRU[coordinatePair, parsedCoordinates]
}

// NewCoordinateParser returns a parser caching up to size pairs. A
// non-positive size disables caching.
func NewCoordinateParser(size int) *CoordinateParser {
	if size <= 0 {
		return &CoordinateParser{}
	}
	return &CoordinateParser{cache: cache.New[coordinatePair, parsedCoordinates](size)}
}

// Parse behaves like ParseCoordinates.
func (p *CoordinateParser) Parse(latRaw, lonRaw string) (Coordinates, bool) {
	if p == nil || p.cache == nil {
		return ParseCoordinates(latRaw, lonRaw)
	}
	key := coordinatePair{lat: latRaw, lon: lonRaw}
	if hit, ok := p.cache.Get(key); ok {
		return hit.coords, hit.consistent
	}
	c, ok := ParseCoordinates(latRaw, lonRaw)
	p.cache.Put(key, parsedCoordinates{coords: c, consistent: ok})
	return c, ok
}
