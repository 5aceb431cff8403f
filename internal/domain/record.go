package domain

// Normalized column names as produced by NormalizeColumnName.
const (
	ColumnDate                                      = "dt"
	ColumnCountry                                   = "country"
	ColumnState                                     = "state"
	ColumnCity                                      = "city"
	ColumnLatitude                                  = "latitude"
	ColumnLongitude                                 = "longitude"
	ColumnAverageTemperature                        = "averagetemperature"
	ColumnAverageTemperatureUncertainty             = "averagetemperatureuncertainty"
	ColumnLandAverageTemperature                    = "landaveragetemperature"
	ColumnLandAverageTemperatureUncertainty         = "landaveragetemperatureuncertainty"
	ColumnLandMaxTemperature                        = "landmaxtemperature"
	ColumnLandMaxTemperatureUncertainty             = "landmaxtemperatureuncertainty"
	ColumnLandMinTemperature                        = "landmintemperature"
	ColumnLandMinTemperatureUncertainty             = "landmintemperatureuncertainty"
	ColumnLandAndOceanAverageTemperature            = "landandoceanaveragetemperature"
	ColumnLandAndOceanAverageTemperatureUncertainty = "landandoceanaveragetemperatureuncertainty"
)

// RawTable is one chunk of a source file: a header and string rows.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// LocationKey is the identity tuple of a location. Empty strings are nulls.
type LocationKey struct {
	Granularity Granularity
	City        string
	State       string
	Country     string
}

// GlobalKey identifies the single global location.
var GlobalKey = LocationKey{Granularity: GranularityGlobal}

// Place is the location a reading describes. Each granularity carries only
// its own identifying fields.
type Place interface {
	Key() LocationKey
	place()
}

// GlobalPlace is the whole planet.
type GlobalPlace struct{}

func (GlobalPlace) Key() LocationKey { return GlobalKey }
func (GlobalPlace) place()           {}

// CountryPlace is a country-level reading.
type CountryPlace struct {
	Country string
}

func (p CountryPlace) Key() LocationKey {
	return LocationKey{Granularity: GranularityCountry, Country: p.Country}
}
func (CountryPlace) place() {}

// StatePlace is a state or province reading.
type StatePlace struct {
	State   string
	Country string
}

func (p StatePlace) Key() LocationKey {
	return LocationKey{Granularity: GranularityState, State: p.State, Country: p.Country}
}
func (StatePlace) place() {}

// CityPlace is a city reading with its published coordinates.
type CityPlace struct {
	City        string
	Country     string
	Coordinates Coordinates
}

func (p CityPlace) Key() LocationKey {
	return LocationKey{Granularity: GranularityCity, City: p.City, Country: p.Country}
}
func (CityPlace) place() {}

// Measurements holds the temperature columns of a reading. Nil is a missing
// value. Only the global source fills the land columns.
type Measurements struct {
	AverageTemperature                        *float64
	AverageTemperatureUncertainty             *float64
	LandAverageTemperature                    *float64
	LandAverageTemperatureUncertainty         *float64
	LandMaxTemperature                        *float64
	LandMaxTemperatureUncertainty             *float64
	LandMinTemperature                        *float64
	LandMinTemperatureUncertainty             *float64
	LandAndOceanAverageTemperature            *float64
	LandAndOceanAverageTemperatureUncertainty *float64
}

// Get returns the measurement stored under a normalized column name, or nil.
func (m *Measurements) Get(column string) *float64 {
	if f := m.field(column); f != nil {
		return *f
	}
	return nil
}

func (m *Measurements) set(column string, v *float64) bool {
	f := m.field(column)
	if f == nil {
		return false
	}
	*f = v
	return true
}

func (m *Measurements) field(column string) **float64 {
	switch column {
	case ColumnAverageTemperature:
		return &m.AverageTemperature
	case ColumnAverageTemperatureUncertainty:
		return &m.AverageTemperatureUncertainty
	case ColumnLandAverageTemperature:
		return &m.LandAverageTemperature
	case ColumnLandAverageTemperatureUncertainty:
		return &m.LandAverageTemperatureUncertainty
	case ColumnLandMaxTemperature:
		return &m.LandMaxTemperature
	case ColumnLandMaxTemperatureUncertainty:
		return &m.LandMaxTemperatureUncertainty
	case ColumnLandMinTemperature:
		return &m.LandMinTemperature
	case ColumnLandMinTemperatureUncertainty:
		return &m.LandMinTemperatureUncertainty
	case ColumnLandAndOceanAverageTemperature:
		return &m.LandAndOceanAverageTemperature
	case ColumnLandAndOceanAverageTemperatureUncertainty:
		return &m.LandAndOceanAverageTemperatureUncertainty
	default:
		return nil
	}
}

// Primary returns the temperature the missing-value strategy looks at.
func (m *Measurements) Primary(src Source) *float64 {
	if src == SourceGlobal {
		return m.LandAverageTemperature
	}
	return m.AverageTemperature
}

// Reading is one cleaned source row.
type Reading struct {
	Date         Date
	Source       Source
	SourceFile   string
	Place        Place
	Measurements Measurements

	// TemperatureMissing is set only under MissingFlag.
	TemperatureMissing bool
}

// Granularity returns the location level of the reading.
func (r Reading) Granularity() Granularity {
	return r.Source.Granularity()
}

// CleanStats counts what the cleaning stage saw and changed.
type CleanStats struct {
	RowsIn               int `json:"rows_in"`
	RowsOut              int `json:"rows_out"`
	Dropped              int `json:"dropped"`
	MissingTemperature   int `json:"missing_temperature"`
	InvalidDates         int `json:"invalid_dates"`
	InvalidCoordinates   int `json:"invalid_coordinates"`
	HemisphereMismatches int `json:"hemisphere_mismatches"`
}

// Add accumulates o into s.
func (s *CleanStats) Add(o CleanStats) {
	s.RowsIn += o.RowsIn
	s.RowsOut += o.RowsOut
	s.Dropped += o.Dropped
	s.MissingTemperature += o.MissingTemperature
	s.InvalidDates += o.InvalidDates
	s.InvalidCoordinates += o.InvalidCoordinates
	s.HemisphereMismatches += o.HemisphereMismatches
}

// CleanedTable is the cleaned form of one source.
type CleanedTable struct {
	Source   Source
	Readings []Reading
	Stats    CleanStats
}

// Append merges another cleaned chunk of the same source.
func (t *CleanedTable) Append(chunk CleanedTable) {
	t.Readings = append(t.Readings, chunk.Readings...)
	t.Stats.Add(chunk.Stats)
}
