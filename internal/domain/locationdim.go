package domain

// LocationRow is one row of the location dimension. Empty strings and nil
// pointers are nulls.
type LocationRow struct {
	LocationID   int         `json:"location_id"`
	Granularity  Granularity `json:"granularity"`
	City         string      `json:"city,omitempty"`
	State        string      `json:"state,omitempty"`
	Country      string      `json:"country,omitempty"`
	Latitude     *float64    `json:"latitude,omitempty"`
	Longitude    *float64    `json:"longitude,omitempty"`
	LatitudeRaw  string      `json:"latitude_raw,omitempty"`
	LongitudeRaw string      `json:"longitude_raw,omitempty"`
	HemisphereNS string      `json:"hemisphere_ns,omitempty"`
	HemisphereEW string      `json:"hemisphere_ew,omitempty"`
}

// Key returns the identity tuple of the row.
func (r LocationRow) Key() LocationKey {
	return LocationKey{Granularity: r.Granularity, City: r.City, State: r.State, Country: r.Country}
}

// LocationOptions configures BuildLocationDimension.
type LocationOptions struct {
	// CitySample bounds the distinct locations taken from the full city
	// source. Cities left out never get a location id, so their facts drop.
	CitySample SamplePolicy
}

// BuildLocationDimension unifies the location identities of all sources.
// The global row comes first, then distinct places from the country, state,
// major_city and city sources in first-appearance order. Duplicate identity
// tuples keep their first row. Ids are dense and follow that order.
func BuildLocationDimension(tables map[Source]CleanedTable, opts LocationOptions) []LocationRow {
	rows := []LocationRow{{Granularity: GranularityGlobal}}
	for _, src := range Sources() {
		if src == SourceGlobal {
			continue
		}
		t, ok := tables[src]
		if !ok {
			continue
		}
		candidates := distinctPlaces(t.Readings)
		if src == SourceCity {
			candidates = Sample(candidates, opts.CitySample)
		}
		rows = append(rows, candidates...)
	}

	seen := make(map[LocationKey]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := r.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		r.LocationID = len(out) + 1
		out = append(out, r)
	}
	return out
}

// distinctPlaces returns one row per distinct place tuple. City tuples
// include the raw coordinates, so a city published with two positions
// yields two candidates that later collapse to the first.
func distinctPlaces(readings []Reading) []LocationRow {
	type cityTuple struct {
		key      LocationKey
		lat, lon string
	}
	seen := make(map[cityTuple]struct{})
	var rows []LocationRow
	for _, r := range readings {
		row, ok := locationRowFor(r.Place)
		if !ok {
			continue
		}
		t := cityTuple{key: row.Key(), lat: row.LatitudeRaw, lon: row.LongitudeRaw}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		rows = append(rows, row)
	}
	return rows
}

// locationRowFor builds the dimension row for a place. Places without their
// defining name get no row.
func locationRowFor(p Place) (LocationRow, bool) {
	switch v := p.(type) {
	case CountryPlace:
		if v.Country == "" {
			return LocationRow{}, false
		}
		return LocationRow{Granularity: GranularityCountry, Country: v.Country}, true
	case StatePlace:
		if v.State == "" {
			return LocationRow{}, false
		}
		return LocationRow{Granularity: GranularityState, State: v.State, Country: v.Country}, true
	case CityPlace:
		if v.City == "" {
			return LocationRow{}, false
		}
		c := v.Coordinates
		return LocationRow{
			Granularity:  GranularityCity,
			City:         v.City,
			Country:      v.Country,
			Latitude:     c.Latitude,
			Longitude:    c.Longitude,
			LatitudeRaw:  c.LatitudeRaw,
			LongitudeRaw: c.LongitudeRaw,
			HemisphereNS: c.HemisphereNS,
			HemisphereEW: c.HemisphereEW,
		}, true
	default:
		return LocationRow{}, false
	}
}

// LocationIndex resolves an identity tuple to its location_id.
type LocationIndex map[LocationKey]int

// NewLocationIndex indexes a built location dimension.
func NewLocationIndex(rows []LocationRow) LocationIndex {
	idx := make(LocationIndex, len(rows))
	for _, r := range rows {
		idx[r.Key()] = r.LocationID
	}
	return idx
}

// Lookup returns the location_id for a place.
func (idx LocationIndex) Lookup(p Place) (int, bool) {
	if p == nil {
		return 0, false
	}
	id, ok := idx[p.Key()]
	return id, ok
}
