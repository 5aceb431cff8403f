// Package domain builds the climate star schema from Berkeley Earth
// temperature extracts.
//
// # Data Sources
//
// The five extracts come from the Kaggle "Climate Change: Earth Surface
// Temperature Data" dataset. Each file is monthly and keyed by the `dt`
// column ("1743-11-01"):
//
//	global      GlobalTemperatures.csv                     land / land+ocean averages, land max/min
//	country     GlobalLandTemperaturesByCountry.csv        AverageTemperature, Country
//	state       GlobalLandTemperaturesByState.csv          AverageTemperature, State, Country
//	major_city  GlobalLandTemperaturesByMajorCity.csv      AverageTemperature, City, Country, Latitude, Longitude
//	city        GlobalLandTemperaturesByCity.csv           same columns as major_city, ~8.6M rows
//
// Column names are normalized before use: lowercase, spaces and hyphens become
// underscores ("AverageTemperature" -> "averagetemperature").
//
// # Coordinate Format
//
// City extracts encode coordinates as a magnitude followed by a compass
// letter:
//
//	"57.05N" -> 57.05     "23.45S" -> -23.45
//	"10.33E" -> 10.33     "46.64W" -> -46.64
//
// Parsing is total. Anything that is not digits/dots followed by exactly one
// letter valid for the axis yields no value. The hemisphere letter is always
// read from the raw string; the sign of the parsed value is only used to
// cross-check it. See [ParseCoordinates].
//
// # Missing Values
//
// Empty cells and the literal "nan" are nulls. A missing temperature is kept
// by default because gaps carry information (instrument outages, periods
// without coverage). See [MissingStrategy].
//
// # Surrogate Keys
//
//	date_id      dense 1..N over distinct dates, ascending by date
//	location_id  dense 1..M in insertion order: global, country, state,
//	             major_city, city; duplicates on (granularity, city, state,
//	             country) keep the first row seen
//
// Location ids are not sorted by content, so they are stable across runs only
// as long as the input order is stable. Major cities are inserted before the
// full city list, so a city present in both keeps the major-city coordinates.
//
// # Sampling
//
// The full city list is far larger than the warehouse target needs. The
// location builder can keep a fixed-seed sample of distinct cities, and fact
// assembly can pre-sample large sources the same way. Sampling decides which
// cities ever get a location key; facts for unsampled cities are dropped at
// assembly and show up in [FactStats.MissingLocation]. See [SamplePolicy].
package domain
