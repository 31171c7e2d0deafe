// Package weather fetches the forecast and normalizes the provider's
// open-ended condition strings into the closed category set the renderer
// has icons for.
package weather

import (
	"strings"
	"time"
)

// Category is a display class, not a meteorological one: every provider
// condition collapses into one of these, and each has an icon.
type Category int

const (
	Unknown Category = iota
	Clear
	Cloudy
	PartlyCloudy
	Rain
	LightRain
	HeavyRain
	Snow
	Thunderstorm
	Fog
)

func (c Category) String() string {
	switch c {
	case Clear:
		return "clear"
	case Cloudy:
		return "cloudy"
	case PartlyCloudy:
		return "partly-cloudy"
	case Rain:
		return "rain"
	case LightRain:
		return "light-rain"
	case HeavyRain:
		return "heavy-rain"
	case Snow:
		return "snow"
	case Thunderstorm:
		return "thunderstorm"
	case Fog:
		return "fog"
	}
	return "unknown"
}

// IconFile is the SVG asset name for the category.
func (c Category) IconFile() string {
	return c.String() + ".svg"
}

// Summary is one normalized forecast record.
type Summary struct {
	Category  Category
	TempMax   float64
	TempMin   float64
	PrecipPct int
}

// Day is a weekday's forecast in the weekly panel.
type Day struct {
	Weekday time.Weekday
	Summary
}

// Set is everything one fetch produces: today, tomorrow and seven days,
// consumed read-only by the composer.
type Set struct {
	City      string
	Today     Summary
	Tomorrow  Summary
	Week      [7]Day
	FetchedAt time.Time
}

// Normalize maps a provider's primary condition plus its free-text
// description to a Category. Pure function: exact match on the primary
// first, then intensity qualifiers from the description. Unmapped
// primaries are Unknown, never guessed.
func Normalize(primary, description string) Category {
	desc := strings.ToLower(description)
	switch primary {
	case "Clear":
		return Clear
	case "Clouds":
		if strings.Contains(desc, "few") || strings.Contains(desc, "scattered") {
			return PartlyCloudy
		}
		return Cloudy
	case "Rain":
		if strings.Contains(desc, "light") {
			return LightRain
		}
		if strings.Contains(desc, "heavy") {
			return HeavyRain
		}
		return Rain
	case "Drizzle":
		return LightRain
	case "Snow":
		return Snow
	case "Thunderstorm":
		return Thunderstorm
	case "Mist", "Fog", "Haze", "Smoke":
		return Fog
	default:
		return Unknown
	}
}
