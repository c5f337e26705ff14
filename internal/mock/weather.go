package mock

import "strings"

// ErrNoWeather is the message reported for cities without data.
const ErrNoWeather = "Weather data not available in this city"

// Weather is the payload of getWeatherByCityName. Temp is null when the
// city is unknown, in which case Error is set instead of Forecast.
type Weather struct {
	Temp     *string `json:"temp"`
	Forecast string  `json:"forecast,omitempty"`
	Error    string  `json:"error,omitempty"`
}

type forecast struct {
	temp     string
	forecast string
}

var forecasts = map[string]forecast{
	"new york": {temp: "22°C", forecast: "Partly cloudy with a breeze"},
	"london":   {temp: "16°C", forecast: "Rainy and overcast"},
}

// LookupWeather returns the mock weather for city. Matching ignores case
// and surrounding whitespace.
func LookupWeather(city string) Weather {
	f, ok := forecasts[strings.ToLower(strings.TrimSpace(city))]
	if !ok {
		return Weather{Error: ErrNoWeather}
	}
	temp := f.temp
	return Weather{Temp: &temp, Forecast: f.forecast}
}
