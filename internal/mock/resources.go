package mock

import "strings"

// Resource URIs.
const (
	ResourceAirports = "flights://airports"
	ResourceCities   = "weather://cities"
)

// Airport is an entry of the airport list.
type Airport struct {
	Code string
	Name string
	City string
}

// Airports is the static airport list.
var Airports = []Airport{
	{Code: "JFK", Name: "John F. Kennedy International Airport", City: "New York"},
	{Code: "LGA", Name: "LaGuardia Airport", City: "New York"},
	{Code: "LHR", Name: "Heathrow Airport", City: "London"},
	{Code: "LGW", Name: "Gatwick Airport", City: "London"},
}

// Cities lists the cities with weather data.
var Cities = []string{"New York", "London"}

func airportList() string {
	var b strings.Builder
	for _, a := range Airports {
		b.WriteString(a.Code + " - " + a.Name + " (" + a.City + ")\n")
	}
	return b.String()
}

func cityList() string {
	return strings.Join(Cities, "\n") + "\n"
}
