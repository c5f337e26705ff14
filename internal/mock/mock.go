// Package mock provides the mock package tracking and weather tools and
// the static airport and city resources.
package mock

import (
	"fmt"

	mcp "github.com/tmc/mockmcp"
)

// Server identity advertised on initialize.
const (
	ServerName    = "Weather Data Fetcher"
	ServerVersion = "1.0.0"
)

// Register installs the mock tools and resources into reg.
func Register(reg *mcp.Registry) error {
	tools := []struct {
		name, desc string
		schema     mcp.InputSchema
		handler    mcp.ToolHandler
	}{
		{ToolTrackPackage, "Track delivery status using tracking number", trackPackageSchema, mcp.TypedTool(TrackPackage)},
		{ToolWeather, "Get weather data for New York or London", weatherSchema, mcp.TypedTool(WeatherByCityName)},
	}
	for _, t := range tools {
		if err := reg.RegisterTool(t.name, t.desc, t.schema, t.handler); err != nil {
			return fmt.Errorf("register %s: %w", t.name, err)
		}
	}

	resources := []struct {
		uri, desc string
		handler   mcp.ResourceHandler
	}{
		{ResourceAirports, "List of supported airports", mcp.StaticText(airportList())},
		{ResourceCities, "List of cities with weather data", mcp.StaticText(cityList())},
	}
	for _, r := range resources {
		if err := reg.RegisterResource(r.uri, r.desc, "text/plain", r.handler); err != nil {
			return fmt.Errorf("register %s: %w", r.uri, err)
		}
	}
	return nil
}
