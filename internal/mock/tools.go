package mock

import (
	"context"

	mcp "github.com/tmc/mockmcp"
)

// Tool names.
const (
	ToolTrackPackage = "trackPackage"
	ToolWeather      = "getWeatherByCityName"
)

// TrackPackageInput is the argument of trackPackage.
type TrackPackageInput struct {
	TrackingNumber string `json:"trackingNumber"`
}

var trackPackageSchema = mcp.Schema(
	mcp.String("trackingNumber", "Package tracking number"),
)

// TrackPackage reports the delivery status of a package.
func TrackPackage(_ context.Context, in TrackPackageInput) ([]mcp.Content, error) {
	return []mcp.Content{
		mcp.TextContent("Checking delivery status for: " + in.TrackingNumber),
	}, nil
}

// WeatherInput is the argument of getWeatherByCityName.
type WeatherInput struct {
	City string `json:"city"`
}

var weatherSchema = mcp.Schema(
	mcp.String("city", "Name of the city to get weather for"),
)

// WeatherByCityName returns the mock weather as JSON text. Unknown cities
// produce a payload with a null temperature rather than an error.
func WeatherByCityName(_ context.Context, in WeatherInput) ([]mcp.Content, error) {
	c, err := mcp.JSONContent(LookupWeather(in.City))
	if err != nil {
		return nil, err
	}
	return []mcp.Content{c}, nil
}
