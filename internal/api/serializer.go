package api

import (
	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

// JSONSerializer renders and binds JSON with goccy/go-json.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(c *echo.Context, target any, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(target)
}

func (JSONSerializer) Deserialize(c *echo.Context, target any) error {
	return json.NewDecoder(c.Request().Body).Decode(target)
}
