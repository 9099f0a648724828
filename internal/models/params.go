package models

import (
	"strings"

	"github.com/goccy/go-json"
)

// ParamSpec declares one parameter of an Action.
type ParamSpec struct {
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// UnmarshalJSON accepts "required" both as a bool and as the strings
// "true"/"false" stored by older clients.
func (p *ParamSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type     string `json:"type"`
		Required any    `json:"required"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Type = raw.Type
	switch v := raw.Required.(type) {
	case bool:
		p.Required = v
	case string:
		p.Required = strings.EqualFold(v, "true")
	default:
		p.Required = false
	}
	return nil
}
