// Package templates implements a visual producer backed by a fixed library
// of client-side animation templates. It never performs network calls, which
// makes it the default (and fallback) visual producer: descriptors carry the
// template source identifier and no URL, and clients resolve the template
// payload themselves (see Data).
package templates

import (
	"context"

	"github.com/koscakluka/tutor-core/core/events"
	"github.com/koscakluka/tutor-core/core/visuals"
)

// Producer serves visual descriptors from the built-in template library.
type Producer struct{}

func New() *Producer {
	return &Producer{}
}

// Generate resolves a request to a template descriptor. Requests that name no
// known template and carry no description yield no visual.
func (p *Producer) Generate(_ context.Context, req visuals.Request) (*events.VisualDescriptor, error) {
	if p == nil {
		return nil, nil
	}

	template := req.Template
	if template == "" {
		template = templateForType(req.Type)
	}
	if _, ok := animations[template]; !ok {
		if req.Description == "" {
			return nil, nil
		}
		template = "generic_diagram"
	}

	descriptor := &events.VisualDescriptor{
		Type:        events.VisualAnimation,
		Source:      template,
		Description: req.Description,
	}
	if template == "generic_diagram" || template == "shape_circle" || template == "shape_triangle" {
		descriptor.Type = events.VisualTemplate
	}
	return descriptor, nil
}

func templateForType(visualType events.VisualType) string {
	switch visualType {
	case events.VisualAnimation:
		return "falling_object"
	default:
		return "generic_diagram"
	}
}

// Data returns the client-side payload for a template source identifier.
func Data(source string) (map[string]any, bool) {
	data, ok := animations[source]
	return data, ok
}

var animations = map[string]map[string]any{
	"falling_object": {
		"name":     "Falling Object",
		"duration": 2000,
		"objects": []map[string]any{
			{"type": "circle", "start": map[string]int{"x": 50, "y": 10}, "end": map[string]int{"x": 50, "y": 90}},
		},
		"easing": "easeInQuad",
	},
	"apple_falling": {
		"name":     "Apple Falling",
		"duration": 2000,
		"objects": []map[string]any{
			{"type": "apple", "start": map[string]int{"x": 50, "y": 20}, "end": map[string]int{"x": 50, "y": 85}},
		},
		"easing":           "easeInQuad",
		"show_force_arrow": true,
	},
	"pendulum_swing": {
		"name":      "Pendulum",
		"duration":  3000,
		"type":      "pendulum",
		"pivot":     map[string]int{"x": 50, "y": 10},
		"length":    60,
		"amplitude": 45,
	},
	"wave_motion": {
		"name":       "Wave",
		"duration":   4000,
		"type":       "sine_wave",
		"amplitude":  30,
		"wavelength": 50,
		"speed":      2,
	},
	"oscillation": {
		"name":        "Oscillation",
		"duration":    3000,
		"type":        "spring",
		"equilibrium": 50,
		"amplitude":   30,
	},
	"function_graph": {
		"name":     "Function Graph",
		"duration": 2000,
		"type":     "graph",
	},
	"shape_circle": {
		"name":     "Circle",
		"duration": 1000,
		"type":     "shape",
		"shape":    "circle",
	},
	"shape_triangle": {
		"name":     "Triangle",
		"duration": 1000,
		"type":     "shape",
		"shape":    "triangle",
	},
	"generic_diagram": {
		"name":     "Generic",
		"duration": 2000,
		"type":     "diagram",
	},
}
