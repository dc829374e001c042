package engine

import (
	"fmt"
	"math"
)

// Layer names one independently toggleable visual element.
type Layer string

const (
	LayerRays            Layer = "rays"
	LayerMedium          Layer = "medium"
	LayerEndpoints       Layer = "endpoints"
	LayerProjections     Layer = "projections"
	LayerMeanCircle      Layer = "meanCircle"
	LayerConnectionCurve Layer = "connectionCurve"
)

// Layers lists every toggleable layer in draw order.
var Layers = []Layer{
	LayerMedium,
	LayerRays,
	LayerMeanCircle,
	LayerProjections,
	LayerEndpoints,
	LayerConnectionCurve,
}

// ParseLayer maps a layer name from the UI to a Layer.
func ParseLayer(name string) (Layer, error) {
	for _, l := range Layers {
		if string(l) == name {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown layer %q", name)
}

// RenderOptions carries the UI-owned layer flags and ray opacity into a
// render call. It is a plain value: the renderer never reads UI state itself.
type RenderOptions struct {
	Rays            bool    `json:"rays"`
	Medium          bool    `json:"medium"`
	Endpoints       bool    `json:"endpoints"`
	Projections     bool    `json:"projections"`
	MeanCircle      bool    `json:"meanCircle"`
	ConnectionCurve bool    `json:"connectionCurve"`
	RayOpacity      float64 `json:"rayOpacity"`
}

// DefaultRayOpacity is the ray alpha used until the opacity control moves.
const DefaultRayOpacity = 0.3

// DefaultRenderOptions shows the medium, rays and endpoints.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Rays:       true,
		Medium:     true,
		Endpoints:  true,
		RayOpacity: DefaultRayOpacity,
	}
}

// Enabled reports whether layer l is switched on.
func (o RenderOptions) Enabled(l Layer) bool {
	switch l {
	case LayerRays:
		return o.Rays
	case LayerMedium:
		return o.Medium
	case LayerEndpoints:
		return o.Endpoints
	case LayerProjections:
		return o.Projections
	case LayerMeanCircle:
		return o.MeanCircle
	case LayerConnectionCurve:
		return o.ConnectionCurve
	}
	return false
}

// With returns a copy of o with layer l set to on.
func (o RenderOptions) With(l Layer, on bool) RenderOptions {
	switch l {
	case LayerRays:
		o.Rays = on
	case LayerMedium:
		o.Medium = on
	case LayerEndpoints:
		o.Endpoints = on
	case LayerProjections:
		o.Projections = on
	case LayerMeanCircle:
		o.MeanCircle = on
	case LayerConnectionCurve:
		o.ConnectionCurve = on
	}
	return o
}

// WithRayOpacity returns a copy of o with the ray opacity clamped to [0, 1].
// NaN resets it to DefaultRayOpacity.
func (o RenderOptions) WithRayOpacity(a float64) RenderOptions {
	o.RayOpacity = normalizeOpacity(a)
	return o
}

func normalizeOpacity(a float64) float64 {
	if math.IsNaN(a) {
		return DefaultRayOpacity
	}
	return clamp(a, 0, 1)
}
