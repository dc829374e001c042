package scene

import (
	"encoding/json"
	"fmt"
	"math"
)

// DefaultDomainSize is the world half-extent used when a dataset omits
// parameters.size or sets it to zero.
const DefaultDomainSize = 10.0

// Dataset is one loaded simulation result. A Dataset returned by Decode is
// validated and must be treated as read-only: renderers and sessions share
// the same pointer without copying.
type Dataset struct {
	Parameters  Parameters `json:"parameters"`
	Medium      []Particle `json:"medium"`
	Rays        []Ray      `json:"rays"`
	Endpoints   []Point    `json:"endpoints"`
	Projections []Point    `json:"projections"`
	MeanRadius  float64    `json:"mean_radius"`
	Stats       Stats      `json:"stats"`
}

type Parameters struct {
	Seed       Count   `json:"seed"`
	N          Count   `json:"N"`
	Size       float64 `json:"size"`
	MinN       float64 `json:"min_n"`
	MaxN       float64 `json:"max_n"`
	NumRays    Count   `json:"num_rays"`
	MaxBounces Count   `json:"max_bounces"`
	MaxTime    float64 `json:"max_time"`
}

type Particle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	N      float64 `json:"n"`
}

type Stats struct {
	NumRays            Count `json:"num_rays"`
	NumMediumParticles Count `json:"num_medium_particles,omitempty"`
}

// Ray is a polyline in world coordinates, in the order the ray travelled.
type Ray []Point

// Point is a world coordinate pair, encoded as a two-element JSON array.
type Point struct {
	X float64
	Y float64
}

// DomainSize returns the world half-extent, falling back to DefaultDomainSize
// when the parameter is absent, zero or not a usable number.
func (p Parameters) DomainSize() float64 {
	if p.Size > 0 && !math.IsInf(p.Size, 0) {
		return p.Size
	}
	return DefaultDomainSize
}

func (pt Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{pt.X, pt.Y})
}

func (pt *Point) UnmarshalJSON(data []byte) error {
	var coords []float64
	if err := json.Unmarshal(data, &coords); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	if len(coords) != 2 {
		return fmt.Errorf("point: expected [x, y], got %d values", len(coords))
	}
	pt.X, pt.Y = coords[0], coords[1]
	return nil
}

// Count is an integer quantity that the preprocessing step may serialise as a
// float ("42.0"). Fractional values are rejected.
type Count int64

func (c *Count) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("count: %w", err)
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return fmt.Errorf("count: %v is not an integer", f)
	}
	*c = Count(f)
	return nil
}
