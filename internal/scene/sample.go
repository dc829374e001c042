package scene

import (
	"math"
	"math/rand/v2"
)

// DeriveEndpointStats returns the last point of every ray with at least one
// point, the mean distance of those endpoints from the origin, and each
// endpoint projected radially onto the circle of that mean radius.
func DeriveEndpointStats(rays []Ray) (endpoints []Point, meanRadius float64, projections []Point) {
	for _, ray := range rays {
		if len(ray) == 0 {
			continue
		}
		endpoints = append(endpoints, ray[len(ray)-1])
	}
	if len(endpoints) == 0 {
		return nil, 0, nil
	}

	var sum float64
	for _, ep := range endpoints {
		sum += math.Hypot(ep.X, ep.Y)
	}
	meanRadius = sum / float64(len(endpoints))

	projections = make([]Point, len(endpoints))
	for i, ep := range endpoints {
		theta := math.Atan2(ep.Y, ep.X)
		projections[i] = Point{X: meanRadius * math.Cos(theta), Y: meanRadius * math.Sin(theta)}
	}
	return endpoints, meanRadius, projections
}

// NewSampleDataset builds a small deterministic dataset: a random medium and
// rays that random-walk away from the origin. It is used for demos and for
// the browser bridge when no data documents are available.
func NewSampleDataset(seed uint64) *Dataset {
	const (
		size       = 5.0
		particles  = 60
		numRays    = 40
		maxBounces = 12
		minN, maxN = 1.0, 1.5
	)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	medium := make([]Particle, particles)
	for i := range medium {
		medium[i] = Particle{
			X:      (rng.Float64()*2 - 1) * size,
			Y:      (rng.Float64()*2 - 1) * size,
			Radius: 0.05 + rng.Float64()*0.25,
			N:      minN + rng.Float64()*(maxN-minN),
		}
	}

	rays := make([]Ray, numRays)
	for i := range rays {
		angle := 2 * math.Pi * float64(i) / numRays
		ray := Ray{{X: 0, Y: 0}}
		x, y := 0.0, 0.0
		bounces := 2 + rng.IntN(maxBounces-1)
		for b := 0; b < bounces; b++ {
			angle += (rng.Float64() - 0.5) * 0.8
			step := 0.2 + rng.Float64()*0.6
			x += step * math.Cos(angle)
			y += step * math.Sin(angle)
			ray = append(ray, Point{X: x, Y: y})
		}
		rays[i] = ray
	}

	endpoints, meanRadius, projections := DeriveEndpointStats(rays)

	return &Dataset{
		Parameters: Parameters{
			Seed:       Count(seed),
			N:          particles,
			Size:       size,
			MinN:       minN,
			MaxN:       maxN,
			NumRays:    numRays,
			MaxBounces: maxBounces,
			MaxTime:    10,
		},
		Medium:      medium,
		Rays:        rays,
		Endpoints:   endpoints,
		Projections: projections,
		MeanRadius:  meanRadius,
		Stats: Stats{
			NumRays:            numRays,
			NumMediumParticles: particles,
		},
	}
}
