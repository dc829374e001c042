package scene

import "math"

// Summary holds the read-only figures shown in the info panels. It is
// computed on demand and never cached on the Dataset.
type Summary struct {
	Parameters Parameters   `json:"parameters"`
	Medium     *MediumStats `json:"medium,omitempty"` // nil when the dataset has no medium
	Rays       RayStats     `json:"rays"`
}

type MediumStats struct {
	Count      int     `json:"count"`
	MeanRadius float64 `json:"meanRadius"`
	MinRadius  float64 `json:"minRadius"`
	MaxRadius  float64 `json:"maxRadius"`
	MeanIndex  float64 `json:"meanIndex"`
}

type RayStats struct {
	Count           int64   `json:"count"`
	MeanDistance    float64 `json:"meanDistance"`
	EndpointCount   int     `json:"endpointCount"`
	ProjectionCount int     `json:"projectionCount"`
}

// Summarize derives the info-panel figures from ds.
func Summarize(ds *Dataset) Summary {
	s := Summary{
		Parameters: ds.Parameters,
		Rays: RayStats{
			Count:           int64(ds.Stats.NumRays),
			MeanDistance:    ds.MeanRadius,
			EndpointCount:   len(ds.Endpoints),
			ProjectionCount: len(ds.Projections),
		},
	}

	if len(ds.Medium) == 0 {
		return s
	}

	m := &MediumStats{
		Count:     len(ds.Medium),
		MinRadius: math.Inf(1),
		MaxRadius: math.Inf(-1),
	}
	var sumR, sumN float64
	for _, p := range ds.Medium {
		sumR += p.Radius
		sumN += p.N
		m.MinRadius = math.Min(m.MinRadius, p.Radius)
		m.MaxRadius = math.Max(m.MaxRadius, p.Radius)
	}
	m.MeanRadius = sumR / float64(m.Count)
	m.MeanIndex = sumN / float64(m.Count)
	s.Medium = m

	return s
}
