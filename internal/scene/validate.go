package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid dataset")

// Decode parses a merged dataset document and validates it.
func Decode(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Validate checks the invariants the renderer relies on. It never modifies
// the dataset.
func (ds *Dataset) Validate() error {
	p := ds.Parameters
	if math.IsNaN(p.Size) || p.Size < 0 {
		return fmt.Errorf("%w: parameters.size must be >= 0, got %v", ErrInvalid, p.Size)
	}
	if p.MinN > p.MaxN {
		return fmt.Errorf("%w: min_n %v exceeds max_n %v", ErrInvalid, p.MinN, p.MaxN)
	}
	if !finite(ds.MeanRadius) || ds.MeanRadius < 0 {
		return fmt.Errorf("%w: mean_radius must be a non-negative number, got %v", ErrInvalid, ds.MeanRadius)
	}

	for i, particle := range ds.Medium {
		if !finite(particle.X) || !finite(particle.Y) || !finite(particle.N) {
			return fmt.Errorf("%w: medium[%d] has a non-finite value", ErrInvalid, i)
		}
		if !finite(particle.Radius) || particle.Radius < 0 {
			return fmt.Errorf("%w: medium[%d] radius must be >= 0, got %v", ErrInvalid, i, particle.Radius)
		}
	}

	for i, ray := range ds.Rays {
		for j, pt := range ray {
			if !pt.finite() {
				return fmt.Errorf("%w: rays[%d][%d] is not finite", ErrInvalid, i, j)
			}
		}
	}
	if err := checkPoints("endpoints", ds.Endpoints); err != nil {
		return err
	}
	return checkPoints("projections", ds.Projections)
}

func checkPoints(field string, pts []Point) error {
	for i, pt := range pts {
		if !pt.finite() {
			return fmt.Errorf("%w: %s[%d] is not finite", ErrInvalid, field, i)
		}
	}
	return nil
}

func (pt Point) finite() bool {
	return finite(pt.X) && finite(pt.Y)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
