package export

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/rayscope/rayscope/backend-go/internal/engine"
	"github.com/rayscope/rayscope/backend-go/internal/raster"
)

// SweepScales returns n zoom scales from `from` to `to`, evenly spaced on a
// log scale so every step zooms by the same factor. Both ends are exact.
func SweepScales(from, to float64, n int) []float64 {
	if n <= 1 {
		return []float64{to}
	}
	scales := make([]float64, n)
	ratio := math.Log(to / from)
	for i := range scales {
		scales[i] = from * math.Exp(ratio*float64(i)/float64(n-1))
	}
	scales[0], scales[n-1] = from, to
	return scales
}

// RenderSweep zooms e through scales, anchored at world origin, and writes
// one PNG per scale to dir as frame_0000.png, frame_0001.png and so on. e
// should be a fork; its view is left at the last scale.
func RenderSweep(ctx context.Context, e *engine.Engine, dir string, scales []float64, width, height int) error {
	for i, scale := range scales {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.SetZoom(scale)

		path := filepath.Join(dir, fmt.Sprintf("frame_%04d.png", i))
		if err := writeFrame(path, e, width, height); err != nil {
			return fmt.Errorf("render frame %d: %w", i, err)
		}
	}
	return nil
}

func writeFrame(path string, e *engine.Engine, width, height int) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := raster.WritePNG(out, e, width, height); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
