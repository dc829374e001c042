package raster

import (
	"fmt"
	"io"

	"github.com/rayscope/rayscope/backend-go/internal/engine"
)

// Snapshot renders the current view of e into a new target of the given
// size. e itself is not modified. The caller owns the target and must Close
// it.
func Snapshot(e *engine.Engine, width, height int) (*Target, error) {
	t := NewTarget(width, height)
	t.Clear()
	e.Fork().Render(t)
	if err := t.Err(); err != nil {
		t.Close()
		return nil, fmt.Errorf("rasterize view: %w", err)
	}
	return t, nil
}

// WritePNG renders e at the given size and writes it to w as PNG.
func WritePNG(w io.Writer, e *engine.Engine, width, height int) error {
	t, err := Snapshot(e, width, height)
	if err != nil {
		return err
	}
	defer t.Close()
	return t.EncodePNG(w)
}
