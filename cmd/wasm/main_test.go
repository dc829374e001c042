//go:build js && wasm

package main

import (
	"syscall/js"
	"testing"

	"github.com/rayscope/rayscope/backend-go/internal/engine"
)

func TestNumbers(t *testing.T) {
	tests := []struct {
		args []js.Value
		n    int
		want bool
	}{
		{[]js.Value{js.ValueOf(1), js.ValueOf(2.5)}, 2, true},
		{[]js.Value{js.ValueOf(1)}, 2, false},
		{[]js.Value{js.ValueOf(1), js.ValueOf("2")}, 2, false},
		{[]js.Value{js.Undefined(), js.ValueOf(2)}, 1, false},
		{[]js.Value{js.ValueOf(3), js.Null()}, 1, true},
	}
	for i, tt := range tests {
		if got := numbers(tt.args, tt.n); got != tt.want {
			t.Errorf("case %d: numbers = %v, want %v", i, got, tt.want)
		}
	}
}

func TestNonNumericArgumentsAreIgnored(t *testing.T) {
	eng = engine.NewEngine(engine.DefaultSettings())
	eng.LoadSample(1)
	before := eng.Viewport()

	text := js.ValueOf("wide")
	resize(js.Undefined(), []js.Value{text, text})
	pointer(engine.EventPointerDown)(js.Undefined(), []js.Value{text, js.ValueOf(1)})
	if got := wheel(js.Undefined(), []js.Value{js.ValueOf(1), js.ValueOf(1), text}); got.(js.Value).Bool() {
		t.Error("wheel with a string delta changed the view")
	}
	if got := setZoom(js.Undefined(), []js.Value{text}); got.(js.Value).Float() != before.Scale {
		t.Errorf("setZoom(string) = %v, want current scale %v", got, before.Scale)
	}
	setRayOpacity(js.Undefined(), []js.Value{js.Null()})

	after := eng.Viewport()
	if after.Width != before.Width || after.Scale != before.Scale || after.OffsetX != before.OffsetX {
		t.Errorf("viewport changed: before %+v, after %+v", before, after)
	}
	if eng.Options().RayOpacity != engine.DefaultRenderOptions().RayOpacity {
		t.Error("ray opacity changed")
	}
}
