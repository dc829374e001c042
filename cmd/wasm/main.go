//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"golang.org/x/text/language"

	"github.com/rayscope/rayscope/backend-go/internal/engine"
	"github.com/rayscope/rayscope/backend-go/internal/loader"
	"github.com/rayscope/rayscope/backend-go/internal/panel"
)

var (
	eng       *engine.Engine
	formatter *panel.Formatter
	lastErr   string

	// onZoom holds the JS callback that mirrors the effective scale into the
	// zoom control.
	onZoom js.Value
)

func main() {
	eng = engine.NewEngine(engine.DefaultSettings())
	formatter = panel.NewFormatter(language.English)
	eng.Controller().OnZoom = func(scale float64) {
		if onZoom.Type() == js.TypeFunction {
			onZoom.Invoke(scale)
		}
	}

	// Create the engine API object
	rayscopeEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	rayscopeEngine.Set("loadDataset", js.FuncOf(loadDataset))
	rayscopeEngine.Set("loadSampleDataset", js.FuncOf(loadSampleDataset))
	rayscopeEngine.Set("resize", js.FuncOf(resize))
	rayscopeEngine.Set("pointerDown", js.FuncOf(pointer(engine.EventPointerDown)))
	rayscopeEngine.Set("pointerMove", js.FuncOf(pointer(engine.EventPointerMove)))
	rayscopeEngine.Set("pointerUp", js.FuncOf(pointer(engine.EventPointerUp)))
	rayscopeEngine.Set("pointerLeave", js.FuncOf(pointer(engine.EventPointerLeave)))
	rayscopeEngine.Set("wheel", js.FuncOf(wheel))
	rayscopeEngine.Set("setZoom", js.FuncOf(setZoom))
	rayscopeEngine.Set("setLayer", js.FuncOf(setLayer))
	rayscopeEngine.Set("setRayOpacity", js.FuncOf(setRayOpacity))
	rayscopeEngine.Set("onZoom", js.FuncOf(setOnZoom))

	// --- Queries (frontend ← backend) ---
	rayscopeEngine.Set("render", js.FuncOf(render))
	rayscopeEngine.Set("getInfo", js.FuncOf(getInfo))
	rayscopeEngine.Set("getViewport", js.FuncOf(getViewport))
	rayscopeEngine.Set("getOptions", js.FuncOf(getOptions))

	// Register on global scope
	js.Global().Set("rayscopeEngine", rayscopeEngine)

	// Signal that WASM is ready
	js.Global().Set("rayscopeWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// --- Command Handlers ---

// loadDataset takes the ray document JSON and, optionally, the medium
// document JSON. A failed load leaves the engine inert and the error in
// getInfo.
func loadDataset(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeString {
		return js.ValueOf(map[string]interface{}{"error": "missing ray data JSON"})
	}

	sources := []loader.Source{{Name: "ray data", Data: []byte(args[0].String())}}
	if len(args) > 1 && args[1].Type() == js.TypeString {
		sources = append(sources, loader.Source{
			Name: "medium data",
			Data: []byte(args[1].String()),
			Keys: loader.MediumKeys,
		})
	}

	ds, err := loader.New(nil, nil, 0).Load(context.Background(), sources...)
	if err != nil {
		lastErr = err.Error()
		eng.Load(nil)
		return js.ValueOf(map[string]interface{}{"error": lastErr})
	}

	lastErr = ""
	eng.Load(ds)
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func loadSampleDataset(this js.Value, args []js.Value) interface{} {
	seed := uint64(1)
	if len(args) > 0 && args[0].Type() == js.TypeNumber {
		seed = uint64(args[0].Int())
	}

	lastErr = ""
	eng.LoadSample(seed)
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func resize(this js.Value, args []js.Value) interface{} {
	if !numbers(args, 2) {
		return nil
	}
	eng.Resize(args[0].Float(), args[1].Float())
	return nil
}

// pointer returns a handler taking (x, y) in canvas pixels. It returns
// whether the view changed and needs a redraw.
func pointer(kind engine.EventKind) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		ev := engine.InputEvent{Kind: kind}
		if numbers(args, 2) {
			ev.X, ev.Y = args[0].Float(), args[1].Float()
		}
		return js.ValueOf(eng.HandleInput(ev))
	}
}

// wheel takes (x, y, deltaY) and returns whether the view changed. The
// caller should always prevent the page from scrolling.
func wheel(this js.Value, args []js.Value) interface{} {
	if !numbers(args, 3) {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.HandleInput(engine.InputEvent{
		Kind:   engine.EventWheel,
		X:      args[0].Float(),
		Y:      args[1].Float(),
		DeltaY: args[2].Float(),
	}))
}

// setZoom returns the effective scale.
func setZoom(this js.Value, args []js.Value) interface{} {
	if !numbers(args, 1) {
		return js.ValueOf(eng.Viewport().Scale)
	}
	return js.ValueOf(eng.SetZoom(args[0].Float()))
}

func setLayer(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || args[0].Type() != js.TypeString {
		return js.ValueOf(map[string]interface{}{"error": "usage: setLayer(name, on)"})
	}
	layer, err := engine.ParseLayer(args[0].String())
	if err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	eng.SetLayer(layer, args[1].Truthy())
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func setRayOpacity(this js.Value, args []js.Value) interface{} {
	if !numbers(args, 1) {
		return nil
	}
	eng.SetRayOpacity(args[0].Float())
	return nil
}

func setOnZoom(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		onZoom = js.Undefined()
		return nil
	}
	onZoom = args[0]
	return nil
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.RenderJSON())
}

func getInfo(this js.Value, args []js.Value) interface{} {
	var panels panel.Panels
	switch sum := eng.Summary(); {
	case sum != nil:
		panels = formatter.Format(*sum)
	case lastErr != "":
		panels = panel.Error(lastErr)
	default:
		panels = panel.Error("no dataset loaded")
	}
	return js.ValueOf(marshal(panels))
}

func getViewport(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(marshal(eng.Viewport()))
}

func getOptions(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(marshal(eng.Options()))
}

// numbers reports whether the first n arguments are JS numbers. Float
// panics on anything else, which would stop the runtime.
func numbers(args []js.Value, n int) bool {
	if len(args) < n {
		return false
	}
	for _, a := range args[:n] {
		if a.Type() != js.TypeNumber {
			return false
		}
	}
	return true
}

func marshal(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
