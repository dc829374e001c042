// Package panel formats the read-only info panels shown next to the canvas.
package panel

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rayscope/rayscope/backend-go/internal/scene"
)

// Panel IDs as used by the frontend.
const (
	ParametersID = "simulationParams"
	MediumID     = "mediumStats"
	RaysID       = "rayStats"
)

// NoMedium is shown in the medium panel when the dataset has no particles.
const NoMedium = "No medium data available"

type Line struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Panel is one info region. Either Lines or Message is set.
type Panel struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Lines   []Line `json:"lines,omitempty"`
	Message string `json:"message,omitempty"`
	Error   bool   `json:"error,omitempty"`
}

// Text renders the panel as "Label: value" lines.
func (p Panel) Text() string {
	if len(p.Lines) == 0 {
		return p.Message
	}
	var b strings.Builder
	for i, l := range p.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Label)
		b.WriteString(": ")
		b.WriteString(l.Value)
	}
	return b.String()
}

// Panels is the full set of info regions.
type Panels struct {
	Parameters Panel `json:"parameters"`
	Medium     Panel `json:"medium"`
	Rays       Panel `json:"rays"`
}

// All returns the panels in display order.
func (p Panels) All() []Panel {
	return []Panel{p.Parameters, p.Medium, p.Rays}
}

// Formatter renders summaries with locale-aware number formatting.
type Formatter struct {
	p *message.Printer
}

// NewFormatter creates a formatter for tag. An undetermined tag formats
// numbers in English.
func NewFormatter(tag language.Tag) *Formatter {
	if tag == language.Und {
		tag = language.English
	}
	return &Formatter{p: message.NewPrinter(tag)}
}

// Format builds the three panels from s.
func (f *Formatter) Format(s scene.Summary) Panels {
	par := s.Parameters
	out := Panels{
		Parameters: Panel{
			ID:    ParametersID,
			Title: "Simulation parameters",
			Lines: []Line{
				{"Seed", strconv.FormatInt(int64(par.Seed), 10)},
				{"Number of particles", f.p.Sprintf("%d", int64(par.N))},
				{"Domain size", f.p.Sprint(par.Size)},
				{"Refractive index", f.p.Sprintf("%v - %v", par.MinN, par.MaxN)},
				{"Total rays", f.p.Sprintf("%d", int64(par.NumRays))},
				{"Max impacts", f.p.Sprintf("%d", int64(par.MaxBounces))},
				{"Max time", f.p.Sprint(par.MaxTime)},
			},
		},
		Medium: Panel{ID: MediumID, Title: "Medium", Message: NoMedium},
		Rays: Panel{
			ID:    RaysID,
			Title: "Rays",
			Lines: []Line{
				{"Plotted rays", f.p.Sprintf("%d", s.Rays.Count)},
				{"Average distance to origin", f.p.Sprintf("%.4f", s.Rays.MeanDistance)},
				{"Final points", f.p.Sprintf("%d", s.Rays.EndpointCount)},
				{"Projections", f.p.Sprintf("%d", s.Rays.ProjectionCount)},
			},
		},
	}

	if m := s.Medium; m != nil {
		out.Medium.Message = ""
		out.Medium.Lines = []Line{
			{"Number of particles", f.p.Sprintf("%d", m.Count)},
			{"Average radius", f.p.Sprintf("%.4f", m.MeanRadius)},
			{"Radius min/max", f.p.Sprintf("%.4f / %.4f", m.MinRadius, m.MaxRadius)},
			{"Average refractive index", f.p.Sprintf("%.4f", m.MeanIndex)},
		}
	}
	return out
}

// Error puts the same message in every panel. A failed load shows nothing
// else.
func Error(msg string) Panels {
	mk := func(id, title string) Panel {
		return Panel{ID: id, Title: title, Message: msg, Error: true}
	}
	return Panels{
		Parameters: mk(ParametersID, "Simulation parameters"),
		Medium:     mk(MediumID, "Medium"),
		Rays:       mk(RaysID, "Rays"),
	}
}
