package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/rayscope/rayscope/backend-go/internal/collab"
	"github.com/rayscope/rayscope/backend-go/internal/engine"
	"github.com/rayscope/rayscope/backend-go/internal/raster"
	"github.com/rayscope/rayscope/backend-go/internal/typeid"
)

const (
	maxImageSide  = 4096
	maxFrames     = 600
	defaultFrames = 48
	defaultFPS    = 24
)

type Handler struct {
	hub        *collab.Hub
	ffmpegPath string
}

func NewHandler(hub *collab.Hub, ffmpegPath string) *Handler {
	return &Handler{hub: hub, ffmpegPath: ffmpegPath}
}

// view is a detached copy of a session's engine plus its canvas size.
type view struct {
	engine *engine.Engine
	width  int
	height int
}

// fork copies the session's current view off the session goroutine so that
// rasterising does not hold up live input.
func (h *Handler) fork(r *http.Request) (*view, int, error) {
	s, err := h.hub.Session(mux.Vars(r)["sessionId"])
	if err != nil {
		return nil, http.StatusNotFound, err
	}

	var v view
	err = s.Do(r.Context(), func(e *engine.Engine) {
		vp := e.Viewport()
		v = view{engine: e.Fork(), width: int(vp.Width), height: int(vp.Height)}
	})
	if errors.Is(err, collab.ErrSessionClosed) {
		return nil, http.StatusNotFound, collab.ErrSessionNotFound
	}
	if err != nil {
		return nil, http.StatusServiceUnavailable, err
	}
	if !v.engine.Ready() {
		return nil, http.StatusConflict, errors.New("no dataset loaded")
	}

	if w, ok := sizeParam(r, "width"); ok {
		v.width = w
	}
	if ht, ok := sizeParam(r, "height"); ok {
		v.height = ht
	}
	return &v, http.StatusOK, nil
}

// FramePNG handles GET /api/sessions/{sessionId}/frame.png. Optional width
// and height query parameters override the session's canvas size.
func (h *Handler) FramePNG(w http.ResponseWriter, r *http.Request) {
	v, status, err := h.fork(r)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := raster.WritePNG(&buf, v.engine, v.width, v.height); err != nil {
		slog.Error("render png", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "render failed"})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// ExportVideo handles POST /api/sessions/{sessionId}/export/video. It
// renders a zoom sweep of the session's current view, anchored at world
// origin, and encodes it with ffmpeg.
//
// Form values: format (mp4, gif or webm), fps, frames, from and to (zoom
// scales; default the current scale and the maximum scale), width, height
// and name.
func (h *Handler) ExportVideo(w http.ResponseWriter, r *http.Request) {
	format := r.FormValue("format")
	if format != "mp4" && format != "gif" && format != "webm" {
		http.Error(w, "invalid format: must be mp4, gif, or webm", http.StatusBadRequest)
		return
	}

	fps, err := strconv.Atoi(r.FormValue("fps"))
	if err != nil || fps <= 0 || fps > 120 {
		fps = defaultFPS
	}

	frames, err := strconv.Atoi(r.FormValue("frames"))
	if err != nil || frames < 2 {
		frames = defaultFrames
	}
	if frames > maxFrames {
		http.Error(w, fmt.Sprintf("too many frames: at most %d", maxFrames), http.StatusBadRequest)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = "zoom"
	}
	// Sanitize filename
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)

	v, status, err := h.fork(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	state := v.engine.Viewport()
	from := scaleParam(r, "from", state.Scale)
	to := scaleParam(r, "to", state.MaxScale)

	exportID := typeid.NewExportID()
	tempDir, err := os.MkdirTemp("", exportID+"-*")
	if err != nil {
		slog.Error("create temp dir", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(tempDir)

	slog.Info("export started", "export", exportID, "format", format, "frames", frames, "fps", fps, "from", from, "to", to)

	if err := RenderSweep(r.Context(), v.engine, tempDir, SweepScales(from, to, frames), v.width, v.height); err != nil {
		slog.Error("render sweep", "export", exportID, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	outputFile, contentType, err := h.encode(r.Context(), tempDir, format, fps)
	if err != nil {
		slog.Error("ffmpeg failed", "export", exportID, "error", err)
		http.Error(w, fmt.Sprintf("encoding failed: %v", err), http.StatusInternalServerError)
		return
	}

	// Stream result file back
	outFile, err := os.Open(outputFile)
	if err != nil {
		slog.Error("open output file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer outFile.Close()

	stat, err := outFile.Stat()
	if err != nil {
		slog.Error("stat output file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, format))
	w.Header().Set("Content-Length", strconv.FormatInt(stat.Size(), 10))
	w.Header().Set("X-Export-Id", exportID)
	io.Copy(w, outFile)

	slog.Info("export complete", "export", exportID, "format", format, "size", stat.Size())
}

// encode turns the frame_%04d.png sequence in dir into a video and returns
// its path and content type.
func (h *Handler) encode(ctx context.Context, dir, format string, fps int) (string, string, error) {
	input := filepath.Join(dir, "frame_%04d.png")
	rate := strconv.Itoa(fps)

	switch format {
	case "mp4":
		out := filepath.Join(dir, "output.mp4")
		return out, "video/mp4", h.runFfmpeg(ctx,
			"-framerate", rate,
			"-i", input,
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			// libx264 needs even dimensions
			"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
			"-crf", "18",
			"-preset", "fast",
			"-movflags", "+faststart",
			out,
		)

	case "gif":
		out := filepath.Join(dir, "output.gif")
		// Two-pass GIF: generate palette then apply
		palettePath := filepath.Join(dir, "palette.png")
		err := h.runFfmpeg(ctx,
			"-framerate", rate,
			"-i", input,
			"-vf", "palettegen=stats_mode=diff",
			palettePath,
		)
		if err == nil {
			err = h.runFfmpeg(ctx,
				"-framerate", rate,
				"-i", input,
				"-i", palettePath,
				"-lavfi", "paletteuse=dither=bayer:bayer_scale=5:diff_mode=rectangle",
				out,
			)
		}
		return out, "image/gif", err

	case "webm":
		out := filepath.Join(dir, "output.webm")
		return out, "video/webm", h.runFfmpeg(ctx,
			"-framerate", rate,
			"-i", input,
			"-c:v", "libvpx-vp9",
			"-crf", "30",
			"-b:v", "0",
			"-pix_fmt", "yuva420p",
			out,
		)
	}
	return "", "", fmt.Errorf("unsupported format %q", format)
}

func (h *Handler) runFfmpeg(ctx context.Context, args ...string) error {
	// Prepend -y to overwrite output without prompting
	fullArgs := append([]string{"-y"}, args...)
	cmd := exec.CommandContext(ctx, h.ffmpegPath, fullArgs...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%v: %s", err, stderr.String())
	}
	return nil
}

func sizeParam(r *http.Request, key string) (int, bool) {
	n, err := strconv.Atoi(r.FormValue(key))
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, maxImageSide), true
}

func scaleParam(r *http.Request, key string, fallback float64) float64 {
	x, err := strconv.ParseFloat(r.FormValue(key), 64)
	if err != nil || !(x > 0) || math.IsInf(x, 0) {
		return fallback
	}
	return x
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
