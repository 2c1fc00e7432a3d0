package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-slobs/internal/audit"
	"github.com/nerrad567/gray-logic-slobs/internal/bridges/slobs"
)

type visibilityRequest struct {
	Scene   string `json:"scene"`
	Visible *bool  `json:"visible"`
}

type flipRequest struct {
	Scene string `json:"scene"`
	Axis  string `json:"axis"`
}

type rotateRequest struct {
	Scene   string   `json:"scene"`
	Degrees *float64 `json:"degrees"`
}

// handleSetVisibility shows or hides every item of a source in a scene.
func (s *Server) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Visible == nil {
		writeBadRequest(w, "visible is required")
		return
	}

	visible := *req.Visible
	s.runItemCommand(w, r, slobs.CommandSetVisibility, req.Scene, map[string]any{"visible": visible},
		func(ctx context.Context, scene, source string) (int, error) {
			return s.scenes.SetSourceVisibility(ctx, scene, source, visible)
		})
}

// handleFlip mirrors every item of a source on the x or y axis.
func (s *Server) handleFlip(w http.ResponseWriter, r *http.Request) {
	var req flipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	switch strings.ToLower(req.Axis) {
	case "x":
		s.runItemCommand(w, r, slobs.CommandFlipX, req.Scene, nil, s.scenes.FlipSourceX)
	case "y":
		s.runItemCommand(w, r, slobs.CommandFlipY, req.Scene, nil, s.scenes.FlipSourceY)
	default:
		writeBadRequest(w, `axis must be "x" or "y"`)
	}
}

// handleRotate sets the absolute rotation of every item of a source.
func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	var req rotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Degrees == nil {
		writeBadRequest(w, "degrees is required")
		return
	}

	degrees := *req.Degrees
	s.runItemCommand(w, r, slobs.CommandRotate, req.Scene, map[string]any{"degrees": degrees},
		func(ctx context.Context, scene, source string) (int, error) {
			return s.scenes.RotateSource(ctx, scene, source, degrees)
		})
}

// runItemCommand resolves the scene, runs fn against the source named in
// the path and writes the response. An empty scene means the active one.
func (s *Server) runItemCommand(
	w http.ResponseWriter,
	r *http.Request,
	command, scene string,
	params map[string]any,
	fn func(ctx context.Context, scene, source string) (int, error),
) {
	source := pathParam(r, "source")
	if source == "" {
		writeBadRequest(w, "source is required")
		return
	}

	if !s.scenes.IsConnected() {
		writeUnavailable(w, "streamlabs is not connected")
		return
	}

	if scene == "" {
		scene = s.scenes.CurrentScene()
	}
	if _, ok := s.scenes.Scene(scene); !ok {
		writeNotFound(w, "scene not found")
		return
	}

	details := map[string]any{"scene": scene}
	for k, v := range params {
		details[k] = v
	}

	matched, err := fn(r.Context(), scene, source)
	details["matched"] = matched
	if err != nil {
		details["error"] = err.Error()
		s.auditCommand(r.Context(), command, audit.EntitySource, source, details)
		s.writeCommandError(w, err)
		return
	}
	s.auditCommand(r.Context(), command, audit.EntitySource, source, details)

	if matched == 0 {
		writeNotFound(w, "no items of that source in scene")
		return
	}

	s.logger.Info("source command sent",
		"command", command,
		"scene", scene,
		"source", source,
		"matched", matched,
	)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"scene":   scene,
		"source":  source,
		"matched": matched,
	})
}
