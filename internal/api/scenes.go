package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-slobs/internal/audit"
	"github.com/nerrad567/gray-logic-slobs/internal/bridges/slobs"
)

// sceneResponse is one cached scene as returned by the API.
type sceneResponse struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Active bool              `json:"active"`
	Items  []slobs.SceneItem `json:"items"`
}

func toSceneResponse(scene slobs.Scene, active string) sceneResponse {
	items := scene.Nodes
	if items == nil {
		items = []slobs.SceneItem{}
	}
	return sceneResponse{
		ID:     scene.ID,
		Name:   scene.Name,
		Active: scene.Name == active,
		Items:  items,
	}
}

// handleListScenes returns every cached scene in Streamlabs order.
func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	active := s.scenes.CurrentScene()
	scenes := s.scenes.Scenes()

	result := make([]sceneResponse, 0, len(scenes))
	for _, scene := range scenes {
		result = append(result, toSceneResponse(scene, active))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active_scene": active,
		"scenes":       result,
		"count":        len(result),
	})
}

// handleGetScene returns one cached scene by name.
func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	scene, ok := s.scenes.Scene(name)
	if !ok {
		writeNotFound(w, "scene not found")
		return
	}

	writeJSON(w, http.StatusOK, toSceneResponse(scene, s.scenes.CurrentScene()))
}

// handleGetActiveScene returns the name of the active scene.
func (s *Server) handleGetActiveScene(w http.ResponseWriter, _ *http.Request) {
	active := s.scenes.CurrentScene()
	if active == "" {
		writeNotFound(w, "no active scene")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scene": active})
}

// setActiveSceneRequest is the body of PUT /scenes/active.
type setActiveSceneRequest struct {
	Scene string `json:"scene"`
}

// handleSetActiveScene asks Streamlabs to switch to the named scene.
func (s *Server) handleSetActiveScene(w http.ResponseWriter, r *http.Request) {
	var req setActiveSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Scene == "" {
		writeBadRequest(w, "scene is required")
		return
	}

	if !s.scenes.IsConnected() {
		writeUnavailable(w, "streamlabs is not connected")
		return
	}

	previous, err := s.scenes.SetCurrentScene(r.Context(), req.Scene)
	if err != nil {
		s.auditCommand(r.Context(), slobs.CommandSwitchScene, audit.EntityScene, req.Scene, map[string]any{
			"error": err.Error(),
		})
		s.writeCommandError(w, err)
		return
	}

	s.logger.Info("scene switch requested", "scene", req.Scene, "previous_scene", previous)
	s.auditCommand(r.Context(), slobs.CommandSwitchScene, audit.EntityScene, req.Scene, map[string]any{
		"previous_scene": previous,
	})

	writeJSON(w, http.StatusAccepted, map[string]any{
		"scene":          req.Scene,
		"previous_scene": previous,
	})
}

// writeCommandError maps a connector error onto a response.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, slobs.ErrSceneNotFound):
		writeNotFound(w, "scene not found")
	case slobs.IsClosedError(err):
		writeUnavailable(w, "streamlabs is not connected")
	default:
		s.logger.Error("streamlabs command failed", "error", err)
		writeInternalError(w, "failed to send command")
	}
}

// pathParam returns the decoded URL parameter key. Scene and source names
// often contain spaces, which arrive percent-encoded.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
