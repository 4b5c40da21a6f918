package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-sequencer/internal/audit"
	"github.com/nerrad567/gray-logic-sequencer/internal/playback"
	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
)

// maxQueryParamLen limits path and query parameter length to prevent DoS via oversized URL params.
const maxQueryParamLen = 100

// sequenceRequest is the JSON body for POST /sequences. Flags left out
// take the configured sequencer defaults.
type sequenceRequest struct {
	ID                    string              `json:"id"`
	Name                  string              `json:"name"`
	Slug                  string              `json:"slug"`
	Description           *string             `json:"description"`
	PlayOnStart           bool                `json:"play_on_start"`
	Skippable             *bool               `json:"skippable"`
	RemoveEmptyReferences *bool               `json:"remove_empty_references"`
	Groups                []schedule.GroupDef `json:"groups"`
}

// definition converts the request, applying the server defaults.
func (s *Server) definition(req sequenceRequest) *schedule.Definition {
	def := &schedule.Definition{
		ID:                    req.ID,
		Name:                  req.Name,
		Slug:                  req.Slug,
		Description:           req.Description,
		PlayOnStart:           req.PlayOnStart,
		Skippable:             s.defaults.Skippable,
		RemoveEmptyReferences: s.defaults.RemoveEmptyReferences,
		Groups:                req.Groups,
	}
	if req.Skippable != nil {
		def.Skippable = *req.Skippable
	}
	if req.RemoveEmptyReferences != nil {
		def.RemoveEmptyReferences = *req.RemoveEmptyReferences
	}
	return def
}

// sequenceRef extracts and checks the {id} path parameter, which may be
// a definition ID or slug.
func sequenceRef(w http.ResponseWriter, r *http.Request) (string, bool) {
	ref := chi.URLParam(r, "id")
	if ref == "" || len(ref) > maxQueryParamLen {
		writeBadRequest(w, "invalid sequence ID")
		return "", false
	}
	return ref, true
}

// lookupDefinition resolves the {id} path parameter through the registry,
// writing the error response when it fails.
func (s *Server) lookupDefinition(w http.ResponseWriter, r *http.Request) (*schedule.Definition, bool) {
	ref, ok := sequenceRef(w, r)
	if !ok {
		return nil, false
	}
	def, err := s.registry.Lookup(r.Context(), ref)
	if err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			writeNotFound(w, "sequence not found")
			return nil, false
		}
		writeInternalError(w, "failed to get sequence")
		return nil, false
	}
	return def, true
}

// handleListSequences returns every stored definition.
func (s *Server) handleListSequences(w http.ResponseWriter, r *http.Request) {
	defs, err := s.registry.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list sequences")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sequences": defs, "count": len(defs)})
}

// handleGetSequence returns a single definition by ID or slug.
func (s *Server) handleGetSequence(w http.ResponseWriter, r *http.Request) {
	def, ok := s.lookupDefinition(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleCreateSequence stores a new definition. The body is either a JSON
// definition or, with a YAML content type, a showfile.
func (s *Server) handleCreateSequence(w http.ResponseWriter, r *http.Request) {
	def, ok := s.decodeDefinition(w, r)
	if !ok {
		return
	}

	if err := s.registry.Create(r.Context(), def); err != nil {
		s.writeScheduleError(w, err, "failed to create sequence")
		return
	}
	s.record(r.Context(), audit.Entry{
		Action:   audit.ActionCreate,
		EntityID: def.ID,
		Details:  map[string]any{"slug": def.Slug, "groups": len(def.Groups)},
	})

	writeJSON(w, http.StatusCreated, def)
}

// decodeDefinition reads a create request body.
func (s *Server) decodeDefinition(w http.ResponseWriter, r *http.Request) (*schedule.Definition, bool) {
	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		parsed, _, err := mime.ParseMediaType(ct)
		if err != nil {
			writeBadRequest(w, "invalid Content-Type")
			return nil, false
		}
		mediaType = parsed
	}

	switch mediaType {
	case "application/json":
		var req sequenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return nil, false
		}
		return s.definition(req), true

	case "application/yaml", "application/x-yaml", "text/yaml":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeBadRequest(w, "failed to read showfile")
			return nil, false
		}
		def, err := schedule.Parse(data, schedule.ParseOptions{
			Skippable:             s.defaults.Skippable,
			RemoveEmptyReferences: s.defaults.RemoveEmptyReferences,
		})
		if err != nil {
			writeValidationError(w, err.Error())
			return nil, false
		}
		return def, true

	default:
		writeError(w, http.StatusUnsupportedMediaType, ErrCodeUnsupported,
			"expected application/json or application/yaml")
		return nil, false
	}
}

// handleUpdateSequence partially updates a definition. Fields present in
// the body replace the stored ones; a loaded copy keeps running the old
// definition until it is loaded again.
func (s *Server) handleUpdateSequence(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.lookupDefinition(w, r)
	if !ok {
		return
	}
	id, created := existing.ID, existing.CreatedAt

	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed
	existing.CreatedAt = created

	if err := s.registry.Update(r.Context(), existing); err != nil {
		s.writeScheduleError(w, err, "failed to update sequence")
		return
	}
	s.record(r.Context(), audit.Entry{Action: audit.ActionUpdate, EntityID: existing.ID})

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteSequence unloads and removes a definition.
func (s *Server) handleDeleteSequence(w http.ResponseWriter, r *http.Request) {
	def, ok := s.lookupDefinition(w, r)
	if !ok {
		return
	}

	if err := s.runner.Unload(r.Context(), def.ID); err != nil && !errors.Is(err, playback.ErrNotLoaded) {
		s.writePlaybackError(w, err)
		return
	}

	if err := s.registry.Delete(r.Context(), def.ID); err != nil {
		s.writeScheduleError(w, err, "failed to delete sequence")
		return
	}
	s.record(r.Context(), audit.Entry{
		Action:   audit.ActionDelete,
		EntityID: def.ID,
		Details:  map[string]any{"slug": def.Slug},
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleListLoaded returns the status of every loaded sequence.
func (s *Server) handleListLoaded(w http.ResponseWriter, r *http.Request) {
	loaded, err := s.runner.Loaded(r.Context())
	if err != nil {
		s.writePlaybackError(w, err)
		return
	}
	if loaded == nil {
		loaded = []playback.Status{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sequences": loaded, "count": len(loaded)})
}

// handleLoadSequence builds the stored definition and hands it to the
// runner, replacing a loaded copy.
func (s *Server) handleLoadSequence(w http.ResponseWriter, r *http.Request) {
	def, ok := s.lookupDefinition(w, r)
	if !ok {
		return
	}

	if err := s.runner.Load(r.Context(), def, schedule.TriggerAPI); err != nil {
		s.writePlaybackError(w, err)
		return
	}
	s.record(r.Context(), audit.Entry{Action: audit.ActionLoad, EntityID: def.ID})
	s.writeStatus(r.Context(), w, def.ID, http.StatusOK)
}

// handleUnloadSequence stops and removes a loaded sequence.
func (s *Server) handleUnloadSequence(w http.ResponseWriter, r *http.Request) {
	ref, ok := sequenceRef(w, r)
	if !ok {
		return
	}
	if err := s.runner.Unload(r.Context(), ref); err != nil {
		s.writePlaybackError(w, err)
		return
	}
	s.record(r.Context(), audit.Entry{Action: audit.ActionUnload, EntityID: ref})
	w.WriteHeader(http.StatusNoContent)
}

// handlePlaySequence starts a cycle. It returns as soon as the cycle has
// begun; progress arrives via WebSocket.
func (s *Server) handlePlaySequence(w http.ResponseWriter, r *http.Request) {
	ref, ok := sequenceRef(w, r)
	if !ok {
		return
	}

	executionID, err := s.runner.Play(r.Context(), ref, schedule.TriggerAPI)
	if err != nil {
		s.writePlaybackError(w, err)
		return
	}
	s.record(r.Context(), audit.Entry{
		Action:   audit.ActionPlay,
		EntityID: ref,
		Details:  map[string]any{"execution_id": executionID},
	})

	writeJSON(w, http.StatusAccepted, map[string]any{
		"execution_id": executionID,
		"status":       "accepted",
		"message":      "sequence started, lifecycle events will follow via WebSocket",
	})
}

// handleSkipSequence skips the current group of a running sequence.
func (s *Server) handleSkipSequence(w http.ResponseWriter, r *http.Request) {
	ref, ok := sequenceRef(w, r)
	if !ok {
		return
	}

	skipped, err := s.runner.Skip(r.Context(), ref)
	if err != nil {
		s.writePlaybackError(w, err)
		return
	}
	s.record(r.Context(), audit.Entry{
		Action:   audit.ActionSkip,
		EntityID: ref,
		Details:  map[string]any{"skipped": skipped},
	})
	s.writeStatusWith(r.Context(), w, ref, map[string]any{"skipped": skipped})
}

// handleSkipAllSequence ends a running cycle by skipping every remaining
// group.
func (s *Server) handleSkipAllSequence(w http.ResponseWriter, r *http.Request) {
	ref, ok := sequenceRef(w, r)
	if !ok {
		return
	}

	if err := s.runner.SkipAll(r.Context(), ref); err != nil {
		s.writePlaybackError(w, err)
		return
	}
	s.record(r.Context(), audit.Entry{Action: audit.ActionSkipAll, EntityID: ref})
	s.writeStatusWith(r.Context(), w, ref, map[string]any{"skipped": true})
}

// handleSequenceStatus returns the playback status of a loaded sequence.
func (s *Server) handleSequenceStatus(w http.ResponseWriter, r *http.Request) {
	ref, ok := sequenceRef(w, r)
	if !ok {
		return
	}
	s.writeStatus(r.Context(), w, ref, http.StatusOK)
}

// handleListExecutions returns the most recent cycles of a sequence.
//
// Query parameters:
//   - limit: number of executions (default sequencer.history_limit, max 100)
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	def, ok := s.lookupDefinition(w, r)
	if !ok {
		return
	}

	limit := s.historyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	executions, err := s.registry.Repository().ListExecutions(r.Context(), def.ID, limit)
	if err != nil {
		writeInternalError(w, "failed to list executions")
		return
	}
	if executions == nil {
		executions = []schedule.Execution{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"executions": executions, "count": len(executions)})
}

// handleListTargets returns the configured targets and transitions steps
// may reference.
func (s *Server) handleListTargets(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"targets": []any{}, "transitions": []string{}}
	if s.directory != nil {
		resp["targets"] = s.directory.Targets()
		resp["transitions"] = s.directory.TransitionNames()
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeStatus writes the runner status of ref.
func (s *Server) writeStatus(ctx context.Context, w http.ResponseWriter, ref string, code int) {
	st, err := s.runner.Status(ctx, ref)
	if err != nil {
		s.writePlaybackError(w, err)
		return
	}
	writeJSON(w, code, st)
}

// writeStatusWith writes extra fields alongside the runner status of ref.
func (s *Server) writeStatusWith(ctx context.Context, w http.ResponseWriter, ref string, extra map[string]any) {
	st, err := s.runner.Status(ctx, ref)
	if err != nil {
		s.writePlaybackError(w, err)
		return
	}
	extra["status"] = st
	writeJSON(w, http.StatusOK, extra)
}

// writeScheduleError maps registry errors to HTTP responses.
func (s *Server) writeScheduleError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, schedule.ErrNotFound):
		writeNotFound(w, "sequence not found")
	case errors.Is(err, schedule.ErrExists):
		writeConflict(w, err.Error())
	case isValidationError(err):
		writeValidationError(w, err.Error())
	default:
		s.logger.Error(fallback, "error", err)
		writeInternalError(w, fallback)
	}
}

// isValidationError reports whether err came from definition validation.
func isValidationError(err error) bool {
	for _, target := range []error{
		schedule.ErrInvalidDefinition,
		schedule.ErrInvalidName,
		schedule.ErrInvalidSlug,
		schedule.ErrInvalidGroup,
		schedule.ErrInvalidStep,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writePlaybackError maps runner errors to HTTP responses.
func (s *Server) writePlaybackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, playback.ErrNotLoaded):
		writeNotFound(w, "sequence is not loaded")
	case errors.Is(err, playback.ErrAlreadyRunning):
		writeConflict(w, "sequence is already running")
	case errors.Is(err, playback.ErrNotRunning):
		writeConflict(w, "sequence is not running")
	case errors.Is(err, playback.ErrNotSkippable):
		writeConflict(w, "sequence is not skippable")
	case errors.Is(err, playback.ErrStopped),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		writeUnavailable(w, "playback runner unavailable")
	default:
		s.logger.Error("playback request failed", "error", err)
		writeInternalError(w, "playback request failed")
	}
}
