package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roboskills/skillhub/license"
	"github.com/roboskills/skillhub/models"
	"github.com/roboskills/skillhub/workflow"
)

// errorBody is the wire shape of every error response. Kind is a stable
// identifier; detail carries the structured fields of the domain error so the
// UI can build an actionable message.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}

// CreateSkillRequest is the payload for POST /api/skills.
type CreateSkillRequest struct {
	OwnerID string `json:"owner_id"`
	workflow.SkillInput
}

func (s *Server) handleCreateSkill(w http.ResponseWriter, r *http.Request) {
	var req CreateSkillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, workflow.NewValidationError("body", "invalid request body"))
		return
	}
	if req.OwnerID == "" {
		s.writeError(w, workflow.NewValidationError("owner_id", "owner_id is required"))
		return
	}

	skill, err := s.svc.CreateSkill(r.Context(), req.OwnerID, req.SkillInput)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, skill)
}

// CreateVersionRequest is the payload for POST /api/skills/{id}/versions.
type CreateVersionRequest struct {
	ActorID string `json:"actor_id"`
	workflow.VersionInput
}

func (s *Server) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	skillID := chi.URLParam(r, "id")

	var req CreateVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, workflow.NewValidationError("body", "invalid request body"))
		return
	}
	if req.ActorID == "" {
		s.writeError(w, workflow.NewValidationError("actor_id", "actor_id is required"))
		return
	}

	version, err := s.svc.CreateVersion(r.Context(), skillID, req.ActorID, req.VersionInput)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, version)
}

// UploadPackageResponse echoes the stored blob's identity. The developer
// records these values in the version-creation payload; the platform review
// re-verifies them against the blob.
type UploadPackageResponse struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

func (s *Server) handleUploadPackage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		s.writeError(w, workflow.NewValidationError("name", "package name is required"))
		return
	}

	size, sum, err := s.packages.Put(r.Context(), name, r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, UploadPackageResponse{Path: name, Size: size, SHA256: sum})
}

// CreateSubmissionRequest is the payload for POST /api/submissions.
type CreateSubmissionRequest struct {
	VersionID   string `json:"version_id"`
	SubmitterID string `json:"submitter_id"`
	TargetOemID string `json:"target_oem_id,omitempty"` // Empty means any compatible OEM.
}

func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, workflow.NewValidationError("body", "invalid request body"))
		return
	}
	if req.VersionID == "" || req.SubmitterID == "" {
		s.writeError(w, workflow.NewValidationError("body", "version_id and submitter_id are required"))
		return
	}

	sub, err := s.svc.CreateSubmission(r.Context(), req.VersionID, req.SubmitterID, req.TargetOemID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	skill, err := s.svc.GetSkill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, skill)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.svc.GetSubmission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

// AdvanceRequest is the payload for POST /api/submissions/{id}/advance.
type AdvanceRequest struct {
	ActorID string          `json:"actor_id"`
	Action  workflow.Action `json:"action"`
	Notes   string          `json:"notes,omitempty"`
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, workflow.NewValidationError("body", "invalid request body"))
		return
	}
	if req.ActorID == "" || req.Action == "" {
		s.writeError(w, workflow.NewValidationError("body", "actor_id and action are required"))
		return
	}

	sub, err := s.svc.Advance(r.Context(), id, req.ActorID, req.Action, req.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.PlatformReviewResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// DecideRequest is the payload for POST /api/submissions/{id}/decision.
type DecideRequest struct {
	ReviewerID string          `json:"reviewer_id"`
	Decision   models.Decision `json:"decision"`
	Notes      string          `json:"notes,omitempty"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, workflow.NewValidationError("body", "invalid request body"))
		return
	}
	if req.ReviewerID == "" || req.Decision == "" {
		s.writeError(w, workflow.NewValidationError("body", "reviewer_id and decision are required"))
		return
	}

	sub, err := s.svc.Decide(r.Context(), id, req.ReviewerID, req.Decision, req.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

// ActivateRequest is the payload for POST /api/developer/activate.
type ActivateRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, workflow.NewValidationError("body", "invalid request body"))
		return
	}
	if req.UserID == "" {
		s.writeError(w, workflow.NewValidationError("user_id", "user_id is required"))
		return
	}

	activation, err := s.licenses.Activate(r.Context(), req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// The raw token appears in this response and nowhere else, ever.
	s.writeJSON(w, http.StatusCreated, activation)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain error kinds to HTTP statuses, preserving the kind
// and structured detail in the body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		validation    *workflow.ValidationError
		invalid       *workflow.InvalidTransitionError
		unauthorized  *workflow.UnauthorizedError
		notesRequired *workflow.NotesRequiredError
		notReviewable *workflow.NotReviewableError
		concurrent    *workflow.ConcurrentModificationError
		notFound      *workflow.NotFoundError
		alreadyActive *license.AlreadyActiveError
	)

	var status int
	body := errorBody{Message: err.Error()}

	switch {
	case errors.As(err, &validation):
		status, body.Kind, body.Detail = http.StatusBadRequest, validation.Kind(), validation
	case errors.As(err, &unauthorized):
		status, body.Kind, body.Detail = http.StatusForbidden, unauthorized.Kind(), unauthorized
	case errors.As(err, &notFound):
		status, body.Kind, body.Detail = http.StatusNotFound, notFound.Kind(), notFound
	case errors.As(err, &invalid):
		status, body.Kind, body.Detail = http.StatusConflict, invalid.Kind(), invalid
	case errors.As(err, &notReviewable):
		status, body.Kind, body.Detail = http.StatusConflict, notReviewable.Kind(), notReviewable
	case errors.As(err, &concurrent):
		status, body.Kind, body.Detail = http.StatusConflict, concurrent.Kind(), concurrent
	case errors.As(err, &alreadyActive):
		status, body.Kind, body.Detail = http.StatusConflict, alreadyActive.Kind(), alreadyActive
	case errors.As(err, &notesRequired):
		status, body.Kind, body.Detail = http.StatusUnprocessableEntity, notesRequired.Kind(), notesRequired
	default:
		s.logger.Error("internal error", "error", err)
		status, body.Kind, body.Message = http.StatusInternalServerError, "internal", "internal server error"
	}

	s.writeJSON(w, status, body)
}
