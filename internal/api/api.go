package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/novatrust/bio-gateway/internal/config"
	"github.com/novatrust/bio-gateway/internal/core/domain"
	"github.com/novatrust/bio-gateway/internal/core/event"
	"github.com/novatrust/bio-gateway/internal/core/ports"
	"github.com/novatrust/bio-gateway/internal/gateways"
	"github.com/novatrust/bio-gateway/internal/health"
	"github.com/novatrust/bio-gateway/internal/log"
	"github.com/novatrust/bio-gateway/internal/repositories"
)

// Server wires the HTTP surface to the services
type Server struct {
	cfg    *config.Configuration
	ops    ports.OperationsService
	issuer ports.CredentialIssuer
	health *health.Status
}

// NewServer returns the API server
func NewServer(cfg *config.Configuration, ops ports.OperationsService, issuer ports.CredentialIssuer, h *health.Status) *Server {
	return &Server{
		cfg:    cfg,
		ops:    ops,
		issuer: issuer,
		health: h,
	}
}

// Routes mounts all endpoints on the router. The v1 surface requires basic
// auth, the health endpoint does not.
func (s *Server) Routes(mux *chi.Mux) {
	mux.Get("/status", s.healthStatus)

	mux.Route("/v1", func(r chi.Router) {
		r.Use(middleware.BasicAuth("bio-gateway", map[string]string{
			s.cfg.HTTPBasicAuth.User: s.cfg.HTTPBasicAuth.Password,
		}))
		r.Post("/enrollments", s.createEnrollment)
		r.Post("/authentications", s.createAuthentication)
		r.Get("/operations/{id}", s.getOperation)
		r.Post("/capture/events", s.submitCaptureEvent)
		r.Post("/credentials/refresh", s.refreshCredentials)
	})
}

// CreateOperationRequest starts an enrollment or authentication
type CreateOperationRequest struct {
	UserID     string `json:"user_id"`
	SubjectRef string `json:"subject_ref"`
}

// CreateOperationResponse is the answer to a started operation. The capture
// secret is only returned here, never on status reads.
type CreateOperationResponse struct {
	OperationID   string    `json:"operation_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	CaptureSecret string    `json:"capture_secret"`
}

// CredentialsResponse carries minted session credentials
type CredentialsResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// OperationStatusResponse is the answer to a status query
type OperationStatusResponse struct {
	OperationID string               `json:"operation_id"`
	Kind        string               `json:"kind"`
	State       string               `json:"state"`
	Outcome     string               `json:"outcome"`
	Reasons     []string             `json:"reasons,omitempty"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Credentials *CredentialsResponse `json:"credentials,omitempty"`
}

// CaptureEventRequest is the notification the capture surface posts back
type CaptureEventRequest struct {
	OperationID string `json:"operation_id"`
	Type        string `json:"type"`
	PageName    string `json:"page_name"`
	Success     bool   `json:"success"`
}

// RefreshRequest exchanges a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) createEnrollment(w http.ResponseWriter, r *http.Request) {
	s.createOperation(w, r, domain.KindEnrollment)
}

func (s *Server) createAuthentication(w http.ResponseWriter, r *http.Request) {
	s.createOperation(w, r, domain.KindAuthentication)
}

func (s *Server) createOperation(w http.ResponseWriter, r *http.Request, kind domain.OperationKind) {
	ctx := r.Context()

	var req CreateOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.SubjectRef == "" {
		writeError(ctx, w, http.StatusBadRequest, "user_id and subject_ref are required")
		return
	}

	var (
		started *ports.StartedOperation
		err     error
	)
	if kind == domain.KindEnrollment {
		started, err = s.ops.StartEnrollment(ctx, req.UserID, req.SubjectRef)
	} else {
		started, err = s.ops.StartAuthentication(ctx, req.UserID, req.SubjectRef)
	}
	if err != nil {
		switch {
		case errors.Is(err, gateways.ErrInvalidSubject):
			writeError(ctx, w, http.StatusBadRequest, "invalid subject reference")
		case errors.Is(err, gateways.ErrProviderUnavailable):
			writeError(ctx, w, http.StatusBadGateway, "verification provider unavailable")
		default:
			log.Error(ctx, "starting operation", "err", err, "kind", kind)
			writeError(ctx, w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(ctx, w, http.StatusCreated, CreateOperationResponse{
		OperationID:   started.Operation.OperationID,
		ExpiresAt:     started.Operation.ExpiresAt,
		CaptureSecret: started.Session.Secret,
	})
}

func (s *Server) getOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	operationID := chi.URLParam(r, "id")

	status, err := s.ops.Get(ctx, operationID)
	if err != nil {
		if errors.Is(err, repositories.ErrOperationNotFound) {
			writeError(ctx, w, http.StatusNotFound, "operation not found")
			return
		}
		log.Error(ctx, "getting operation", "err", err, "operationID", operationID)
		writeError(ctx, w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := OperationStatusResponse{
		OperationID: status.Operation.OperationID,
		Kind:        string(status.Operation.Kind),
		State:       string(status.Operation.State),
		Outcome:     string(status.Outcome),
		Reasons:     status.Reasons,
		CompletedAt: status.Operation.CompletedAt,
	}
	if status.Credentials != nil {
		resp.Credentials = &CredentialsResponse{
			AccessToken:  status.Credentials.AccessToken,
			RefreshToken: status.Credentials.RefreshToken,
			ExpiresAt:    status.Credentials.ExpiresAt,
		}
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// submitCaptureEvent accepts capture surface notifications. Always 202: the
// detector decides asynchronously whether the event shape means anything.
func (s *Server) submitCaptureEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CaptureEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OperationID == "" {
		writeError(ctx, w, http.StatusBadRequest, "operation_id is required")
		return
	}

	if err := s.ops.SubmitCaptureEvent(ctx, &event.CaptureSurface{
		OperationID: req.OperationID,
		Type:        req.Type,
		PageName:    req.PageName,
		Success:     req.Success,
	}); err != nil {
		log.Error(ctx, "submitting capture event", "err", err, "operationID", req.OperationID)
		writeError(ctx, w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(ctx, w, http.StatusAccepted, nil)
}

func (s *Server) refreshCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	creds, err := s.issuer.Refresh(ctx, req.RefreshToken)
	if err != nil {
		writeError(ctx, w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	writeJSON(ctx, w, http.StatusOK, CredentialsResponse{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    creds.ExpiresAt,
	})
}

func (s *Server) healthStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(ctx, w, http.StatusOK, s.health.Status(ctx))
}
