package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/dealerdesk-core/internal/cardroom"
	"github.com/nerrad567/dealerdesk-core/internal/relay"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/logout", s.handleLogout)

			r.Route("/stores", func(r chi.Router) {
				r.Get("/", s.handleListStores)
				r.Post("/{id}/select", s.handleSelectStore)
			})

			r.Route("/relay", func(r chi.Router) {
				r.Get("/status", s.handleRelayStatus)
				r.Get("/data-types", s.handleDataTypes)
				r.Post("/events", s.handleSendEvent)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": s.version,
	})
}

type storesResponse struct {
	Stores   []cardroom.Tenant `json:"stores"`
	ActiveID string            `json:"active_tenant_id,omitempty"`
}

func (s *Server) handleListStores(w http.ResponseWriter, _ *http.Request) {
	tenants := s.relay.Tenants()
	if tenants == nil {
		tenants = []cardroom.Tenant{}
	}
	writeJSON(w, http.StatusOK, storesResponse{
		Stores:   tenants,
		ActiveID: s.relay.ConnectionStatus().TenantID,
	})
}

// handleSelectStore switches the active tenant. Connectivity problems are
// not errors: the response reports offline mode through the status body.
func (s *Server) handleSelectStore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "store id must be an integer")
		return
	}
	if !s.relay.SelectTenant(r.Context(), id) {
		writeNotFound(w, "store not found or no operator session")
		return
	}
	writeJSON(w, http.StatusOK, s.relay.ConnectionStatus())
}

func (s *Server) handleRelayStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.relay.ConnectionStatus())
}

func (s *Server) handleDataTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data_types": relay.DataTypes()})
}

// sendEventRequest carries one domain event from a POS front end.
// Event is optional and defaults to the configured relay event name.
type sendEventRequest struct {
	Event    string          `json:"event"`
	DataType relay.DataType  `json:"dataType"`
	Data     json.RawMessage `json:"data"`
}

type sendEventResponse struct {
	Sent   bool   `json:"sent"`
	Tenant string `json:"tenant_id"`
}

// handleSendEvent relays a domain event for the active tenant. A frame that
// could not be written right away is handed to the tenant queue and
// reported with 202.
func (s *Server) handleSendEvent(w http.ResponseWriter, r *http.Request) {
	var req sendEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p, err := relay.DecodePayload(req.DataType, req.Data)
	if err != nil {
		code := ErrCodeValidation
		if errors.Is(err, relay.ErrUnknownDataType) {
			code = ErrCodeBadRequest
		}
		writeError(w, http.StatusBadRequest, code, err.Error())
		return
	}

	status := s.relay.ConnectionStatus()
	if status.TenantID == "" {
		writeError(w, http.StatusConflict, ErrCodeConflict, "no store selected")
		return
	}

	sent := s.relay.SendDomainEvent(req.Event, p)
	resp := sendEventResponse{Sent: sent, Tenant: status.TenantID}
	if sent {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}
