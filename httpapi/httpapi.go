// Package httpapi exposes the signing service over REST. Routes are versioned
// under /v1 and scoped to the owner named by the X-Owner-ID header; real
// authentication sits in front of this facade and is out of scope here.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wudi/signkit/asset"
	"github.com/wudi/signkit/composite"
	"github.com/wudi/signkit/gateway"
	"github.com/wudi/signkit/observability"
	"github.com/wudi/signkit/service"
)

const ownerHeader = "X-Owner-ID"

// Server hosts the signing routes.
type Server struct {
	svc *service.Signing
	gw  gateway.Gateway
	log observability.Logger
}

// New builds a server over the signing service and its gateway.
func New(svc *service.Signing, gw gateway.Gateway, log observability.Logger) *Server {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Server{svc: svc, gw: gw, log: log}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/v1", func(api chi.Router) {
		api.Get("/signatures", s.listSignatures)
		api.Post("/signatures", s.createSignature)
		api.Patch("/signatures/{id}", s.renameSignature)
		api.Delete("/signatures/{id}", s.deleteSignature)

		api.Get("/documents/{id}", s.getDocument)
		api.Post("/documents/{id}/sign", s.signDocument)
		api.Delete("/documents/{id}/signature", s.clearSignature)
	})
	return r
}

// statusFor maps the error taxonomy onto HTTP statuses. Load failures and
// storage failures surface as 502: the request was well-formed but an
// upstream dependency let us down.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, gateway.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION"
	case errors.Is(err, gateway.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, composite.ErrResourceLoad):
		return http.StatusBadGateway, "RESOURCE_LOAD_FAILURE"
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, gateway.ErrStorage):
		return http.StatusBadGateway, "STORAGE_FAILURE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		s.log.Error("request failed", observability.Error("err", err))
	}
	writeError(w, status, code, err.Error())
}

func owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(ownerHeader)
	if id == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", ownerHeader+" header is required")
		return "", false
	}
	return id, true
}

func (s *Server) listSignatures(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	list, err := s.svc.ListSignatures(r.Context(), ownerID)
	if err != nil {
		s.fail(w, err)
		return
	}
	if list == nil {
		list = []asset.SignatureAsset{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": newRequestID(), "signatures": list})
}

func (s *Server) createSignature(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	var req struct {
		Name    string `json:"name"`
		Payload []byte `json:"signature_payload"` // base64 in JSON
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	created, err := s.gw.CreateSignatureAsset(r.Context(), ownerID, req.Name, req.Payload)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"request_id": newRequestID(), "signature": created})
}

func (s *Server) renameSignature(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	renamed, err := s.gw.RenameSignatureAsset(r.Context(), chi.URLParam(r, "id"), ownerID, req.Name)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": newRequestID(), "signature": renamed})
}

func (s *Server) deleteSignature(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	if err := s.gw.DeleteSignatureAsset(r.Context(), chi.URLParam(r, "id"), ownerID); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	doc, err := s.gw.GetDocument(r.Context(), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": newRequestID(), "document": doc})
}

func (s *Server) signDocument(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	var req struct {
		Placements []asset.NormalizedPlacement `json:"signature_data"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	signed, err := s.svc.SignDocument(r.Context(), chi.URLParam(r, "id"), ownerID, req.Placements)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": newRequestID(), "document": signed.Document})
}

func (s *Server) clearSignature(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	doc, err := s.svc.ClearSignature(r.Context(), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": newRequestID(), "document": doc})
}
