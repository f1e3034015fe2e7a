package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/usecase"
	"tcar-claims-service/pkg/apperror"
	"tcar-claims-service/pkg/logger"

	"github.com/gorilla/mux"
)

// MaxUploadSize caps the multipart body of the upload endpoints
const MaxUploadSize = 20 << 20

// ClaimHandler handles HTTP requests for claims
type ClaimHandler struct {
	service *usecase.ClaimService
	logger  logger.Logger
}

// NewClaimHandler creates a new claim handler
func NewClaimHandler(service *usecase.ClaimService, logger logger.Logger) *ClaimHandler {
	return &ClaimHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers claim routes
func (h *ClaimHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/claims", h.ListClaims).Methods(http.MethodGet)
	r.HandleFunc("/claims", h.CreateClaim).Methods(http.MethodPost)
	r.HandleFunc("/claims/tcar/{tcarNo}", h.GetClaimByTcarNo).Methods(http.MethodGet)
	r.HandleFunc("/claims/{id}", h.GetClaim).Methods(http.MethodGet)
	r.HandleFunc("/claims/{id}", h.UpdateClaim).Methods(http.MethodPatch, http.MethodPut)
	r.HandleFunc("/claims/{id}", h.DeleteClaim).Methods(http.MethodDelete)
	r.HandleFunc("/claims/{id}/upload-document", h.UploadDocument).Methods(http.MethodPost)
	r.HandleFunc("/claims/{id}/upload-attachment", h.UploadAttachment).Methods(http.MethodPost)
}

// ListClaims returns every claim
func (h *ClaimHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := h.service.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, claims)
}

// GetClaim returns a claim by id
func (h *ClaimHandler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, claim)
}

// GetClaimByTcarNo returns a claim by its tcar number
func (h *ClaimHandler) GetClaimByTcarNo(w http.ResponseWriter, r *http.Request) {
	claim, err := h.service.GetByTcarNo(r.Context(), mux.Vars(r)["tcarNo"])
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, claim)
}

// CreateClaim registers a new claim. Status, id and tcarNo in the body are
// ignored.
func (h *ClaimHandler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	var req entity.NewClaim
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, apperror.Validation("invalid request body"))
		return
	}

	if strings.TrimSpace(req.CreatedBy) == "" {
		req.CreatedBy = userID(r)
	}

	claim, err := h.service.Create(r.Context(), &req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, claim)
}

// UpdateClaim applies a partial update
func (h *ClaimHandler) UpdateClaim(w http.ResponseWriter, r *http.Request) {
	var patch entity.ClaimPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, h.logger, apperror.Validation("invalid request body"))
		return
	}

	claim, err := h.service.Update(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, claim)
}

// DeleteClaim removes a claim
func (h *ClaimHandler) DeleteClaim(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadDocument stores the countermeasure document of a claim
func (h *ClaimHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, h.service.UploadDocument)
}

// UploadAttachment adds an attachment to a claim
func (h *ClaimHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, h.service.UploadAttachment)
}

type uploadFunc func(ctx context.Context, id, fileName, mimeType string, content io.Reader) (*usecase.UploadResult, error)

func (h *ClaimHandler) upload(w http.ResponseWriter, r *http.Request, store uploadFunc) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, h.logger, apperror.Validation("file exceeds upload limit").
				WithDetail("maxBytes", MaxUploadSize))
			return
		}
		respondError(w, h.logger, apperror.Validation("invalid multipart body"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, h.logger, apperror.Validation("file is required"))
		return
	}
	defer file.Close()

	result, err := store(r.Context(), mux.Vars(r)["id"], header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// userID is the caller named by the X-User-ID header
func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return "system"
}
