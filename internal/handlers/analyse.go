// Package handlers exposes the analysis pipeline over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Lllllllleong/pricingextractor/internal/apperr"
	"github.com/Lllllllleong/pricingextractor/internal/config"
	"github.com/Lllllllleong/pricingextractor/internal/models"
	"github.com/Lllllllleong/pricingextractor/internal/services"
	"github.com/Lllllllleong/pricingextractor/internal/upload"
	"github.com/google/uuid"
)

// Response headers set on every analysis.
const (
	HeaderRequestID   = "X-Request-Id"
	HeaderPageCount   = "X-Page-Count"
	HeaderSchemaValid = "X-Schema-Valid"
)

// multipartOverhead is allowed on top of the file limit for boundaries and
// part headers.
const multipartOverhead = 1 << 20

type AnalyseHandler struct {
	analyser *services.Analyser
	config   config.ServerConfig
}

func NewAnalyseHandler(a *services.Analyser, cfg config.ServerConfig) *AnalyseHandler {
	if cfg.UploadField == "" {
		cfg.UploadField = "file"
	}
	return &AnalyseHandler{analyser: a, config: cfg}
}

func (h *AnalyseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	logCtx := slog.With("requestId", requestID)
	w.Header().Set(HeaderRequestID, requestID)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONError(w, http.StatusMethodNotAllowed, apperr.KindRequest, "only POST is supported", requestID)
		return
	}

	ctx := r.Context()
	if h.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.RequestTimeout)
		defer cancel()
	}

	if h.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes+multipartOverhead)
	}
	doc, err := h.spoolUpload(r)
	if err != nil {
		logCtx.Warn("Rejected upload.", "error", err)
		writeError(w, err, requestID)
		return
	}
	defer doc.Close()

	outcome, err := h.analyser.Process(ctx, doc, requestID, "upload")
	if err != nil {
		writeError(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderPageCount, strconv.Itoa(outcome.PageCount))
	w.Header().Set(HeaderSchemaValid, strconv.FormatBool(outcome.Result.SchemaValid))
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, outcome.Result.Raw); err != nil {
		logCtx.Error("Failed to write response body", "error", err)
		return
	}
	h.analyser.MarkResponded(ctx, requestID)
}

// spoolUpload streams the configured multipart field into a temp file without
// buffering the whole form in memory.
func (h *AnalyseHandler) spoolUpload(r *http.Request) (*upload.Document, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apperr.Request("handlers.spoolUpload", fmt.Errorf("expected multipart/form-data: %w", err))
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, apperr.Request("handlers.spoolUpload", fmt.Errorf("missing form field %q", h.config.UploadField))
		}
		if err != nil {
			return nil, apperr.Request("handlers.spoolUpload", classifyBodyError(err))
		}
		if part.FormName() != h.config.UploadField {
			part.Close()
			continue
		}
		doc, err := upload.Spool(part, h.config.TempDir, part.FileName(), h.config.MaxUploadBytes)
		part.Close()
		return doc, err
	}
}

func classifyBodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: %w", upload.ErrTooLarge, err)
	}
	return fmt.Errorf("malformed multipart body: %w", err)
}

func writeError(w http.ResponseWriter, err error, requestID string) {
	writeJSONError(w, apperr.StatusOf(err), apperr.KindOf(err), err.Error(), requestID)
}

func writeJSONError(w http.ResponseWriter, status int, kind apperr.Kind, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := models.ErrorResponse{Error: models.ErrorBody{
		Kind:      string(kind),
		Message:   message,
		RequestID: requestID,
	}}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write error response", "requestId", requestID, "error", err)
	}
}
