package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/kozaktomas/derm-match/internal/analyzer"
	"github.com/kozaktomas/derm-match/internal/constants"
)

// AnalyzeService runs the image matching pipeline.
type AnalyzeService interface {
	Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Report, error)
}

// AnalyzeHandler handles the image analysis endpoint.
type AnalyzeHandler struct {
	service AnalyzeService
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(service AnalyzeService) *AnalyzeHandler {
	return &AnalyzeHandler{service: service}
}

// Analyze accepts a multipart image upload with optional age, ethnicity and k
// form fields and responds with the analysis report. The HTTP status mirrors
// the report status, so clients can branch without parsing the body.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBytes)
	if err := r.ParseMultipartForm(constants.MaxImageBytes); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	var k int
	if s := r.FormValue("k"); s != "" {
		k, err = strconv.Atoi(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
	}

	report, err := h.service.Analyze(r.Context(), analyzer.Request{
		Image:     imageData,
		Age:       r.FormValue("age"),
		Ethnicity: r.FormValue("ethnicity"),
		K:         k,
	})
	if err != nil {
		if errors.Is(err, analyzer.ErrInvalidK) || errors.Is(err, analyzer.ErrEmptyImage) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("analyze %s failed: %v", sanitizeForLog(header.Filename), err)
		respondError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	respondJSON(w, statusCode(report.Status), report)
}

// statusCode maps a pipeline status to an HTTP status code.
func statusCode(status analyzer.Status) int {
	switch status {
	case analyzer.StatusOK:
		return http.StatusOK
	case analyzer.StatusLowQuality, analyzer.StatusNoFaceDetected:
		return http.StatusUnprocessableEntity
	case analyzer.StatusIndexUnavailable, analyzer.StatusEmbeddingUnavailable:
		return http.StatusServiceUnavailable
	case analyzer.StatusTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
