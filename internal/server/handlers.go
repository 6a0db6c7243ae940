package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/KaramelBytes/microlens-cli/internal/analysis"
	"github.com/KaramelBytes/microlens-cli/internal/exposure"
	"github.com/KaramelBytes/microlens-cli/internal/ingest"
	"github.com/KaramelBytes/microlens-cli/internal/logging"
	"github.com/KaramelBytes/microlens-cli/internal/table"
)

const defaultMaxUploadMB = 16

// Handler serves the analysis endpoints.
type Handler struct {
	schema    table.Schema
	fidelity  analysis.Fidelity
	renderer  analysis.Renderer
	cache     *lru.Cache[string, *analysis.Report]
	maxUpload int64
	logger    *logging.Logger
}

// NewHandler creates the endpoint handler. A nil renderer leaves the
// visualization out of reports.
func NewHandler(cfg Config, renderer analysis.Renderer, log *logging.Logger) (*Handler, error) {
	if log == nil {
		log = logging.Nop()
	}
	schema := cfg.Schema
	if len(schema.Columns) == 0 && !schema.Infer {
		schema = table.DefaultSchema()
	}
	fidelity := cfg.Fidelity
	if fidelity == "" {
		fidelity = analysis.FidelityFull
	}
	mb := cfg.MaxUploadMB
	if mb <= 0 {
		mb = defaultMaxUploadMB
	}
	h := &Handler{
		schema:    schema,
		fidelity:  fidelity,
		renderer:  renderer,
		maxUpload: int64(mb) << 20,
		logger:    log,
	}
	if cfg.CacheSize > 0 {
		c, err := lru.New[string, *analysis.Report](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create report cache: %w", err)
		}
		h.cache = c
	}
	return h, nil
}

// Analyze accepts a multipart upload in field "file" and returns the report.
// POST /analyze[?fidelity=basic]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	fidelity := h.fidelity
	if q := r.URL.Query().Get("fidelity"); q != "" {
		f, err := analysis.ParseFidelity(q)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		fidelity = f
	}

	if r.ContentLength > h.maxUpload {
		respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d MB limit", h.maxUpload>>20))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d MB limit", h.maxUpload>>20))
			return
		}
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	name := filepath.Base(hdr.Filename)
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}

	key := h.cacheKey(name, data, fidelity)
	if h.cache != nil {
		if rep, ok := h.cache.Get(key); ok {
			w.Header().Set("X-Cache", "HIT")
			respondJSON(w, http.StatusOK, rep)
			return
		}
	}

	log := h.logger.WithField("file", name)
	opt := ingest.Options{Schema: h.schema}
	tbl, err := ingest.Read(name, data, opt)
	if err != nil {
		h.respondAnalysisError(w, log, err)
		return
	}
	rep, err := analysis.Analyze(r.Context(), tbl, analysis.Options{
		Name:     name,
		Fidelity: fidelity,
		Renderer: h.renderer,
		Logger:   log,
	})
	if err != nil {
		h.respondAnalysisError(w, log, err)
		return
	}

	if h.cache != nil {
		// a cancelled or faulted run must not be replayed to later requests
		if r.Context().Err() == nil && !rep.Diagnostics.Failed() {
			h.cache.Add(key, rep)
		}
		w.Header().Set("X-Cache", "MISS")
	}
	respondJSON(w, http.StatusOK, rep)
}

func (h *Handler) respondAnalysisError(w http.ResponseWriter, log *logging.Logger, err error) {
	if table.IsInputError(err) {
		log.WithError(err).Warn("rejected upload")
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.WithError(err).Error("analysis failed")
	msg := err.Error()
	var ae *analysis.AnalysisError
	if errors.As(err, &ae) {
		msg = ae.Err.Error()
	}
	respondError(w, http.StatusInternalServerError, "Analysis failed: "+msg)
}

// cacheKey identifies a report by upload content, file format, schema and fidelity.
func (h *Handler) cacheKey(name string, data []byte, fidelity analysis.Fidelity) string {
	sum := sha256.Sum256(data)
	var b strings.Builder
	b.WriteString(hex.EncodeToString(sum[:]))
	b.WriteByte('|')
	b.WriteString(name)
	b.WriteByte('|')
	b.WriteString(h.schema.Label)
	b.WriteByte('|')
	b.WriteString(strings.Join(h.schema.Columns, ","))
	if h.schema.Infer {
		b.WriteString("|infer")
	}
	b.WriteByte('|')
	b.WriteString(string(fidelity))
	return b.String()
}

// HealthTips returns the educational exposure-reduction content.
// GET /health-tips
func (h *Handler) HealthTips(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, exposure.Tips())
}

// FoodSources returns the food-source registry.
// GET /food-sources
func (h *Handler) FoodSources(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, exposure.FoodSources())
}
