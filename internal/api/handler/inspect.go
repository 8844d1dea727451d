package handler

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/remiblancher/derpki/internal/api/dto"
	apierrors "github.com/remiblancher/derpki/internal/api/errors"
	"github.com/remiblancher/derpki/internal/api/metrics"
	"github.com/remiblancher/derpki/internal/inspect"
	"github.com/remiblancher/derpki/internal/pemutil"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 4 << 20

// InspectHandler handles inspect-related HTTP requests.
type InspectHandler struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewInspectHandler creates a new InspectHandler. m may be nil.
func NewInspectHandler(logger *zap.Logger, m *metrics.Metrics) *InspectHandler {
	return &InspectHandler{logger: logger, metrics: m}
}

// Inspect handles POST /api/v1/inspect.
//
// A JSON body is an InspectRequest. Any other body is taken as PEM text or
// binary DER, with the tree and pkcs12 query parameters as options.
func (h *InspectHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, apierrors.NewBadRequest("request body too large"))
		return
	}

	var req dto.InspectRequest
	var data []byte
	if isJSON(r) {
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("Invalid JSON request body"))
			return
		}
		if data, err = req.Data.Decode(); err != nil {
			respondError(w, http.StatusBadRequest, apierrors.NewBadRequest(err.Error()))
			return
		}
	} else {
		data = body
		req.Tree = queryBool(r, "tree")
		req.PKCS12 = queryBool(r, "pkcs12")
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("no data to inspect"))
		return
	}

	var docs []inspect.Document
	if req.PKCS12 {
		var d inspect.Document
		d, err = inspect.DecodePKCS12(data)
		docs = []inspect.Document{d}
	} else {
		docs, err = inspect.Decode(data)
	}
	if err != nil {
		h.observe("", false)
		h.logger.Debug("inspect failed", zap.Error(err))
		respondMapped(w, err)
		return
	}

	resp := dto.InspectResponse{Format: "DER", Documents: make([]dto.InspectDocument, 0, len(docs))}
	if pemutil.IsPEM(data) {
		resp.Format = "PEM"
	}
	for _, d := range docs {
		h.observe(string(d.Kind), true)
		resp.Documents = append(resp.Documents, dto.NewInspectDocument(d, req.Tree))
	}
	respond(w, r, http.StatusOK, resp)
}

func (h *InspectHandler) observe(kind string, ok bool) {
	if h.metrics != nil {
		h.metrics.ObserveDocument(kind, ok)
	}
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == ContentTypeJSON
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
