package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/siqueiraa/FraudFlow/pkg/alert"
	"github.com/siqueiraa/FraudFlow/pkg/codec"
	"github.com/siqueiraa/FraudFlow/pkg/ingest"
	"github.com/siqueiraa/FraudFlow/pkg/transform"
)

const defaultMaxBodyBytes = 1 << 20

// Handler holds all HTTP handler dependencies.
type Handler struct {
	ingest      *ingest.Service
	transformer *transform.Transformer
	dispatcher  *alert.Dispatcher
	maxBody     int64
	mux         *http.ServeMux
}

// New creates an HTTP handler and registers all routes. The transformer is
// expected to use the Base64 envelope, as delivery records carry base64 data.
func New(svc *ingest.Service, tr *transform.Transformer, disp *alert.Dispatcher, maxBody int64) http.Handler {
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	h := &Handler{ingest: svc, transformer: tr, dispatcher: disp, maxBody: maxBody, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/transactions", h.ingestTransaction)
	h.mux.HandleFunc("POST /v1/transform", h.transformRecords)
	h.mux.HandleFunc("POST /v1/alerts", h.dispatchAlerts)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /v1/transactions: validate and put one transaction on the stream.
func (h *Handler) ingestTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := h.ingest.Ingest(r.Context(), body)
	writeJSON(w, resp.StatusCode, resp.Body)
}

// POST /v1/transform: delivery-stream transformation of a record batch.
func (h *Handler) transformRecords(w http.ResponseWriter, r *http.Request) {
	var req transform.DeliveryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.transformer.TransformDelivery(req))
}

// POST /v1/alerts?source=raw|enriched: alert on a record batch.
func (h *Handler) dispatchAlerts(w http.ResponseWriter, r *http.Request) {
	trigger := alert.Trigger(r.URL.Query().Get("source"))
	switch trigger {
	case "":
		trigger = alert.TriggerRaw
	case alert.TriggerRaw, alert.TriggerEnriched:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown source %q", trigger))
		return
	}

	var req transform.DeliveryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	c := base64Codec{inner: codec.NewJSON()}
	sources := make([]alert.Source, len(req.Records))
	for i, rec := range req.Records {
		if trigger == alert.TriggerEnriched {
			sources[i] = alert.Enriched(rec.RecordID, []byte(rec.Data), c)
		} else {
			sources[i] = alert.Raw(rec.RecordID, []byte(rec.Data), c)
		}
	}

	report := h.dispatcher.Dispatch(r.Context(), sources)
	writeJSON(w, http.StatusOK, alertResponse{
		Status:    "ok",
		Published: report.Published(),
		Failed:    len(report.Failed()),
	})
}

// GET /healthz is the liveness probe.
func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := codec.API.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return false
	}
	return true
}

type alertResponse struct {
	Status    string `json:"status"`
	Published int    `json:"published"`
	Failed    int    `json:"failed"`
}

// base64Codec decodes delivery records whose data is base64 text.
type base64Codec struct {
	inner codec.Codec
}

func (c base64Codec) Name() string { return "base64+" + c.inner.Name() }

func (c base64Codec) Encode(record map[string]any) ([]byte, error) {
	data, err := c.inner.Encode(record)
	if err != nil {
		return nil, err
	}
	return transform.Base64{}.Seal(data), nil
}

func (c base64Codec) Decode(data []byte) (map[string]any, error) {
	raw, err := transform.Base64{}.Open(data)
	if err != nil {
		return nil, err
	}
	return c.inner.Decode(raw)
}
