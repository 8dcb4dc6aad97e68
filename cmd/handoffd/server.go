package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/objectgate/handoff/internal/config"
	"github.com/objectgate/handoff/internal/engine"
	"github.com/objectgate/handoff/internal/index"
	"github.com/objectgate/handoff/internal/metrics"
	"github.com/objectgate/handoff/internal/snapshot"
	"github.com/objectgate/handoff/internal/storequery"
)

// server wires the demo HTTP surface: health and metrics endpoints, a debug
// authenticate endpoint that drives the engine directly, index seeding for
// fixtures, and StoreQuery dispatch on S3-shaped paths.
type server struct {
	cfg    *config.Config
	engine *engine.Engine
	idx    index.BucketIndex
	sq     *storequery.Dispatcher
	router chi.Router
}

// HealthBody is the JSON body returned by the health check endpoint.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthOutput is the Huma output struct for the health check endpoint.
type HealthOutput struct {
	Body HealthBody
}

func newServer(cfg *config.Config, eng *engine.Engine, idx index.BucketIndex) *server {
	router := chi.NewMux()

	humaConfig := huma.DefaultConfig("Handoff Debug API", "1.0.0")
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	s := &server{
		cfg:    cfg,
		engine: eng,
		idx:    idx,
		sq:     storequery.NewDispatcher(idx, eng.Log),
		router: router,
	}

	if cfg.Observability.HealthCheck {
		huma.Register(api, huma.Operation{
			OperationID: "health-check",
			Method:      http.MethodGet,
			Path:        "/health",
			Summary:     "Health check",
		}, func(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
			return &HealthOutput{Body: HealthBody{Status: "ok"}}, nil
		})
	}
	if cfg.Observability.Metrics {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.Post("/debug/authenticate", s.handleAuthenticate)
	router.Post("/debug/seed", s.handleSeed)

	// S3-shaped paths carry only the StoreQuery side-channel in this
	// harness; the real S3 surface is out of scope.
	router.HandleFunc("/", s.storeQueryHandler(storequery.ServiceContext))
	router.HandleFunc("/{bucket}", s.storeQueryHandler(storequery.BucketContext))
	router.HandleFunc("/{bucket}/*", s.storeQueryHandler(storequery.ObjectContext))

	return s
}

func (s *server) handler() http.Handler {
	return metricsMiddleware(s.router)
}

// authenticateRequest is the debug endpoint's JSON input: the same inputs
// the REST host would hand the engine, with headers given by their plain
// HTTP names.
type authenticateRequest struct {
	AccessKeyID  string            `json:"accessKeyId"`
	SessionToken string            `json:"sessionToken"`
	StringToSign string            `json:"stringToSign"` // base64
	Method       string            `json:"method"`
	Path         string            `json:"path"`
	Headers      map[string]string `json:"headers"`
	Query        map[string]string `json:"query"`
}

type authenticateResponse struct {
	Ok         bool   `json:"ok"`
	UserID     string `json:"userId,omitempty"`
	Message    string `json:"message,omitempty"`
	SigningKey string `json:"signingKey,omitempty"` // base64
	Category   string `json:"category,omitempty"`
	Code       string `json:"code,omitempty"`
	HTTPStatus int    `json:"httpStatus,omitempty"`
}

func (s *server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var in authenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	sts, err := base64.StdEncoding.DecodeString(in.StringToSign)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stringToSign must be base64"})
		return
	}

	headers := make(map[string]string, len(in.Headers))
	for name, value := range in.Headers {
		headers[snapshot.HeaderEnvKey(name)] = value
	}
	bucket, key := splitPath(in.Path)

	req := &snapshot.RequestSnapshot{
		AccessKeyID:  in.AccessKeyID,
		SessionToken: in.SessionToken,
		StringToSign: sts,
		Method:       in.Method,
		Path:         in.Path,
		Headers:      headers,
		Query:        in.Query,
		Bucket:       bucket,
		ObjectKey:    key,
	}

	v := s.engine.Authenticate(r.Context(), req)
	if ok, isOk := v.OK(); isOk {
		writeJSON(w, http.StatusOK, authenticateResponse{
			Ok:         true,
			UserID:     ok.UserID,
			Message:    ok.Message,
			SigningKey: base64.StdEncoding.EncodeToString(ok.SigningKey),
		})
		return
	}
	fail, _ := v.Failure()
	status := http.StatusForbidden
	code := ""
	if fail.Code != nil {
		status = fail.Code.HTTPStatus
		code = fail.Code.Code
	}
	writeJSON(w, status, authenticateResponse{
		Ok:         false,
		Message:    fail.Message,
		Category:   fail.Category.String(),
		Code:       code,
		HTTPStatus: status,
	})
}

// seedRequest loads fixture data into the bucket index so StoreQuery has
// something to report against.
type seedRequest struct {
	Objects []struct {
		Bucket       string `json:"bucket"`
		Key          string `json:"key"`
		VersionID    string `json:"versionId"`
		DeleteMarker bool   `json:"deleteMarker"`
		Size         int64  `json:"size"`
	} `json:"objects"`
	Uploads []struct {
		Bucket   string `json:"bucket"`
		Key      string `json:"key"`
		UploadID string `json:"uploadId"`
	} `json:"uploads"`
}

func (s *server) handleSeed(w http.ResponseWriter, r *http.Request) {
	var in seedRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	switch idx := s.idx.(type) {
	case *index.MemoryIndex:
		for _, o := range in.Objects {
			idx.PutObjectVersion(o.Bucket, o.Key, o.VersionID, o.DeleteMarker, o.Size)
		}
		for _, u := range in.Uploads {
			idx.PutMultipartUpload(u.Bucket, u.Key, u.UploadID)
		}
	case *index.SQLiteIndex:
		for _, o := range in.Objects {
			if err := idx.PutObjectVersion(r.Context(), o.Bucket, o.Key, o.VersionID, o.DeleteMarker, o.Size); err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
		}
		for _, u := range in.Uploads {
			if err := idx.PutMultipartUpload(r.Context(), u.Bucket, u.Key, u.UploadID); err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
		}
	default:
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "index backend does not support seeding"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"objects": len(in.Objects), "uploads": len(in.Uploads)})
}

// storeQueryHandler serves the x-rgw-storequery side-channel for one handler
// context. Requests without the header get a terse 404 — this harness does
// not implement the S3 surface those paths would normally reach.
func (s *server) storeQueryHandler(hctx storequery.HandlerContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(storequery.HeaderName)
		if header == "" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no storequery header; S3 surface not implemented here"})
			return
		}

		req := storequery.Request{
			Bucket:    chi.URLParam(r, "bucket"),
			ObjectKey: chi.URLParam(r, "*"),
		}
		resp, err := s.sq.Dispatch(r.Context(), hctx, header, req)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, storequery.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(resp.Body)
	}
}

func splitPath(path string) (bucket, key string) {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i], trimmed[i+1:]
	}
	return trimmed, ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// responseRecorder wraps http.ResponseWriter to capture the HTTP status
// code for the metrics middleware.
type responseRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rr *responseRecorder) WriteHeader(code int) {
	if !rr.wroteHeader {
		rr.statusCode = code
		rr.wroteHeader = true
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if !rr.wroteHeader {
		rr.statusCode = http.StatusOK
		rr.wroteHeader = true
	}
	return rr.ResponseWriter.Write(b)
}

// metricsMiddleware records request count and duration per normalized path.
// The /metrics endpoint is excluded from self-instrumentation.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rr, r)

		path := metrics.NormalizePath(r.URL.Path)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rr.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
