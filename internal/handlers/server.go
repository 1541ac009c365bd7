// Package handlers exposes the HTTP API: users, subscriptions, checkout,
// billing webhooks, inference, uploads and health checks.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/simple-saas-template/backend/internal/auth"
	"github.com/simple-saas-template/backend/internal/billing"
	"github.com/simple-saas-template/backend/internal/health"
	"github.com/simple-saas-template/backend/internal/inference"
	"github.com/simple-saas-template/backend/internal/repository"
	"github.com/simple-saas-template/backend/internal/response"
	"github.com/simple-saas-template/backend/internal/upload"
)

const (
	maxBodyBytes    = 1 << 20
	maxWebhookBytes = 64 << 10
)

// Names used by the health endpoints.
const (
	ServiceName = "simple-saas-api"

	CheckStore  = "dynamodb"
	CheckBucket = "s3_uploads"
	CheckModel  = "bedrock_claude"

	ComponentStorage = "storage"
	ComponentAI      = "ai"
)

// Options carries the clients the handlers depend on. They are built once
// per process and shared by every request.
type Options struct {
	Repo      repository.Repository
	Billing   billing.Client
	Processor *billing.Processor
	Model     inference.Model
	Uploads   *upload.Service
	Verifier  auth.Verifier
	// Health runs the dependency checks. When nil only the store and the
	// model are checked.
	Health *health.Checker

	WebhookSecret string
	// Defaults fills model parameters the request leaves out.
	Defaults inference.Request
}

type Server struct {
	repo      repository.Repository
	billing   billing.Client
	processor *billing.Processor
	model     inference.Model
	uploads   *upload.Service
	health    *health.Checker

	webhookSecret string
	defaults      inference.Request

	mux *chi.Mux
}

func New(opts Options) *Server {
	srv := &Server{
		repo:          opts.Repo,
		billing:       opts.Billing,
		processor:     opts.Processor,
		model:         opts.Model,
		uploads:       opts.Uploads,
		health:        opts.Health,
		webhookSecret: opts.WebhookSecret,
		defaults:      opts.Defaults,
	}
	if srv.processor == nil {
		srv.processor = billing.NewProcessor(opts.Repo, opts.Billing)
	}
	if srv.health == nil {
		srv.health = health.New(ServiceName)
		srv.health.Register(CheckStore, health.Store(opts.Repo), ComponentStorage)
		srv.health.Register(CheckModel, health.Model(opts.Model, opts.Defaults.Model), ComponentAI)
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(requestLogger)
	mux.Use(recoverer)
	mux.Use(response.CORS())
	mux.Use(auth.Middleware(opts.Verifier))

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/health", srv.handleHealth},
		{http.MethodGet, "/health/{component}", srv.handleComponentHealth},
		{http.MethodPost, "/auth/session", srv.handleUser},
		{http.MethodGet, "/subscription/status", srv.handleSubscriptionStatus},
		{http.MethodPost, "/stripe/checkout", srv.handleCheckout},
		{http.MethodPost, "/stripe/webhook", srv.handleWebhook},
		{http.MethodPost, "/ai/generate", srv.handleGenerate},
		{http.MethodGet, "/ai/history", srv.handleHistory},
		{http.MethodPost, "/upload/presigned-url", srv.handleUploadURL},
	}
	for _, route := range routes {
		mux.Method(route.method, route.path, route.handler)
		mux.Options(route.path, response.Preflight)
	}

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "Not found")
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	srv.mux = mux
	return srv
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestID", middleware.GetReqID(r.Context()),
		)
	})
}

// recoverer turns a handler panic into the standard 500 envelope. The
// panic value and stack go to the log, never to the client.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.Error("handler panic",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"requestID", middleware.GetReqID(r.Context()),
				"stack", string(debug.Stack()),
			)
			response.Error(w, http.StatusInternalServerError, "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	return err
}

// requestID prefers the Lambda invocation id so log lines and responses
// can be matched against the platform's own logs.
func requestID(r *http.Request) string {
	if lc, ok := lambdacontext.FromContext(r.Context()); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return uuid.NewString()
}
