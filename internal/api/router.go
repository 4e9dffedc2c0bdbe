package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	apimiddleware "github.com/olegiv/bugfixer-ai-go/internal/api/middleware"
	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
	"github.com/olegiv/bugfixer-ai-go/internal/fixer"
	"github.com/olegiv/bugfixer-ai-go/internal/logging"
)

// DefaultRequestTimeout bounds one fix request end to end.
const DefaultRequestTimeout = 120 * time.Second

// maxBodyBytes caps request bodies; pasted Jenkins logs can be large.
const maxBodyBytes = 32 << 20

//go:embed static/index.html
var indexHTML []byte

// Fixer produces corrections.
// Implemented by fixer.Fixer.
type Fixer interface {
	Fix(ctx context.Context, req fixer.FixRequest) (*fixer.FixResult, error)
	FixCommit(ctx context.Context, req fixer.CommitFixRequest) (*fixer.FixResult, error)
}

// RouterOptions configures the API routes.
type RouterOptions struct {
	Fixer Fixer
	// CORSAllowedOrigins defaults to any origin.
	CORSAllowedOrigins []string
	// RequestTimeout applies to the fix routes only.
	RequestTimeout time.Duration
	Logger         *logging.SecureLogger
}

// FixRouter handles the fix endpoints and the static page.
type FixRouter struct {
	fixer   Fixer
	origins []string
	timeout time.Duration
	log     *logging.SecureLogger
}

// NewFixRouter creates a new FixRouter.
func NewFixRouter(opts RouterOptions) *FixRouter {
	r := &FixRouter{
		fixer:   opts.Fixer,
		origins: opts.CORSAllowedOrigins,
		timeout: opts.RequestTimeout,
		log:     opts.Logger,
	}
	if len(r.origins) == 0 {
		r.origins = []string{"*"}
	}
	if r.timeout <= 0 {
		r.timeout = DefaultRequestTimeout
	}
	if r.log == nil {
		r.log = logging.Nop()
	}
	return r
}

// Routes returns the chi router for the API.
func (r *FixRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: r.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	router.Get("/", r.Index)
	router.Get("/healthz", HealthHandler)

	router.Group(func(g chi.Router) {
		g.Use(chimiddleware.Timeout(r.timeout))
		g.Post("/fix", r.Fix)
		g.Post("/fix/commit", r.FixCommit)
	})

	return router
}

// Fix handles POST /fix.
func (r *FixRouter) Fix(w http.ResponseWriter, req *http.Request) {
	var body FixRequest
	if err := decodeBody(w, req, &body); err != nil {
		apimiddleware.WriteError(w, req, err, r.log)
		return
	}
	if err := requireFields(map[string]bool{
		"jenkins_logs": body.JenkinsLogs != nil,
		"diff_json":    body.DiffJSON != nil,
	}); err != nil {
		apimiddleware.WriteError(w, req, err, r.log)
		return
	}

	result, err := r.fixer.Fix(req.Context(), fixer.FixRequest{
		JenkinsLogs: *body.JenkinsLogs,
		DiffJSON:    *body.DiffJSON,
		ChunkIndex:  intOrZero(body.ChunkIndex),
	})
	if err != nil {
		apimiddleware.WriteError(w, req, err, r.log)
		return
	}

	apimiddleware.WriteJSON(w, http.StatusOK, FixResponse{Correction: result.Correction})
}

// FixCommit handles POST /fix/commit, the form posted by the index page.
func (r *FixRouter) FixCommit(w http.ResponseWriter, req *http.Request) {
	var body CommitFixRequest
	if err := decodeBody(w, req, &body); err != nil {
		apimiddleware.WriteError(w, req, err, r.log)
		return
	}
	if err := requireFields(map[string]bool{
		"job_name":     body.JobName != nil,
		"build_number": body.BuildNumber != nil,
		"repo_owner":   body.RepoOwner != nil,
		"repo_name":    body.RepoName != nil,
		"commit_sha":   body.CommitSHA != nil,
	}); err != nil {
		apimiddleware.WriteError(w, req, err, r.log)
		return
	}

	result, err := r.fixer.FixCommit(req.Context(), fixer.CommitFixRequest{
		JobName:     *body.JobName,
		BuildNumber: *body.BuildNumber,
		RepoOwner:   *body.RepoOwner,
		RepoName:    *body.RepoName,
		CommitSHA:   *body.CommitSHA,
		ChunkIndex:  intOrZero(body.ChunkIndex),
	})
	if err != nil {
		apimiddleware.WriteError(w, req, err, r.log)
		return
	}

	apimiddleware.WriteJSON(w, http.StatusOK, CommitFixResponse{
		Correction: result.Correction,
		Chunk:      result.Chunk,
		Total:      result.Total,
		IsLast:     result.IsLast,
	})
}

// Index handles GET /.
func (r *FixRouter) Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(indexHTML)
}

// HealthHandler handles GET /healthz.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	apimiddleware.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// decodeBody reads a single JSON object. Malformed JSON is a 400, a field of
// the wrong type a 422 and an oversized body a 413.
func decodeBody(w http.ResponseWriter, req *http.Request, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)

	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &internalerrors.Error{
				Kind:       internalerrors.KindValidation,
				Op:         "api.decode",
				StatusCode: http.StatusRequestEntityTooLarge,
				Message:    "request body too large",
			}
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return internalerrors.Validation("api.decode", "field %s must be a %s", typeErr.Field, typeErr.Type)
		}
		return &internalerrors.Error{
			Kind:       internalerrors.KindValidation,
			Op:         "api.decode",
			StatusCode: http.StatusBadRequest,
			Message:    "malformed JSON body: " + err.Error(),
		}
	}
	return nil
}

// requireFields reports every absent field in one 422 error.
func requireFields(present map[string]bool) error {
	var missing []string
	for name, ok := range present {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return internalerrors.Validation("api.validate", "missing required fields: %s", strings.Join(missing, ", "))
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
