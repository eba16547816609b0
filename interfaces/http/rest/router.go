package rest

import (
	"net/http"
	"strings"
	"time"

	"filon/application/commands/bus"
	querybus "filon/application/queries/bus"
	"filon/interfaces/http/rest/handlers"
	"filon/interfaces/http/rest/middleware"
	"filon/pkg/common"
	pkgerrors "filon/pkg/errors"
	"filon/pkg/ratelimit"
	"filon/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options tunes the router's outer middleware
type Options struct {
	EnableCORS     bool
	AllowedOrigins []string
	Debug          bool
	// RateLimitPerMinute caps API requests per client IP; zero disables it
	RateLimitPerMinute int
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	metrics    handlers.DiffRecorder
	opts       Options
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	metrics handlers.DiffRecorder,
	opts Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		metrics:    metrics,
		opts:       opts,
		errors:     pkgerrors.NewErrorHandler(logger, opts.Debug),
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errorHandler := rt.errors

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	router.Use(versionMiddleware)

	if rt.opts.EnableCORS {
		origins := rt.opts.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorHandler.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errorHandler.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	// API v1 routes (legacy - redirects to v2)
	router.Route("/api/v1", func(r chi.Router) {
		r.HandleFunc("/*", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, strings.Replace(req.URL.Path, "/api/v1", "/api/v2", 1), http.StatusPermanentRedirect)
		})
	})

	engine := handlers.NewEngineHandler(rt.metrics, errorHandler, rt.logger)
	snapshots := handlers.NewSnapshotHandler(rt.commandBus, rt.queryBus, errorHandler, rt.logger)
	branches := handlers.NewBranchHandler(rt.commandBus, rt.queryBus, errorHandler, rt.logger)

	router.Route("/api/v2", func(r chi.Router) {
		if rt.opts.RateLimitPerMinute > 0 {
			limiter := ratelimit.NewSlidingWindowLimiter(rt.opts.RateLimitPerMinute, time.Minute)
			r.Use(middleware.RateLimit(limiter, errorHandler))
		}

		// Stateless engine
		r.Post("/diff", engine.Diff)
		r.Post("/merge", engine.Merge)
		r.Post("/merge-snapshots", engine.MergeSnapshots)

		r.Route("/graphs/{graphID}/branches", func(r chi.Router) {
			r.Post("/", branches.CreateBranch)
			r.Get("/", branches.ListBranches)
			r.Post("/{branchID}/snapshots", snapshots.SaveSnapshot)
		})

		r.Route("/branches/{branchID}", func(r chi.Router) {
			r.Get("/timeline", branches.Timeline)
			r.Post("/merge", branches.MergeBranch)
			r.Post("/prune", snapshots.PruneSnapshots)
		})

		r.Route("/snapshots", func(r chi.Router) {
			r.Post("/merge", snapshots.MergeSnapshots)
			r.Get("/{snapshotID}", snapshots.GetSnapshot)
			r.Get("/{snapshotID}/diff/{otherID}", snapshots.DiffSnapshots)
			r.Post("/{snapshotID}/restore", snapshots.RestoreSnapshot)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	rt.status(w, r, "healthy")
}

// readinessCheck reports ready once both buses are wired
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	if rt.commandBus == nil || rt.queryBus == nil {
		rt.errors.HandleStatus(w, r, http.StatusServiceUnavailable, "buses not initialized")
		return
	}
	rt.status(w, r, "ready")
}

func (rt *Router) status(w http.ResponseWriter, r *http.Request, status string) {
	err := common.RespondJSON(w, r, http.StatusOK, map[string]string{
		"status": status,
		"time":   utils.NowRFC3339(),
	})
	if err != nil {
		rt.logger.Error("Failed to encode status", zap.Error(err))
	}
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version := "v2"
		if strings.HasPrefix(r.URL.Path, "/api/v1") {
			version = "v1"
		}

		w.Header().Set("X-API-Version", version)
		w.Header().Set("X-API-Latest", "v2")
		w.Header().Set("X-API-Deprecated", "false")
		if version == "v1" {
			w.Header().Set("X-API-Deprecated", "true")
		}

		next.ServeHTTP(w, r)
	})
}
