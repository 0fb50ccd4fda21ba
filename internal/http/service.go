package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"

	apicontract "github.com/tuanvumaihuynh/storefront/api-contract"
	"github.com/tuanvumaihuynh/storefront/internal/apperr"
	"github.com/tuanvumaihuynh/storefront/internal/config"
	"github.com/tuanvumaihuynh/storefront/internal/http/apierr"
	"github.com/tuanvumaihuynh/storefront/internal/http/metric"
	"github.com/tuanvumaihuynh/storefront/internal/http/middleware"
	"github.com/tuanvumaihuynh/storefront/internal/http/swagger"
	"github.com/tuanvumaihuynh/storefront/internal/service"
	"github.com/tuanvumaihuynh/storefront/internal/storage/db"
	"github.com/tuanvumaihuynh/storefront/pkg/validator"
)

var tracer = otel.Tracer("internal/http")

// Service represents the HTTP service.
type Service struct {
	cfg       config.HTTP
	logger    *slog.Logger
	metrics   *metric.Metrics
	validator validator.Validator

	productSvc service.ProductService
	authSvc    service.AuthService
	verifier   middleware.TokenVerifier
	health     db.HealthChecker

	extraRoutes []func(chi.Router)
}

type CleanupFunc func(ctx context.Context) error

// New builds the HTTP service. extraRoutes are registered on the root router
// after the API, which is how the web UI is mounted.
func New(
	cfg config.HTTP,
	log *slog.Logger,
	productSvc service.ProductService,
	authSvc service.AuthService,
	verifier middleware.TokenVerifier,
	health db.HealthChecker,
	extraRoutes ...func(chi.Router),
) (*Service, error) {
	v, err := validator.NewDefaultValidator()
	if err != nil {
		return nil, fmt.Errorf("new default validator: %w", err)
	}

	return &Service{
		cfg:         cfg,
		logger:      log.With(slog.String("service", "http")),
		metrics:     metric.New(),
		validator:   v,
		productSvc:  productSvc,
		authSvc:     authSvc,
		verifier:    verifier,
		health:      health,
		extraRoutes: extraRoutes,
	}, nil
}

func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	if s.cfg.Swagger {
		if _, err := apicontract.Load(ctx); err != nil {
			return nil, fmt.Errorf("api contract: %w", err)
		}
	}

	return s.RunWithServer(ctx, s.Handler())
}

// Handler returns the fully wired router.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	s.RegisterMiddlewares(r)

	if s.cfg.Swagger {
		swagger.Register(r)
	}

	s.RegisterHandlers(r)

	for _, register := range s.extraRoutes {
		register(r)
	}

	return r
}

func (s *Service) RunWithServer(ctx context.Context, handler http.Handler) (CleanupFunc, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", s.cfg.Port, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64 KB
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorContext(ctx, "http server stopped", slog.Any("error", err))
		}
	}()

	s.logger.InfoContext(ctx, "http server listening", slog.String("addr", ln.Addr().String()))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}, nil
}

func (s *Service) RegisterMiddlewares(r chi.Router) {
	r.Use(
		middleware.Recoverer(s.logger),
		middleware.Trace(tracer),
		middleware.Metrics(s.metrics),
		middleware.CorrelationID(),
		middleware.Cors(),
		middleware.Logging(s.logger),
	)
}

func (s *Service) RegisterHandlers(r chi.Router) {
	products := newProductHandler(s.productSvc, s.metrics)
	authH := newAuthHandler(s.authSvc)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth", s.handleAuth(authH.Authenticate))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.handle(products.ListProducts))
			r.Get("/top", s.handle(products.ListTopRatedProducts))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(s.verifier, s.handleResponseError))

				r.Post("/upload", s.handle(products.CreateProduct))
				r.Put("/update", s.handle(products.UpdateProduct))
				r.Post("/update", s.handle(products.UpdateProduct))
			})

			r.Get("/{id}", s.handle(products.GetProduct))
		})
	})

	r.Get("/healthz", s.handle(newHealthHandler(s.health).Check))
	r.Handle(middleware.MetricsPath, s.metrics.Handler())
}

// handlerFunc is an HTTP handler that reports failures instead of writing
// them, so every error goes through the same response mapping.
type handlerFunc func(w http.ResponseWriter, r *http.Request, dec decoder) error

// decoder reads and validates a JSON request body into dst.
type decoder func(dst any) error

// prechecker is implemented by requests with checks that must run before
// field validation.
type prechecker interface {
	precheck() error
}

func (s *Service) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r, s.decoder(w, r)); err != nil {
			s.handleResponseError(w, r, err)
		}
	}
}

func (s *Service) handleAuth(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r, s.decoder(w, r)); err != nil {
			res := apierr.NewAuth(err)
			s.logError(r, res.StatusCode, err)
			writeJSON(w, res.StatusCode, res)
		}
	}
}

func (s *Service) decoder(w http.ResponseWriter, r *http.Request) decoder {
	return func(dst any) error {
		body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

		dec := json.NewDecoder(body)
		if err := dec.Decode(dst); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return apperr.ValidationErr.WithMsg("Request body is too large").WrapParent(err)
			}
			return apperr.ValidationErr.WithMsg("Invalid request body").WrapParent(err)
		}

		if p, ok := dst.(prechecker); ok {
			if err := p.precheck(); err != nil {
				return err
			}
		}

		if err := s.validator.Validate(dst); err != nil {
			return apperr.ValidationErr.WrapParent(err)
		}

		return nil
	}
}

func (s *Service) handleResponseError(w http.ResponseWriter, r *http.Request, err error) {
	res := apierr.New(err)
	s.logError(r, res.StatusCode, err)
	writeJSON(w, res.StatusCode, res)
}

func (s *Service) logError(r *http.Request, statusCode int, err error) {
	logLevel := slog.LevelInfo
	if statusCode >= 500 {
		logLevel = slog.LevelError
	} else if statusCode >= 400 {
		logLevel = slog.LevelWarn
	}
	s.logger.Log(r.Context(), logLevel, "http response error", slog.Any("error", err))
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	//nolint:errcheck
	json.NewEncoder(w).Encode(body)
}
