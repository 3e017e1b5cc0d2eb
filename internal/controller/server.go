package controller

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	apihandlers "github.com/Freeeeeet/class_scheduler/internal/controller/handlers"
	"github.com/Freeeeeet/class_scheduler/internal/controller/socket"
)

// Server wires the HTTP routes.
type Server struct {
	router      *mux.Router
	handlers    *apihandlers.Handlers
	socket      *socket.Handler
	metrics     http.Handler
	corsOrigins []string
	logger      *zap.Logger
}

// NewServer creates the HTTP server routes.
func NewServer(
	h *apihandlers.Handlers,
	socketHandler *socket.Handler,
	metricsHandler http.Handler,
	corsOrigins []string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		handlers:    h,
		socket:      socketHandler,
		metrics:     metricsHandler,
		corsOrigins: corsOrigins,
		logger:      logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handlers.Health).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	s.router.Handle("/ws", s.socket).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/login", s.handlers.Login).Methods(http.MethodPost)
}

// Handler returns the router wrapped with CORS and access logging.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(s.corsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)

	accessLog := zap.NewStdLog(s.logger.Named("http")).Writer()
	return handlers.LoggingHandler(accessLog, cors(s.router))
}
