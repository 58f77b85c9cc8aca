// Package server wires the mintforge services together and exposes them over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/mintforge/internal/chains"
	"github.com/pendergraft/mintforge/internal/chains/evm"
	collectionsDomain "github.com/pendergraft/mintforge/internal/collections/domain"
	collectionsTransport "github.com/pendergraft/mintforge/internal/collections/transport"
	"github.com/pendergraft/mintforge/internal/config"
	"github.com/pendergraft/mintforge/internal/imagegen"
	imagesDomain "github.com/pendergraft/mintforge/internal/images/domain"
	imagesTransport "github.com/pendergraft/mintforge/internal/images/transport"
	"github.com/pendergraft/mintforge/internal/middleware/security"
	mintsDomain "github.com/pendergraft/mintforge/internal/mints/domain"
	mintsTransport "github.com/pendergraft/mintforge/internal/mints/transport"
	"github.com/pendergraft/mintforge/internal/observability/metrics"
	"github.com/pendergraft/mintforge/internal/pinning"
	"github.com/pendergraft/mintforge/internal/storage"
	verificationDomain "github.com/pendergraft/mintforge/internal/verification/domain"
	verificationTransport "github.com/pendergraft/mintforge/internal/verification/transport"
)

// Server is the HTTP server
type Server struct {
	cfg     *config.Config
	store   storage.Store
	logger  *slog.Logger
	router  *chi.Mux
	gateway *evm.Gateway

	// Services wrapped in their logging middleware
	collections  collectionsDomain.Service
	mints        mintsDomain.Service
	images       imagesDomain.Service
	verification verificationDomain.Service
}

// New connects to the chain node and builds the services on top of store.
// The store must already be migrated.
func New(ctx context.Context, cfg *config.Config, store storage.Store, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}

	artifact := loadArtifact(cfg.Collection, logger)

	gateway, err := NewGateway(ctx, cfg, artifact, logger)
	if err != nil {
		return nil, err
	}
	s.gateway = gateway

	pinner := pinning.New(pinning.Config{
		APIURL:     cfg.Pinning.APIURL,
		GatewayURL: cfg.Pinning.GatewayURL,
		APIKey:     cfg.Pinning.APIKey,
		SecretKey:  cfg.Pinning.SecretKey,
		JWT:        cfg.Pinning.JWT,
		CIDVersion: cfg.Pinning.CIDVersion,
		Timeout:    seconds(cfg.Pinning.Timeout),
	})
	generator := imagegen.New(imagegen.Config{
		APIKey:  cfg.ImageGen.APIKey,
		BaseURL: cfg.ImageGen.BaseURL,
		Model:   cfg.ImageGen.Model,
		Size:    cfg.ImageGen.Size,
		Quality: cfg.ImageGen.Quality,
		Timeout: seconds(cfg.ImageGen.Timeout),
	})

	collectionsImpl := collectionsDomain.NewService(store, gateway, collectionsDomain.Config{
		Address: cfg.Collection.Address,
		Name:    cfg.Collection.Name,
		Symbol:  cfg.Collection.Symbol,
		Owner:   cfg.Collection.Owner,
	}, logger)
	s.collections = collectionsDomain.LoggingMiddleware(logger)(collectionsImpl)

	mintsImpl := mintsDomain.NewService(store, s.collections, pinner, gateway, mintsDomain.Config{
		MintGasLimit:        cfg.Chain.MintGasLimit,
		WriteGlobalMetadata: cfg.Collection.WriteGlobalMetadata,
	}, logger)
	s.mints = mintsDomain.LoggingMiddleware(logger)(mintsImpl)

	s.images = imagesDomain.LoggingMiddleware(logger)(imagesDomain.NewService(generator, pinner))

	var deployed string
	if artifact != nil {
		deployed = artifact.DeployedBytecode
	}
	verifyImpl := verificationDomain.NewService(s.mints, s.collections, pinner, gateway, deployed, logger)
	s.verification = verificationDomain.LoggingMiddleware(logger)(verifyImpl)

	for _, missing := range cfg.MissingSecrets() {
		logger.Warn("credential not configured; dependent routes will fail", "setting", missing)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// NewGateway creates the chain gateway from the chain and collection settings.
func NewGateway(ctx context.Context, cfg *config.Config, artifact *chains.Artifact, logger *slog.Logger) (*evm.Gateway, error) {
	if cfg.Chain.PrivateKey == "" {
		return nil, fmt.Errorf("creating chain gateway: ADMIN_PRIVATE_KEY is required")
	}
	gateway, err := evm.New(ctx, evm.Config{
		RPCURL:            cfg.Chain.RPCURL,
		PrivateKey:        cfg.Chain.PrivateKey,
		ChainID:           cfg.Chain.ChainID,
		GasEstimateFactor: cfg.Chain.GasEstimateFactor,
		RPCTimeout:        seconds(cfg.Chain.RPCTimeout),
		ReceiptTimeout:    seconds(cfg.Chain.ReceiptTimeout),
		ReceiptPoll:       time.Duration(cfg.Chain.ReceiptPollMS) * time.Millisecond,
		ReceiptPollMax:    time.Duration(cfg.Chain.ReceiptPollMaxMS) * time.Millisecond,
		TokenType:         cfg.Collection.TokenType,
		TokenIDFormat:     cfg.Collection.TokenIDFormat,
	}, artifact, logger.With("component", "chain"))
	if err != nil {
		return nil, fmt.Errorf("creating chain gateway: %w", err)
	}
	return gateway, nil
}

// loadArtifact reads the collection artifact. Without one the server can
// still attach to a configured address, but cannot deploy or verify bytecode.
func loadArtifact(cfg config.CollectionConfig, logger *slog.Logger) *chains.Artifact {
	if cfg.ArtifactPath == "" {
		return nil
	}
	artifact, err := evm.LoadArtifact(cfg.ArtifactPath)
	if err != nil {
		logger.Warn("collection artifact not loaded", "path", cfg.ArtifactPath, "error", err)
		return nil
	}
	logger.Info("collection artifact loaded", "name", artifact.Name, "format", artifact.Format)
	return artifact
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Collections returns the collection service.
func (s *Server) Collections() collectionsDomain.Service {
	return s.collections
}

// Mints returns the mint service.
func (s *Server) Mints() mintsDomain.Service {
	return s.mints
}

// Gateway returns the chain gateway.
func (s *Server) Gateway() *evm.Gateway {
	return s.gateway
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	if s.cfg.Metrics.Enabled {
		s.router.Handle("/metrics", metrics.Handler())
	}

	collectionsHandler := collectionsTransport.NewHandler(s.collections)
	mintsHandler := mintsTransport.NewHandler(s.mints)
	imagesHandler := imagesTransport.NewHandler(s.images)
	verificationHandler := verificationTransport.NewHandler(s.verification)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(security.RequireJSON)

		r.Route("/mint", mintsHandler.RegisterMintRoute)

		r.Route("/mints", func(r chi.Router) {
			mintsHandler.RegisterRoutes(r)
			verificationHandler.RegisterMintRoutes(r)
		})

		r.Route("/collections", func(r chi.Router) {
			collectionsHandler.RegisterRoutes(r)
			verificationHandler.RegisterCollectionRoutes(r)
		})

		imagesHandler.RegisterRoutes(r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
