// Package server assembles the grimlog process: storage, domain engine,
// AI pipeline, and the HTTP API.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	airest "github.com/AndrewDeWitt/grimlog/internal/ai/api/rest"
	"github.com/AndrewDeWitt/grimlog/internal/ai/armylist"
	"github.com/AndrewDeWitt/grimlog/internal/ai/competitive"
	"github.com/AndrewDeWitt/grimlog/internal/ai/gatekeeper"
	"github.com/AndrewDeWitt/grimlog/internal/ai/provider"
	"github.com/AndrewDeWitt/grimlog/internal/ai/toolcall"
	"github.com/AndrewDeWitt/grimlog/internal/catalog"
	catalogrest "github.com/AndrewDeWitt/grimlog/internal/catalog/api/rest"
	catalogservice "github.com/AndrewDeWitt/grimlog/internal/catalog/service"
	catalogstorage "github.com/AndrewDeWitt/grimlog/internal/catalog/storage"
	catalogsqlite "github.com/AndrewDeWitt/grimlog/internal/catalog/storage/sqlite"
	"github.com/AndrewDeWitt/grimlog/internal/errors"
	gamerest "github.com/AndrewDeWitt/grimlog/internal/game/api/rest"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/engine"
	gameservice "github.com/AndrewDeWitt/grimlog/internal/game/service"
	gamesqlite "github.com/AndrewDeWitt/grimlog/internal/game/storage/sqlite"
	"github.com/AndrewDeWitt/grimlog/internal/platform/auth"
	"github.com/AndrewDeWitt/grimlog/internal/platform/config"
	"github.com/AndrewDeWitt/grimlog/internal/platform/otel"
)

// shutdownTimeout limits how long the HTTP server waits for in-flight
// requests during shutdown.
const shutdownTimeout = 5 * time.Second

// Config defines the inputs for the grimlog process.
type Config struct {
	HTTPAddr      string `env:"GRIMLOG_HTTP_ADDR"`
	CatalogDBPath string `env:"GRIMLOG_CATALOG_DB_PATH"`
	GameDBPath    string `env:"GRIMLOG_GAME_DB_PATH"`

	// AIProvider selects the LLM backend: "openai", "gemini", or empty to
	// run without AI endpoints.
	AIProvider   string `env:"GRIMLOG_AI_PROVIDER"`
	OpenAIAPIKey string `env:"GRIMLOG_OPENAI_API_KEY"`
	OpenAIModel  string `env:"GRIMLOG_OPENAI_MODEL"`
	OpenAIURL    string `env:"GRIMLOG_OPENAI_URL"`
	GeminiAPIKey string `env:"GRIMLOG_GEMINI_API_KEY"`
	GeminiModel  string `env:"GRIMLOG_GEMINI_MODEL"`

	AdminJWTSecret string `env:"GRIMLOG_ADMIN_JWT_SECRET"`
	AdminJWTIssuer string `env:"GRIMLOG_ADMIN_JWT_ISSUER"`

	// WorkerInterval is how often the competitive worker drains pending
	// sources. Zero uses the worker default; negative disables the worker.
	WorkerInterval time.Duration `env:"GRIMLOG_WORKER_INTERVAL"`
}

// LoadConfig reads configuration from the environment with defaults filled
// in.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.CatalogDBPath == "" {
		cfg.CatalogDBPath = filepath.Join("data", "catalog.db")
	}
	if cfg.GameDBPath == "" {
		cfg.GameDBPath = filepath.Join("data", "game.db")
	}
	if cfg.AdminJWTIssuer == "" {
		cfg.AdminJWTIssuer = "grimlog"
	}
	return cfg, nil
}

// Server hosts the grimlog HTTP API and the competitive background worker.
type Server struct {
	httpAddr     string
	httpServer   *http.Server
	catalogStore *catalogsqlite.Store
	gameStore    *gamesqlite.Store
	worker       *competitive.Worker
}

// New builds the full server from config. AI endpoints are registered only
// when a provider is configured.
func New(ctx context.Context, cfg Config) (*Server, error) {
	catalogStore, err := openCatalogStore(cfg.CatalogDBPath)
	if err != nil {
		return nil, err
	}
	gameStore, err := openGameStore(cfg.GameDBPath)
	if err != nil {
		catalogStore.Close()
		return nil, err
	}

	closeStores := func() {
		gameStore.Close()
		catalogStore.Close()
	}

	commands, err := engine.NewCommandRegistry()
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("command registry: %w", err)
	}
	events, err := engine.NewEventRegistry()
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("event registry: %w", err)
	}
	handler := engine.Handler{
		Commands: commands,
		Events:   events,
		Journal:  gameStore,
		Now:      func() time.Time { return time.Now().UTC() },
	}

	catalogService := catalogservice.New(catalogStore)
	hub := gamerest.NewHub()
	gameService := gameservice.New(handler, gameStore, catalogService, hub)

	mux := http.NewServeMux()
	gamerest.NewHandler(gameService, hub).RegisterRoutes(mux)

	authCfg := auth.Config{Issuer: cfg.AdminJWTIssuer, Secret: []byte(cfg.AdminJWTSecret)}
	authorize := func(next http.Handler) http.Handler {
		if len(authCfg.Secret) == 0 {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				errors.WriteHTTP(w, errors.New(errors.CodeAuthTokenInvalid, "admin auth is not configured"))
			})
		}
		return auth.Middleware(authCfg, next)
	}
	catalogrest.NewHandler(catalogService, catalogStore).RegisterRoutes(mux, authorize)

	server := &Server{
		httpAddr:     cfg.HTTPAddr,
		catalogStore: catalogStore,
		gameStore:    gameStore,
	}

	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		server.Close()
		return nil, err
	}
	if completer != nil {
		interpreter := toolcall.New(completer, handler, gatekeeper.New(completer))
		interpreter.ResolveStratagem = stratagemResolver(catalogService)
		parser := armylist.New(completer, catalogService)
		pipeline := competitive.NewPipeline(catalogStore, competitive.NewHTTPFetcher(nil), competitive.NewExtractor(completer))
		airest.NewHandler(interpreter, parser, pipeline, catalogStore).RegisterRoutes(mux, authorize)
		if cfg.WorkerInterval >= 0 {
			server.worker = competitive.NewWorker(pipeline, catalogStore, cfg.WorkerInterval, 0)
		}
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	server.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otel.Middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server, nil
}

// Handler exposes the assembled route table.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe runs the HTTP server and the competitive worker until the
// context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.worker != nil {
		go s.worker.Run(ctx)
	}

	serveErr := make(chan error, 1)
	log.Printf("grimlog listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases storage held by the server.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.gameStore != nil {
		if err := s.gameStore.Close(); err != nil {
			log.Printf("close game store: %v", err)
		}
	}
	if s.catalogStore != nil {
		if err := s.catalogStore.Close(); err != nil {
			log.Printf("close catalog store: %v", err)
		}
	}
}

func newCompleter(ctx context.Context, cfg Config) (provider.Completer, error) {
	switch cfg.AIProvider {
	case "":
		return nil, nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("GRIMLOG_OPENAI_API_KEY is required for the openai provider")
		}
		return provider.NewOpenAI(provider.OpenAIConfig{
			CompletionsURL: cfg.OpenAIURL,
			APIKey:         cfg.OpenAIAPIKey,
			Model:          cfg.OpenAIModel,
		}), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GRIMLOG_GEMINI_API_KEY is required for the gemini provider")
		}
		return provider.NewGemini(ctx, provider.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AIProvider)
	}
}

// stratagemResolver matches a spoken stratagem name against the catalog. The
// base CP cost is used; detachment discounts need the session context the
// interpreter does not carry.
func stratagemResolver(svc *catalogservice.Service) toolcall.StratagemResolver {
	return func(ctx context.Context, name string) (string, int, error) {
		want := catalog.NormalizeName(name)
		if want == "" {
			return "", 0, errors.New(errors.CodeNotFound, "stratagem name is empty")
		}
		offset := 0
		for {
			stratagems, err := svc.ListStratagems(ctx, catalogstorage.ListFilter{Limit: 200, Offset: offset})
			if err != nil {
				return "", 0, err
			}
			for _, stratagem := range stratagems {
				if catalog.NormalizeName(stratagem.Name) == want {
					return stratagem.ID, stratagem.CPCost, nil
				}
			}
			if len(stratagems) < 200 {
				return "", 0, errors.New(errors.CodeNotFound, fmt.Sprintf("stratagem %q not found", name))
			}
			offset += 200
		}
	}
}

func openCatalogStore(path string) (*catalogsqlite.Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	store, err := catalogsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}
	return store, nil
}

func openGameStore(path string) (*gamesqlite.Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	store, err := gamesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open game store: %w", err)
	}
	return store, nil
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	return nil
}
