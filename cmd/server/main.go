package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/quantaleap/ascent/internal/api"
	"github.com/quantaleap/ascent/internal/middleware"
	"github.com/quantaleap/ascent/internal/platform/logger"
	"github.com/quantaleap/ascent/internal/services"
	"github.com/quantaleap/ascent/internal/store"
	"github.com/quantaleap/ascent/internal/utils"
)

func main() {
	_ = godotenv.Load()

	zlog, err := logger.New(utils.SafeEnv("ASCENT_LOG_MODE", "dev"))
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	addr := utils.SafeEnv("ASCENT_ADDR", ":8080")
	commit := os.Getenv("ASCENT_COMMIT")
	buildTime := os.Getenv("ASCENT_BUILD_TIME")

	var remote services.RemoteStore
	if redisAddr := os.Getenv("ASCENT_REDIS_ADDR"); redisAddr != "" {
		table := store.NewRemoteTable(store.RemoteTableConfig{
			Addr:     redisAddr,
			Password: os.Getenv("ASCENT_REDIS_PASSWORD"),
			DB:       utils.EnvInt("ASCENT_REDIS_DB", 0),
			Log:      zlog,
		})
		defer func() { _ = table.Close() }()
		remote = table
	} else {
		zlog.Warn("ASCENT_REDIS_ADDR not set; running on the local cache only")
	}

	var cache services.LocalCache
	cachePath := utils.SafeEnv("ASCENT_CACHE_PATH", "data/ascent.db")
	sqliteCache, err := store.OpenSQLiteCache(cachePath)
	if err != nil {
		zlog.Warnw("local cache unavailable", "path", cachePath, "error", err)
	} else {
		defer func() { _ = sqliteCache.Close() }()
		cache = sqliteCache
		if err := ImportLegacyIfNeeded(os.Getenv("ASCENT_LEGACY_IMPORT"), sqliteCache, zlog); err != nil {
			zlog.Warnw("legacy import failed", "error", err)
		}
	}

	repo := services.NewRepository(services.RepositoryConfig{
		Remote:        remote,
		Cache:         cache,
		RetentionDays: utils.EnvInt("ASCENT_RETENTION_DAYS", services.DefaultRetentionDays),
		Log:           zlog,
	})
	auth := services.NewAuthService(os.Getenv("ASCENT_ADMIN_HASH"), middleware.SignToken)

	mux := http.NewServeMux()
	api.NewRouter(repo, auth, zlog).Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         true,
			"name":       "Ascent API",
			"commit":     commit,
			"build_time": buildTime,
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commit":     commit,
			"build_time": buildTime,
		})
	})

	// Dashboards are static files served alongside the API in the fullstack
	// image.
	if staticDir := os.Getenv("ASCENT_STATIC_DIR"); staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}

	handler := middleware.RequestID(
		middleware.NoStore(
			middleware.SecureHeaders(
				middleware.CORS(
					middleware.WithAuth(mux)))))

	zlog.Infow("Ascent server listening", "addr", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		zlog.Fatalw("server error", "error", err)
	}
}
