package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/pricingextractor/internal/config"
	"github.com/Lllllllleong/pricingextractor/internal/handlers"
	"github.com/Lllllllleong/pricingextractor/internal/services"
)

var (
	analyseHandler *handlers.AnalyseHandler
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleAnalyse", handleAnalyse)
}

// main is required by the Go Functions Framework.
func main() {}

func handleAnalyse(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var cfg *config.Config
		cfg, initErr = config.Load()
		if initErr == nil {
			initErr = cfg.Validate()
		}
		if initErr != nil {
			return
		}
		var analyser *services.Analyser
		analyser, initErr = services.NewAnalyserFromConfig(context.Background(), cfg)
		if initErr == nil {
			analyseHandler = handlers.NewAnalyseHandler(analyser, cfg.Server)
		}
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/" {
		handlers.Liveness(w, r)
		return
	}
	analyseHandler.ServeHTTP(w, r)
}
