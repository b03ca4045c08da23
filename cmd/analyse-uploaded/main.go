package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/pricingextractor/internal/config"
	"github.com/Lllllllleong/pricingextractor/internal/models"
	"github.com/Lllllllleong/pricingextractor/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	uploadedInstance *services.UploadedFunction
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("AnalyseUploadedPDF", analyseUploadedPDF)
}

// main is required by the Go Functions Framework.
func main() {}

func analyseUploadedPDF(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		var cfg *config.Config
		cfg, initErr = config.Load()
		if initErr != nil {
			return
		}
		uploadedInstance, initErr = services.NewUploadedFromConfig(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Errors are logged inside Process; returning one marks the invocation failed.
	_, err := uploadedInstance.Process(ctx, gcsEvent)
	return err
}
