package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jumboapi/backend/config"
	httpDelivery "github.com/jumboapi/backend/internal/delivery/http"
	"github.com/jumboapi/backend/internal/domain"
	"github.com/jumboapi/backend/internal/infrastructure/cache"
	"github.com/jumboapi/backend/internal/infrastructure/jumbo"
	"github.com/jumboapi/backend/internal/infrastructure/openfoodfacts"
	"github.com/jumboapi/backend/internal/infrastructure/settings"
	"github.com/jumboapi/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting Jumbo API Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Cache Type: %s", cfg.Cache.Type)

	debug := cfg.Matching.Debug || cfg.Server.Environment == "development"

	// Match cache: in-memory with file persistence, or Redis
	var matchCache domain.MatchCache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		matchCache = redisCache
	default:
		matchCache = cache.NewMemoryCache(cfg.MatchCacheFile())
	}

	// Retailer session and clients
	session := jumbo.NewSession(cfg.SessionFile())
	if session.IsAuthenticated() {
		log.Printf("Restored saved session from %s", cfg.SessionFile())
	} else {
		log.Printf("No saved session; login required before account operations")
	}

	jumboClient := jumbo.NewClient(cfg.Jumbo.BaseURL, session, nil)
	jumboClient.SetDebug(debug)

	offClient := openfoodfacts.NewClient(cfg.OpenFoodFacts.BaseURL)
	offClient.SetDebug(debug)

	// Settings store
	settingsStore := settings.NewStore(cfg.SettingsFile())
	current, _ := settingsStore.Get()
	log.Printf("Matching: enabled=%v, threshold=%d, fallback=%v",
		current.ProductMatchingEnabled, current.ConfidenceThreshold, current.UseOpenFoodFactsFallback)

	// Usecase layer
	barcodeService := usecase.NewBarcodeService(jumboClient, offClient, matchCache, settingsStore, debug)
	receiptService := usecase.NewReceiptService(jumboClient, matchCache, settingsStore, debug)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(
		jumboClient,
		jumboClient,
		barcodeService,
		receiptService,
		settingsStore,
		matchCache,
	)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
