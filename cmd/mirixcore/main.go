// mirixcore is the long-term memory accumulation core's HTTP server: it
// appends incoming messages and conversation turns to per-user queues,
// absorbs ready batches into the external agent layer on a timer, and
// serves the append/recent-images/health endpoints.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mirixhq/mirixcore/pkg/agentrpc"
	"github.com/mirixhq/mirixcore/pkg/api"
	"github.com/mirixhq/mirixcore/pkg/audit"
	"github.com/mirixhq/mirixcore/pkg/config"
	"github.com/mirixhq/mirixcore/pkg/coordinator"
	"github.com/mirixhq/mirixcore/pkg/database"
	"github.com/mirixhq/mirixcore/pkg/dispatch"
	"github.com/mirixhq/mirixcore/pkg/tma"
	"github.com/mirixhq/mirixcore/pkg/upload"
	"github.com/mirixhq/mirixcore/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	ginMode := getEnv("GIN_MODE", "debug")
	gin.SetMode(ginMode)

	log.Printf("Starting %s", version.Full())
	log.Printf("HTTP Port: %s", httpPort)
	log.Printf("Config Directory: %s", *configDir)

	ctx := context.Background()

	coordCfg, err := config.LoadCoordinatorConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load coordinator config: %v", err)
	}
	coord := coordinator.NewRedisClient(redis.NewClient(&redis.Options{
		Addr:        coordCfg.Addr,
		Password:    coordCfg.Password,
		DB:          coordCfg.DB,
		DialTimeout: coordCfg.DialTimeout,
	}))
	defer coord.Close()
	log.Println("✓ Connected to coordinator")

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("✓ Connected to PostgreSQL database")

	uploadCfg, err := config.LoadUploadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load upload config: %v", err)
	}
	stagingDir := getEnv("UPLOAD_STAGING_DIR", "./data/uploads")
	diskUploader, err := upload.NewLocalDiskUploader(stagingDir)
	if err != nil {
		log.Fatalf("Failed to initialize upload staging directory: %v", err)
	}
	podID := getEnv("POD_ID", "mirixcore-0")
	uploader := upload.NewManager(coord, diskUploader, uploadCfg, podID)
	uploader.Start()
	defer uploader.Stop()
	log.Println("✓ Upload manager started")

	agentAddr := getEnv("AGENT_LAYER_ADDR", "localhost:50051")
	agentClient, err := agentrpc.New(agentAddr)
	if err != nil {
		log.Fatalf("Failed to connect to agent layer: %v", err)
	}
	defer func() {
		if err := agentClient.Close(); err != nil {
			log.Printf("Error closing agent layer connection: %v", err)
		}
	}()

	dispatchCfg, err := config.LoadDispatchConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load dispatch config: %v", err)
	}
	dispatcher := dispatch.NewDispatcher(agentClient, dispatchCfg)

	auditCfg, err := config.LoadAuditConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load audit config: %v", err)
	}
	auditSvc := audit.NewService(dbClient.Client, auditCfg)
	auditSvc.Start(ctx)
	defer auditSvc.Stop()
	log.Println("✓ Audit retention service started")

	tmaCfg, err := config.LoadTMAConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load accumulator config: %v", err)
	}
	acc := tma.NewAccumulator(coord, uploader, dispatcher, auditSvc, tmaCfg)
	acc.Capacity = auditSvc
	defer acc.Close()
	log.Println("✓ Accumulator initialized")

	pool := tma.NewAbsorptionPool(podID, acc, tmaCfg.AbsorptionPoolWorkerCount, tmaCfg.AbsorptionPollInterval, tmaCfg.AbsorptionPollJitter)
	pool.Start(ctx)
	defer pool.Stop()
	log.Println("✓ Absorption pool started")

	handler := api.NewHandler(acc, pool)
	health := api.NewHealthChecker(coord, dbClient)
	router := api.NewRouter(handler, health)

	log.Printf("HTTP server listening on :%s", httpPort)
	log.Printf("Health check available at: http://localhost:%s/healthz", httpPort)
	if err := router.Run(":" + httpPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
