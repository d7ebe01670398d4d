package main

import (
	"context"
	"flag"
	"log"

	"github.com/gin-gonic/gin"

	"attendance-server-go/config"
	"attendance-server-go/db"
	"attendance-server-go/handlers"
	"attendance-server-go/tracker"
)

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	slot, closeSlot := openSlot(ctx, cfg)
	defer closeSlot()

	store := db.NewStore(slot, cfg.StorageKey, cfg.Rules)
	service := tracker.NewService(store, cfg.Rules, cfg.Brand)

	// --- 检查并添加初始测试数据 ---
	checkAndSeedData(ctx, store, service, cfg.SeedDemo)

	if err := service.Load(ctx); err != nil {
		log.Fatalf("Failed to load saved state: %v", err)
	}

	// Create API Handler (injecting the service)
	apiHandler := handlers.NewAPIHandler(service)

	gin.SetMode(cfg.GinMode)
	router := gin.Default()
	apiHandler.RegisterRoutes(router)

	log.Printf("Starting server on %s", cfg.Addr)
	if err := router.Run(cfg.Addr); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

func openSlot(ctx context.Context, cfg *config.Config) (db.Slot, func()) {
	if cfg.Storage == config.StorageFile {
		log.Printf("Using file storage in %s", cfg.DataDir)
		return db.NewFileSlot(cfg.DataDir), func() {}
	}
	client, err := db.InitializeRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Could not connect to Redis: %v", err)
	}
	return db.NewRedisSlot(client), func() {
		if err := client.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}
}

// checkAndSeedData 检查是否已有保存的数据，如果没有且启用了演示数据则添加
func checkAndSeedData(ctx context.Context, store *db.Store, service *tracker.Service, seed bool) {
	seeded, err := store.Seeded(ctx)
	if err != nil {
		log.Printf("Warning: could not check saved state (key %s): %v. Skipping demo data.", store.Key, err)
		return
	}
	if seeded {
		log.Printf("Found saved state under key %s. Skipping demo data.", store.Key)
		return
	}
	if !seed {
		log.Printf("No saved state under key %s. Starting empty.", store.Key)
		return
	}

	log.Println("Adding demo students...")
	if _, err := service.AddStudents(ctx, "Ana, Boris, Viktor"); err != nil {
		log.Printf("Error adding demo students: %v", err)
		return
	}
	log.Println("Demo students added.")
}
