package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"SaniTrack/FiberConfig"
	"SaniTrack/Models"
	"SaniTrack/logger"
	"SaniTrack/storage"
	"SaniTrack/tokenstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment defaults")
	}

	logger.Init()
	defer logger.Sync()

	if err := Models.Connect(); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	redisClient, err := tokenstore.ConnectRedis(context.Background())
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	store := storage.NewStore(os.Getenv("DATA_DIR"))
	emailCfg := Models.LoadEmailConfig()

	if err := FiberConfig.Serve(Models.DB, tokenstore.New(redisClient), store, emailCfg); err != nil {
		log.Fatal("Server stopped:", err)
	}
}
