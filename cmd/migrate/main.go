package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"rag-chatbot-ui/internal/model"
	"rag-chatbot-ui/internal/repository/implementation"
	"rag-chatbot-ui/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	purge := flag.Bool("purge-expired", false, "delete expired sessions after migrating")
	flag.Parse()

	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect and AutoMigrate the session table (expires_at is indexed by the model)
	log.Println("Running AutoMigrate for ui_sessions...")
	db, err := database.NewGormDBFromDSN(dsn, true, &model.UISession{})
	if err != nil {
		log.Fatal("Error: Migration failed:", err)
	}

	if *purge {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := implementation.NewSessionRepository(db, 0).DeleteExpired(ctx)
		if err != nil {
			log.Fatal("Error: Purge failed:", err)
		}
		log.Printf("Purged %d expired sessions", n)
	}

	log.Println("✅ Migration complete")
}
