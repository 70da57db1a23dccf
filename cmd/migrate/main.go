package main

import (
	"log"
	"os"

	"finsight-be/internal/model"
	"finsight-be/pkg/database"

	"github.com/joho/godotenv"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, database.WithLogLevel(gormlogger.Info))
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Setting up extensions...")
	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
	}
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	models := model.All()
	log.Printf("Step 2: Running AutoMigrate for %d tables...", len(models))
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("Step 3: Creating views...")
	postMigrationSQL := []string{
		// newest first within each user, matching the sidebar order
		`CREATE OR REPLACE VIEW user_chat_overview AS
		 SELECT c.user_id, c.id AS chat_id, c.title, c.created_at, COUNT(m.id) AS message_count, MAX(m.created_at) AS last_message_at
		 FROM chats c LEFT JOIN messages m ON m.chat_id = c.id
		 GROUP BY c.user_id, c.id, c.title, c.created_at
		 ORDER BY c.user_id, c.created_at DESC;`,
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("Success: Database migration completed.")
}
