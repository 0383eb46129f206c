package main

import (
	"log"

	"github.com/levelup-app/levelup-backend/internal/config"
	"github.com/levelup-app/levelup-backend/internal/database"
	"github.com/levelup-app/levelup-backend/internal/models"
	"github.com/levelup-app/levelup-backend/internal/seeds"
)

func main() {
	config.LoadConfig()
	database.Connect()

	log.Println("🌱 Running seeder...")

	if err := database.DB.AutoMigrate(
		&models.User{},
		&models.QuestTemplate{},
		&models.QuestAssignment{},
		&models.ProgressionEvent{},
		&models.UserProgressionState{},
	); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	seeds.SeedQuestTemplates()

	// Demo admin for local development
	admin := models.User{
		ID:       "admin-local",
		Username: "admin",
		Role:     models.RoleAdmin,
		Timezone: "UTC",
	}
	database.DB.Where("id = ?", admin.ID).FirstOrCreate(&admin)

	log.Println("✅ Seeding complete")
}
