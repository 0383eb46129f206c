package seeds

import (
	"log"

	"github.com/levelup-app/levelup-backend/internal/database"
	"github.com/levelup-app/levelup-backend/internal/models"
)

// SeedQuestTemplates installs the starter catalog. Idempotent: existing
// slugs are left alone so admin-published versions are never clobbered.
func SeedQuestTemplates() {
	log.Println("🗺️ Seeding Quest Templates...")

	templates := []models.QuestTemplate{
		{
			Slug:        "morning-momentum",
			Scope:       models.ScopeDaily,
			Title:       "Morning Momentum",
			Description: "Complete 3 tasks before noon to start the day strong.",
			Metric:      "tasks",
			Target:      3,
			RewardXP:    50,
		},
		{
			Slug:        "deep-work-session",
			Scope:       models.ScopeDaily,
			Title:       "Deep Work Session",
			Description: "Log one 90-minute focused work block.",
			Metric:      "sessions",
			Target:      1,
			RewardXP:    40,
		},
		{
			Slug:        "daily-reflection",
			Scope:       models.ScopeDaily,
			Title:       "Daily Reflection",
			Description: "Write a short journal entry about today.",
			Metric:      "entries",
			Target:      1,
			RewardXP:    20,
		},
		{
			Slug:        "weekly-review",
			Scope:       models.ScopeWeekly,
			Title:       "Weekly Review",
			Description: "Review your week and plan the next one.",
			Metric:      "reviews",
			Target:      1,
			RewardXP:    100,
		},
		{
			Slug:        "consistency-keeper",
			Scope:       models.ScopeWeekly,
			Title:       "Consistency Keeper",
			Description: "Complete at least 5 daily quests this week.",
			Metric:      "completions",
			Target:      5,
			RewardXP:    150,
		},
		{
			Slug:         "founder-pitch-draft",
			Scope:        models.ScopeDaily,
			Title:        "Pitch Draft",
			Description:  "Refine one section of your pitch.",
			Metric:       "sections",
			Target:       1,
			RewardXP:     60,
			RequiredMode: "founder",
		},
	}

	for _, tpl := range templates {
		var count int64
		database.DB.Model(&models.QuestTemplate{}).Where("slug = ?", tpl.Slug).Count(&count)
		if count > 0 {
			continue
		}

		tpl.Version = 1
		tpl.AuthoredBy = "system"
		tpl.Active = true
		if err := database.DB.Create(&tpl).Error; err != nil {
			log.Printf("Failed to seed template %s: %v", tpl.Slug, err)
		}
	}

	log.Println("✅ Quest templates seeded")
}
