package infrastructures

import (
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewDatabase(cfg *AppConfig) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DATABASE_URL), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		logrus.Fatalf("failed to migrate database: %v", err)
	}
	return db
}
