package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"p9e.in/tenderdesk/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20250812_create_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.User{}, &models.TenderDocument{},
					&models.PreFeasibilityEvaluation{}, &models.TechnicalEvaluation{},
					&models.FinancialEvaluation{}, &models.ApprovalRequest{},
					&models.ScoringConfig{}, &models.StageTransition{})
			},
		},
		{
			ID: "20250812_create_company_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.CompanyProfile{}, &models.CompanyFinance{},
					&models.CompanyExperience{}, &models.CompanyPersonnel{})
			},
		},
		{
			ID: "20250819_add_stage_version_index",
			Migrate: func(tx *gorm.DB) error {
				// Compound index for the optimistic stage update path
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_tender_stage_version ON tender_documents (id, version)").Error
			},
		},
	})

	return m.Migrate()
}
