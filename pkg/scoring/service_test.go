package scoring

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"p9e.in/tenderdesk/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	// a single connection keeps the in-memory database alive and shared
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.TenderDocument{},
		&models.TechnicalEvaluation{},
		&models.FinancialEvaluation{},
		&models.ScoringConfig{},
		&models.CompanyProfile{},
		&models.CompanyFinance{},
		&models.CompanyExperience{},
	); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	return db
}

func seedDocument(t *testing.T, db *gorm.DB, title string, budget, techScore, finScore float64) *models.TenderDocument {
	t.Helper()

	doc := models.TenderDocument{
		Title:           title,
		EstimatedBudget: budget,
		Status:          models.StatusAnalyzed,
		WorkflowStage:   models.StageFinalApproval,
		Version:         1,
	}
	if err := db.Create(&doc).Error; err != nil {
		t.Fatalf("failed to create document: %v", err)
	}
	if err := db.Create(&models.TechnicalEvaluation{
		DocumentID: doc.ID, Score: techScore, MaxScore: 100,
	}).Error; err != nil {
		t.Fatalf("failed to create technical evaluation: %v", err)
	}
	if err := db.Create(&models.FinancialEvaluation{
		DocumentID: doc.ID, Score: finScore, MaxScore: 100,
	}).Error; err != nil {
		t.Fatalf("failed to create financial evaluation: %v", err)
	}
	return &doc
}

func TestDocumentBreakdown(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)

	doc := seedDocument(t, db, "Highway package", 1_000_000, 80, 60)

	company := models.CompanyProfile{Name: "Acme Infra"}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("failed to create company: %v", err)
	}
	db.Create(&models.CompanyFinance{CompanyID: company.ID, Year: 2025, Revenue: 1_500_000})
	db.Create(&models.CompanyFinance{CompanyID: company.ID, Year: 2024, Revenue: 100})
	db.Create(&models.CompanyExperience{CompanyID: company.ID, ProjectName: "Bypass", Value: 900_000})

	breakdown, err := svc.DocumentBreakdown(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("DocumentBreakdown() error = %v", err)
	}

	if breakdown.Scores.Technical != 80 || breakdown.Scores.Financial != 60 {
		t.Errorf("components = %+v, expected technical 80 and financial 60", breakdown.Scores)
	}

	// default weights: 80*0.4 + 60*0.6
	if !almostEqual(breakdown.TotalScore, 68) {
		t.Errorf("TotalScore = %v, expected 68", breakdown.TotalScore)
	}

	// one large contract: quantity 1/3, full scale credit
	wantExperience := 1.0/3.0*100*0.5 + 50
	if !almostEqual(breakdown.Scores.Experience, wantExperience) {
		t.Errorf("Experience = %v, expected %v", breakdown.Scores.Experience, wantExperience)
	}

	// latest-year revenue (2025) covers 1.5x the budget
	wantFeasibility := 100*0.6 + wantExperience*0.4
	if !almostEqual(breakdown.FeasibilityScore, wantFeasibility) {
		t.Errorf("FeasibilityScore = %v, expected %v", breakdown.FeasibilityScore, wantFeasibility)
	}
}

func TestDocumentBreakdownWithoutEvaluations(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)

	doc := models.TenderDocument{Title: "Fresh upload", WorkflowStage: models.StagePreFeasibility, Version: 1}
	if err := db.Create(&doc).Error; err != nil {
		t.Fatalf("failed to create document: %v", err)
	}

	breakdown, err := svc.DocumentBreakdown(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("DocumentBreakdown() error = %v", err)
	}
	if breakdown.TotalScore != 0 {
		t.Errorf("TotalScore = %v, expected 0 without evaluations", breakdown.TotalScore)
	}
	if breakdown.Weights.TechWeight != 0.4 {
		t.Errorf("TechWeight = %v, expected default 0.4", breakdown.Weights.TechWeight)
	}
}

func TestDocumentBreakdownUsesPerDocumentWeights(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)

	doc := seedDocument(t, db, "Weighted package", 500_000, 100, 0)
	if err := db.Create(&models.ScoringConfig{
		DocumentID: doc.ID, TechWeight: 0.7, PersonnelWeight: 0.2, ExperienceWeight: 0.1,
	}).Error; err != nil {
		t.Fatalf("failed to create scoring config: %v", err)
	}

	breakdown, err := svc.DocumentBreakdown(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("DocumentBreakdown() error = %v", err)
	}
	if !almostEqual(breakdown.TotalScore, 70) {
		t.Errorf("TotalScore = %v, expected 70 with 0.7 tech weight", breakdown.TotalScore)
	}
}

func TestRankSkipsUnknownDocuments(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)

	a := seedDocument(t, db, "Tender A", 100_000, 90, 70)
	b := seedDocument(t, db, "Tender B", 100_000, 40, 40)

	ids := []uuid.UUID{a.ID, uuid.New(), b.ID}
	ranked, err := svc.Rank(context.Background(), ids)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	if len(ranked) != 2 {
		t.Fatalf("Rank() returned %d results, expected 2 (unknown id skipped)", len(ranked))
	}
	for _, r := range ranked {
		if r.DocumentID != a.ID && r.DocumentID != b.ID {
			t.Errorf("unexpected document %s in ranking", r.DocumentID)
		}
	}
}

func TestRankEmptyInput(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)

	ranked, err := svc.Rank(context.Background(), nil)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(ranked) != 0 {
		t.Errorf("Rank() returned %d results for empty input", len(ranked))
	}
}
