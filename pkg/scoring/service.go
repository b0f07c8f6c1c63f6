package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"p9e.in/tenderdesk/models"
)

const breakdownCacheTTL = 5 * time.Minute

// Breakdown is the per-document score summary returned by comparison calls
type Breakdown struct {
	DocumentID       uuid.UUID            `json:"document_id"`
	Title            string               `json:"title"`
	VendorName       string               `json:"vendor_name,omitempty"`
	DocumentType     string               `json:"document_type,omitempty"`
	TotalScore       float64              `json:"total_score"`
	FeasibilityScore float64              `json:"feasibility_score"`
	Scores           ScoreComponents      `json:"breakdown"`
	Weights          models.ScoringConfig `json:"weights"`
}

// ScoreComponents are the individual axes feeding the total
type ScoreComponents struct {
	Technical  float64 `json:"technical"`
	Financial  float64 `json:"financial"`
	Experience float64 `json:"experience"`
}

// Service computes score breakdowns from locked evaluation records plus
// company data. The cache client may be nil, which disables caching.
type Service struct {
	db    *gorm.DB
	cache *redis.Client
}

// NewService creates a new scoring service instance
func NewService(db *gorm.DB, cache *redis.Client) *Service {
	return &Service{db: db, cache: cache}
}

// DocumentBreakdown computes the full score breakdown for one document
func (s *Service) DocumentBreakdown(ctx context.Context, documentID uuid.UUID) (*Breakdown, error) {
	if cached := s.cachedBreakdown(ctx, documentID); cached != nil {
		return cached, nil
	}

	var doc models.TenderDocument
	if err := s.db.WithContext(ctx).
		Preload("TechnicalEval").
		Preload("FinancialEval").
		Preload("ScoringConfig").
		First(&doc, "id = ?", documentID).Error; err != nil {
		return nil, fmt.Errorf("tender not found: %w", err)
	}

	config := models.DefaultScoringConfig()
	if doc.ScoringConfig != nil {
		config = *doc.ScoringConfig
	}

	techScore := 0.0
	if doc.TechnicalEval != nil {
		techScore = doc.TechnicalEval.Score
	}
	financialScore := 0.0
	if doc.FinancialEval != nil {
		financialScore = doc.FinancialEval.Score
	}

	experience, feasibility := s.companyScores(ctx, doc.EstimatedBudget)

	breakdown := &Breakdown{
		DocumentID:       doc.ID,
		Title:            doc.Title,
		VendorName:       doc.VendorName,
		DocumentType:     doc.DocumentType,
		TotalScore:       TotalScore(techScore, financialScore, config),
		FeasibilityScore: feasibility,
		Scores: ScoreComponents{
			Technical:  techScore,
			Financial:  financialScore,
			Experience: experience,
		},
		Weights: config,
	}

	s.storeBreakdown(ctx, breakdown)
	return breakdown, nil
}

// Rank computes breakdowns for a batch of documents concurrently. Ids that do
// not resolve are skipped rather than failing the batch; callers sort the
// result as needed (typically descending by TotalScore).
func (s *Service) Rank(ctx context.Context, documentIDs []uuid.UUID) ([]Breakdown, error) {
	results := make([]*Breakdown, len(documentIDs))

	var wg sync.WaitGroup
	for i, id := range documentIDs {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			breakdown, err := s.DocumentBreakdown(ctx, id)
			if err != nil {
				// partial-failure policy: unknown documents are omitted
				return
			}
			results[i] = breakdown
		}(i, id)
	}
	wg.Wait()

	ranked := make([]Breakdown, 0, len(documentIDs))
	for _, r := range results {
		if r != nil {
			ranked = append(ranked, *r)
		}
	}
	return ranked, nil
}

// Invalidate drops the cached breakdown after an evaluation write
func (s *Service) Invalidate(ctx context.Context, documentID uuid.UUID) {
	if s.cache == nil {
		return
	}
	s.cache.Del(ctx, breakdownCacheKey(documentID))
}

// companyScores reads the shared company profile and derives the experience
// and feasibility components for the given budget. Both are 0 when the
// profile or its history is missing.
func (s *Service) companyScores(ctx context.Context, estimatedBudget float64) (experience, feasibility float64) {
	var company models.CompanyProfile
	err := s.db.WithContext(ctx).
		Preload("Experience").
		Preload("Finances", func(db *gorm.DB) *gorm.DB {
			return db.Order("year DESC")
		}).
		First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || err != nil {
		return 0, 0
	}

	experience = ExperienceScore(estimatedBudget, company.Experience)

	if len(company.Finances) > 0 {
		feasibility = FeasibilityScore(estimatedBudget, company.Finances[0].Revenue, experience)
	}
	return experience, feasibility
}

func (s *Service) cachedBreakdown(ctx context.Context, documentID uuid.UUID) *Breakdown {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, breakdownCacheKey(documentID)).Bytes()
	if err != nil {
		return nil
	}
	var b Breakdown
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil
	}
	return &b
}

func (s *Service) storeBreakdown(ctx context.Context, b *Breakdown) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return
	}
	s.cache.Set(ctx, breakdownCacheKey(b.DocumentID), raw, breakdownCacheTTL)
}

func breakdownCacheKey(documentID uuid.UUID) string {
	return "tenderdesk:breakdown:" + documentID.String()
}
