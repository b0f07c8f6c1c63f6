package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompanyProfile is the bidder's own company record: a single shared
// aggregate read by the scoring engine across all documents.
type CompanyProfile struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	RegistrationNo string    `gorm:"size:100" json:"registration_no,omitempty"`
	Address        string    `gorm:"type:text" json:"address,omitempty"`
	ContactEmail   string    `gorm:"size:255" json:"contact_email,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Finances   []CompanyFinance    `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE" json:"finances,omitempty"`
	Experience []CompanyExperience `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE" json:"experience,omitempty"`
	Personnel  []CompanyPersonnel  `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE" json:"personnel,omitempty"`
}

// TableName specifies the table name for CompanyProfile
func (CompanyProfile) TableName() string {
	return "company_profiles"
}

func (c *CompanyProfile) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// CompanyFinance is one fiscal year of financial data
type CompanyFinance struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`

	Year    int     `gorm:"not null" json:"year"`
	Revenue float64 `gorm:"not null" json:"revenue"`
	Profit  float64 `json:"profit"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for CompanyFinance
func (CompanyFinance) TableName() string {
	return "company_finances"
}

func (f *CompanyFinance) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return
}

// CompanyExperience is one completed past contract
type CompanyExperience struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`

	ProjectName string  `gorm:"size:255;not null" json:"project_name"`
	Client      string  `gorm:"size:255" json:"client,omitempty"`
	Value       float64 `gorm:"not null" json:"value"`
	Year        int     `json:"year"`
	Description string  `gorm:"type:text" json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for CompanyExperience
func (CompanyExperience) TableName() string {
	return "company_experiences"
}

func (e *CompanyExperience) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}

// CompanyPersonnel is one key staff member
type CompanyPersonnel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`

	Name            string `gorm:"size:255;not null" json:"name"`
	Title           string `gorm:"size:100" json:"title,omitempty"`
	YearsExperience int    `json:"years_experience"`
	Qualifications  string `gorm:"type:text" json:"qualifications,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for CompanyPersonnel
func (CompanyPersonnel) TableName() string {
	return "company_personnel"
}

func (p *CompanyPersonnel) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
