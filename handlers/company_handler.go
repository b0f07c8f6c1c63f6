package handlers

import (
	"encoding/json"
	"net/http"

	"gorm.io/gorm"
	"p9e.in/tenderdesk/config"
	"p9e.in/tenderdesk/models"
)

// loadCompany fetches the single company profile used by the scoring engine
func loadCompany() (*models.CompanyProfile, error) {
	var company models.CompanyProfile
	err := config.DB.
		Preload("Finances", func(db *gorm.DB) *gorm.DB { return db.Order("year DESC") }).
		Preload("Experience").
		Preload("Personnel").
		First(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// GetCompanyHandler returns the company profile with all sub-records
// GET /api/v1/company
func GetCompanyHandler(w http.ResponseWriter, r *http.Request) {
	company, err := loadCompany()
	if err != nil {
		http.Error(w, "company profile not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"company": company,
	})
}

// UpdateCompanyHandler patches company profile attributes (admin only)
// PATCH /api/v1/company
func UpdateCompanyHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           *string `json:"name"`
		RegistrationNo *string `json:"registration_no"`
		Address        *string `json:"address"`
		ContactEmail   *string `json:"contact_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var company models.CompanyProfile
	if err := config.DB.First(&company).Error; err != nil {
		http.Error(w, "company profile not found", http.StatusNotFound)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.RegistrationNo != nil {
		updates["registration_no"] = *req.RegistrationNo
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.ContactEmail != nil {
		updates["contact_email"] = *req.ContactEmail
	}

	if len(updates) > 0 {
		if err := config.DB.Model(&company).Updates(updates).Error; err != nil {
			http.Error(w, "failed to update company", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "company updated",
		"company": company,
	})
}

// AddFinanceHandler records one fiscal year of financial data (admin only)
// POST /api/v1/company/finances
func AddFinanceHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year    int     `json:"year"`
		Revenue float64 `json:"revenue"`
		Profit  float64 `json:"profit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Year < 1900 || req.Revenue < 0 {
		http.Error(w, "year and a non-negative revenue are required", http.StatusBadRequest)
		return
	}

	var company models.CompanyProfile
	if err := config.DB.First(&company).Error; err != nil {
		http.Error(w, "company profile not found", http.StatusNotFound)
		return
	}

	finance := models.CompanyFinance{
		CompanyID: company.ID,
		Year:      req.Year,
		Revenue:   req.Revenue,
		Profit:    req.Profit,
	}
	if err := config.DB.Create(&finance).Error; err != nil {
		http.Error(w, "failed to save finance record", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "finance record added",
		"finance": finance,
	})
}

// AddExperienceHandler records one past contract (admin only)
// POST /api/v1/company/experience
func AddExperienceHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectName string  `json:"project_name"`
		Client      string  `json:"client"`
		Value       float64 `json:"value"`
		Year        int     `json:"year"`
		Description string  `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectName == "" || req.Value < 0 {
		http.Error(w, "project_name and a non-negative value are required", http.StatusBadRequest)
		return
	}

	var company models.CompanyProfile
	if err := config.DB.First(&company).Error; err != nil {
		http.Error(w, "company profile not found", http.StatusNotFound)
		return
	}

	exp := models.CompanyExperience{
		CompanyID:   company.ID,
		ProjectName: req.ProjectName,
		Client:      req.Client,
		Value:       req.Value,
		Year:        req.Year,
		Description: req.Description,
	}
	if err := config.DB.Create(&exp).Error; err != nil {
		http.Error(w, "failed to save experience record", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "experience record added",
		"experience": exp,
	})
}

// AddPersonnelHandler records one key staff member (admin only)
// POST /api/v1/company/personnel
func AddPersonnelHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string `json:"name"`
		Title           string `json:"title"`
		YearsExperience int    `json:"years_experience"`
		Qualifications  string `json:"qualifications"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	var company models.CompanyProfile
	if err := config.DB.First(&company).Error; err != nil {
		http.Error(w, "company profile not found", http.StatusNotFound)
		return
	}

	person := models.CompanyPersonnel{
		CompanyID:       company.ID,
		Name:            req.Name,
		Title:           req.Title,
		YearsExperience: req.YearsExperience,
		Qualifications:  req.Qualifications,
	}
	if err := config.DB.Create(&person).Error; err != nil {
		http.Error(w, "failed to save personnel record", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "personnel record added",
		"personnel": person,
	})
}
