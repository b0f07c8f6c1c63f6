package config

import (
	"errors"
	"log"

	"gorm.io/gorm"
	"p9e.in/tenderdesk/models"
)

// RunSeeding creates the default evaluator accounts and the company profile
// on a fresh database. Existing rows are left untouched.
func RunSeeding(db *gorm.DB) error {
	if err := seedUsers(db); err != nil {
		return err
	}
	return seedCompanyProfile(db)
}

func seedUsers(db *gorm.DB) error {
	defaults := []struct {
		name  string
		email string
		role  string
	}{
		{"System Admin", "admin@tenderdesk.local", models.RoleAdmin},
		{"Technical Officer", "tech@tenderdesk.local", models.RoleTechnical},
		{"Procurement Specialist", "proc@tenderdesk.local", models.RoleProcurement},
	}

	for _, d := range defaults {
		var existing models.User
		err := db.Where("email = ?", d.email).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user := models.User{Name: d.name, Email: d.email, Role: d.role}
		if err := user.SetPassword("admin123"); err != nil {
			return err
		}
		if err := db.Create(&user).Error; err != nil {
			return err
		}
		log.Printf("Seeded user %s (%s)", d.email, d.role)
	}

	return nil
}

func seedCompanyProfile(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.CompanyProfile{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	company := models.CompanyProfile{
		Name:         "Tenderdesk Contracting Ltd",
		ContactEmail: "office@tenderdesk.local",
		Finances: []models.CompanyFinance{
			{Year: 2024, Revenue: 12_500_000, Profit: 1_400_000},
			{Year: 2023, Revenue: 9_800_000, Profit: 900_000},
		},
		Experience: []models.CompanyExperience{
			{ProjectName: "District water supply network", Client: "Municipal Board", Value: 4_200_000, Year: 2023},
			{ProjectName: "Substation civil works", Client: "State Power Co", Value: 2_750_000, Year: 2022},
		},
	}
	if err := db.Create(&company).Error; err != nil {
		return err
	}

	log.Printf("Seeded company profile %s", company.ID)
	return nil
}
