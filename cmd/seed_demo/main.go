package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/kami-operation/kamiops/internal/cache"
	"github.com/kami-operation/kamiops/internal/config"
	"github.com/kami-operation/kamiops/internal/database"
	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/logger"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/services/access"
	"github.com/kami-operation/kamiops/internal/services/catalog"
	"github.com/kami-operation/kamiops/internal/services/templates"
	"github.com/kami-operation/kamiops/internal/storage"
	"github.com/kami-operation/kamiops/internal/utils"
)

const demoPassword = "demo-password"

func main() {
	fmt.Println("🌱 KamiOps Demo Data Seeder")
	fmt.Println(strings.Repeat("=", 60))

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	zl := logger.Init(logger.Options{Level: "warn", Pretty: true})
	ctx := context.Background()

	// Connect to database
	db, err := database.Connect(cfg.Database, zl)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	// Run migrations first
	fmt.Println("🔨 Running database migrations...")
	if err := db.AutoMigrate(models.Tables()...); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")
	fmt.Println()

	repos := repository.New(db.DB)
	accessSvc := access.NewService(repos, cache.New(cache.DefaultExpiration), utils.TokenConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, zl)
	catalogSvc := catalog.NewService(repos, zl)
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Failed to initialise storage: %v", err)
	}
	templateSvc := templates.NewService(repos, store, zl)

	if err := accessSvc.Bootstrap(ctx, cfg.Bootstrap); err != nil {
		log.Fatalf("❌ Bootstrap failed: %v", err)
	}

	// Check if data already exists
	existing, err := catalogSvc.ListCategories(ctx, repository.CategoryFilter{})
	if err != nil {
		log.Fatalf("❌ Failed to inspect categories: %v", err)
	}
	if existing.Total > 0 {
		fmt.Printf("⚠️  Database already has %d categories. Nothing to do.\n", existing.Total)
		return
	}

	fmt.Println("📦 Creating demo data...")
	fmt.Println()

	// 1. Roles
	fmt.Println("🛡️  Creating roles...")
	roles := []access.CreateRoleRequest{
		{
			Code:        "AUTHOR",
			Name:        "Document author",
			Description: "Drafts documents and routes them for signature",
			Permissions: []string{
				models.PermCategoriesRead, models.PermDocumentTypesRead, models.PermTemplatesRead,
				models.PermDocumentsRead, models.PermDocumentsCreate, models.PermDocumentsUpdate,
				models.PermDocumentsCancel, models.PermDashboardRead,
			},
		},
		{
			Code:        "SIGNER",
			Name:        "Signatory",
			Description: "Reviews and signs documents assigned to them",
			Permissions: []string{models.PermDocumentsRead, models.PermDocumentsSign, models.PermDashboardRead},
		},
	}
	roleIDs := make(map[string]string)
	for _, req := range roles {
		role, err := accessSvc.CreateRole(ctx, req)
		if err != nil {
			log.Printf("⚠️  Failed to create role %s: %v", req.Code, err)
			continue
		}
		roleIDs[role.Code] = role.ID
		fmt.Printf("   ✓ Created role: %s (%d permissions)\n", role.Code, len(req.Permissions))
	}
	fmt.Printf("✅ Created %d roles\n\n", len(roleIDs))

	// 2. Users
	fmt.Println("👤 Creating users...")
	users := []struct {
		username, email, name, position, role string
	}{
		{"author", "author@kami.local", "Alex Author", "Operations clerk", "AUTHOR"},
		{"signer1", "signer1@kami.local", "Sam Signer", "Shift supervisor", "SIGNER"},
		{"signer2", "signer2@kami.local", "Robin Reviewer", "Plant manager", "SIGNER"},
	}
	created := 0
	for _, u := range users {
		req := access.CreateUserRequest{
			Username: u.username,
			Email:    u.email,
			Password: demoPassword,
			Name:     u.name,
			Position: u.position,
		}
		if id, ok := roleIDs[u.role]; ok {
			req.RoleID = &id
		}
		user, err := accessSvc.CreateUser(ctx, req)
		if err != nil {
			if ierr.IsAlreadyExists(err) {
				fmt.Printf("   • User %s already exists\n", u.username)
				continue
			}
			log.Printf("⚠️  Failed to create user %s: %v", u.username, err)
			continue
		}
		created++
		fmt.Printf("   ✓ Created user: %s <%s> as %s\n", user.Username, user.Email, u.role)
	}
	fmt.Printf("✅ Created %d users (password: %s)\n\n", created, demoPassword)

	// 3. Categories
	fmt.Println("📁 Creating categories...")
	root, err := catalogSvc.CreateCategory(ctx, catalog.CategoryRequest{
		Code: "OPERATIONS", Name: "Operations", Description: "Day-to-day operational paperwork",
	})
	if err != nil {
		log.Fatalf("❌ Failed to create category: %v", err)
	}
	fmt.Printf("   ✓ Created category: %s\n", root.Name)
	safety, err := catalogSvc.CreateCategory(ctx, catalog.CategoryRequest{
		Code: "SAFETY", Name: "Safety", Description: "Permits and inspections", ParentID: &root.ID,
	})
	if err != nil {
		log.Fatalf("❌ Failed to create category: %v", err)
	}
	fmt.Printf("   ✓ Created category: %s / %s\n", root.Name, safety.Name)
	fmt.Println("✅ Created 2 categories")
	fmt.Println()

	// 4. Document type
	fmt.Println("📝 Creating document types...")
	permit, err := catalogSvc.CreateDocumentType(ctx, catalog.DocumentTypeRequest{
		Code:              "WORK_PERMIT",
		Name:              "Hot work permit",
		Description:       "Authorises welding and cutting outside the workshop",
		CategoryID:        safety.ID,
		RequiresSignature: true,
		ValidityDays:      7,
		FieldGroups: []models.FieldGroup{
			{
				Key: "job", Label: "Job", Order: 1,
				Fields: []models.FieldDefinition{
					{Key: "location", Label: "Location", Type: models.FieldText, Required: true, Order: 1},
					{Key: "work", Label: "Work description", Type: models.FieldTextarea, Required: true, Order: 2},
					{Key: "start", Label: "Start date", Type: models.FieldDate, Required: true, Order: 3},
				},
			},
			{
				Key: "safety", Label: "Precautions", Order: 2,
				Fields: []models.FieldDefinition{
					{Key: "extinguisher", Label: "Extinguisher on site", Type: models.FieldCheckbox, Order: 1},
					{Key: "risk", Label: "Risk level", Type: models.FieldSelect, Options: `["LOW","MEDIUM","HIGH"]`, Required: true, Order: 2},
				},
			},
		},
	})
	if err != nil {
		log.Fatalf("❌ Failed to create document type: %v", err)
	}
	fmt.Printf("   ✓ Created document type: [%s] %s\n", permit.Code, permit.Name)
	fmt.Println()

	// 5. Template
	fmt.Println("🖨️  Creating PDF templates...")
	tpl, err := templateSvc.Create(ctx, templates.TemplateRequest{
		Name:           "Hot work permit A4",
		DocumentTypeID: &permit.ID,
		PageSize:       models.PageA4,
		Orientation:    models.Portrait,
		Sections: []models.Section{
			{Type: models.SectionText, X: 8, Y: 5, Width: 84, Height: 6, Content: "HOT WORK PERMIT {{reference}}", Style: models.SectionStyle{FontSize: 16, Bold: true, Align: "C"}},
			{Type: models.SectionField, X: 8, Y: 15, Width: 84, Height: 4, Label: "Location", Binding: "location"},
			{Type: models.SectionField, X: 8, Y: 20, Width: 84, Height: 4, Label: "Start", Binding: "start"},
			{Type: models.SectionField, X: 8, Y: 25, Width: 84, Height: 4, Label: "Risk", Binding: "risk"},
			{Type: models.SectionText, X: 8, Y: 31, Width: 84, Height: 20, Content: "{{work}}"},
			{Type: models.SectionLine, X: 8, Y: 60, Width: 84, Height: 1},
			{Type: models.SectionSignature, X: 8, Y: 65, Width: 38, Height: 12, Label: "Supervisor", SignatoryOrder: 1},
			{Type: models.SectionSignature, X: 54, Y: 65, Width: 38, Height: 12, Label: "Manager", SignatoryOrder: 2},
			{Type: models.SectionQRCode, X: 78, Y: 82, Width: 14, Height: 10},
		},
	})
	if err != nil {
		log.Fatalf("❌ Failed to create template: %v", err)
	}
	fmt.Printf("   ✓ Created template: %s (%d sections)\n", tpl.Name, len(tpl.Sections))

	if _, err := catalogSvc.UpdateDocumentType(ctx, permit.ID, catalog.DocumentTypeRequest{
		Code:              permit.Code,
		Name:              permit.Name,
		Description:       permit.Description,
		CategoryID:        permit.CategoryID,
		FieldGroups:       permit.FieldGroups,
		RequiresSignature: permit.RequiresSignature,
		DefaultTemplateID: &tpl.ID,
		ValidityDays:      permit.ValidityDays,
	}); err != nil {
		log.Printf("⚠️  Failed to set default template: %v", err)
	} else {
		fmt.Printf("   ✓ Set default template of %s\n", permit.Code)
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("🎉 Demo data seeded")
	fmt.Printf("   Login as %s or any demo user with password %s\n", cfg.Bootstrap.AdminEmail, demoPassword)
}
