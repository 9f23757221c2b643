package services

import (
	"testing"

	"recessims/server/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:svc_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func createTestUser(t *testing.T, db *gorm.DB, email string, roleLevel int) *models.User {
	t.Helper()
	user := models.User{
		Email:        email,
		PasswordHash: "hash",
		Name:         "Test User",
		RoleLevel:    roleLevel,
		Tier:         1,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

func createTestProject(t *testing.T, db *gorm.DB) *models.Project {
	t.Helper()
	project := models.Project{
		ProjectNo:   "PRJ-TEST-" + uuid.New().String()[:8],
		Name:        "Test Title",
		ClientOrgID: "00000000-0000-0000-0000-000000000001",
		Type:        models.ProjectTypeTVA,
		CreatedBy:   "00000000-0000-0000-0000-000000000002",
	}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	return &project
}

func createTestVendor(t *testing.T, db *gorm.DB) *models.Vendor {
	t.Helper()
	vendor := models.Vendor{
		Name:    "Test Studio",
		Type:    models.VendorTypeStudio,
		Tier:    2,
		TaxType: models.TaxTypeCorporate,
	}
	if err := db.Create(&vendor).Error; err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	return &vendor
}

// createApprovedOrder создает заказ и доводит его до approved
func createApprovedOrder(t *testing.T, db *gorm.DB, svc *PurchaseOrderService, approver *models.User) *models.PurchaseOrder {
	t.Helper()
	project := createTestProject(t, db)
	vendor := createTestVendor(t, db)

	order, err := svc.CreateOrder(CreateOrderInput{
		ProjectID:          project.ID,
		VendorID:           vendor.ID,
		ProcessType:        models.ProcessGenga,
		Quantity:           50,
		UnitPrice:          d("15000"),
		DifficultyRate:     d("1.2"),
		UrgencyRate:        d("1.0"),
		WithholdingTaxRate: d("0.033"),
	}, approver.ID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	pending := models.OrderStatusPending
	if _, err := svc.UpdateOrder(order.ID, UpdateOrderInput{Status: &pending}); err != nil {
		t.Fatalf("submit order: %v", err)
	}
	approved, err := svc.ApproveOrder(order.ID, approver)
	if err != nil {
		t.Fatalf("approve order: %v", err)
	}
	return approved
}
