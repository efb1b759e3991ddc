package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/config"
	"github.com/diewo77/quote-optimizer/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return gdb
}

func TestOpenSQLite(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver:         config.DriverSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "quotes.db"),
		ConnectRetries: 1,
	}
	gdb, err := Open(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := Prepare(gdb, cfg, zap.NewNop()); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	for _, table := range []string{"client_requests", "rfq_sent", "merged_quotes", "selected_quotes", "pipeline_runs"} {
		if !gdb.Migrator().HasTable(table) {
			t.Errorf("missing table %s", table)
		}
	}
}

func TestSeedIdempotent(t *testing.T) {
	gdb := setupTestDB(t, t.Name())
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	body := `
suppliers:
  - name: Acme Print
    email: sales@acme.test
    performance_score: 0.82
    products: [t-shirt, mug]
  - name: Borealis
    email: hello@borealis.test
    products: [poster]
requests:
  - customer_id: CUST-001
    product_type: mug
    quantity: 120
    deadline: 2025-04-01T00:00:00Z
  - customer_id: CUST-002
    product_type: custom poster
    quantity: 10
quotations:
  - customer_id: CUST-001
    supplier_email: sales@acme.test
    unit_price: 3.4
    delivery_days: 6
    response_hours: 12
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	fx, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture() error = %v", err)
	}
	if len(fx.Quotations) != 1 || *fx.Quotations[0].ResponseHours != 12 {
		t.Fatalf("unexpected quotations %+v", fx.Quotations)
	}

	first, err := Seed(context.Background(), gdb, fx)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if first.Suppliers != 2 || first.Requests != 2 {
		t.Fatalf("first seed created %+v", first)
	}
	second, err := Seed(context.Background(), gdb, fx)
	if err != nil {
		t.Fatalf("second Seed() error = %v", err)
	}
	if second.Suppliers != 0 || second.Requests != 0 {
		t.Fatalf("second seed created %+v, want nothing", second)
	}

	var acme models.Supplier
	if err := gdb.Where("email = ?", "sales@acme.test").First(&acme).Error; err != nil {
		t.Fatal(err)
	}
	if !acme.Supports("mug") || acme.PerformanceScore == nil || *acme.PerformanceScore != 0.82 {
		t.Errorf("unexpected supplier %+v", acme)
	}
	var req models.ClientRequest
	if err := gdb.Where("customer_id = ?", "CUST-001").First(&req).Error; err != nil {
		t.Fatal(err)
	}
	if req.Deadline == nil || req.Deadline.Year() != 2025 {
		t.Errorf("deadline not decoded: %+v", req.Deadline)
	}
}

func TestFixtureValidate(t *testing.T) {
	tooHigh, negative, ok := 5.5, -0.1, 4.2
	fx := &Fixture{
		Suppliers: []SupplierFixture{
			{Name: "Acme Print", Email: "sales@acme.test", PerformanceScore: &ok},
			{Name: "Borealis", Email: "hello@borealis.test", PerformanceScore: &tooHigh},
			{Name: "Cirrus", PerformanceScore: &negative},
		},
		Requests:   []RequestFixture{{CustomerID: "CUST-001", ProductType: "mug"}},
		Quotations: []QuotationFixture{{CustomerID: "CUST-001", SupplierEmail: "sales@acme.test", UnitPrice: 0}},
	}

	err := fx.Validate()
	var cfgErr *apperrors.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Validate() error = %v, want ConfigurationError", err)
	}
	want := map[string]string{
		"suppliers[1].performance_score": "out_of_range",
		"suppliers[2].performance_score": "out_of_range",
		"suppliers[2].email":             "required",
		"requests[0].quantity":           "must_be_positive",
		"quotations[0].unit_price":       "must_be_positive",
	}
	for field, code := range want {
		if got := cfgErr.Violations[field]; got != code {
			t.Errorf("violation %s = %q, want %q", field, got, code)
		}
	}
	if len(cfgErr.Violations) != len(want) {
		t.Errorf("violations = %v", cfgErr.Violations)
	}

	gdb := setupTestDB(t, t.Name())
	if _, err := Seed(context.Background(), gdb, fx); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("Seed() error = %v, want configuration error", err)
	}
	var n int64
	if err := gdb.Model(&models.Supplier{}).Count(&n).Error; err != nil || n != 0 {
		t.Errorf("an invalid fixture must not seed anything, got %d suppliers (%v)", n, err)
	}

	fx.Suppliers = fx.Suppliers[:1]
	fx.Requests[0].Quantity = 10
	fx.Quotations[0].UnitPrice = 2.5
	if err := fx.Validate(); err != nil {
		t.Errorf("Validate() on fixed fixture = %v", err)
	}
}

func TestLoadFixtureRejectsOutOfRangeScore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	body := "suppliers:\n  - {name: Acme, email: a@acme.test, performance_score: 7}\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFixture(path); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("LoadFixture() error = %v, want configuration error", err)
	}
}

func TestNormalizeDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{`"postgres://u:p@h:5432/db"`, "postgres://u:p@h:5432/db"},
		{"host=h  user=u dbname=db", "host=h user=u dbname=db sslmode=disable"},
		{"host=h user=u dbname=db sslmode=require", "host=h user=u dbname=db sslmode=require"},
		{"not a dsn", "not a dsn"},
	}
	for _, tt := range tests {
		if got := NormalizeDSN(tt.in); got != tt.want {
			t.Errorf("NormalizeDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToURLDSN(t *testing.T) {
	got := ToURLDSN("host=db port=5432 user=quote password=s3cret dbname=quotes sslmode=disable")
	want := "postgres://quote:s3cret@db:5432/quotes?sslmode=disable"
	if got != want {
		t.Errorf("ToURLDSN() = %q, want %q", got, want)
	}
	if got := ToURLDSN("host=db"); got != "host=db" {
		t.Errorf("incomplete DSN should be returned unchanged, got %q", got)
	}
}

func TestMaskDSN(t *testing.T) {
	if got := MaskDSN("host=db password=s3cret dbname=q"); got != "host=db password=*** dbname=q" {
		t.Errorf("MaskDSN(kv) = %q", got)
	}
	if got := MaskDSN("postgres://quote:s3cret@db:5432/quotes"); got != "postgres://quote:***@db:5432/quotes" {
		t.Errorf("MaskDSN(url) = %q", got)
	}
}

func TestMigrationURL(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "q", SSLMode: "disable"}
	if got := MigrationURL(cfg); got != "postgres://u:p@db:5432/q?sslmode=disable" {
		t.Errorf("MigrationURL() = %q", got)
	}
	cfg.URL = "host=other user=u dbname=q"
	if got := MigrationURL(cfg); got != "postgres://u@other/q?sslmode=disable" {
		t.Errorf("MigrationURL(url) = %q", got)
	}
}
