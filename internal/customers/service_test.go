package customers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/db/models"
	pkgerrors "github.com/madaparts/backoffice-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	dsn := "file:customers_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Customer{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn
}

func TestResolveByIDFailsForUnknownCustomer(t *testing.T) {
	svc, _ := newTestService(t)
	missing := uuid.New()

	_, err := svc.Resolve(context.Background(), nil, ResolveInput{CustomerID: &missing})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestResolveByIDReturnsExistingCustomer(t *testing.T) {
	svc, conn := newTestService(t)
	phone := "0341234567"
	existing := &models.Customer{Nom: "Garage Rakoto", Telephone: &phone}
	if err := conn.Create(existing).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}

	res, err := svc.Resolve(context.Background(), nil, ResolveInput{CustomerID: &existing.ID})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.CustomerID == nil || *res.CustomerID != existing.ID {
		t.Fatalf("expected the existing customer, got %+v", res)
	}
	if res.Created {
		t.Fatal("resolution by id must not report a creation")
	}
}

func TestResolveMatchesByPhoneBeforeCreating(t *testing.T) {
	svc, conn := newTestService(t)
	phone := "0341234567"
	existing := &models.Customer{Nom: "Garage Rakoto", Telephone: &phone}
	if err := conn.Create(existing).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}

	res, err := svc.Resolve(context.Background(), nil, ResolveInput{Nom: "Autre Nom", Telephone: phone})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.CustomerID == nil || *res.CustomerID != existing.ID {
		t.Fatalf("expected phone match to reuse the existing customer, got %+v", res)
	}

	var count int64
	if err := conn.Model(&models.Customer{}).Count(&count).Error; err != nil {
		t.Fatalf("count customers: %v", err)
	}
	if count != 1 {
		t.Fatalf("no duplicate row may be created, got %d", count)
	}
}

func TestResolveCreatesCustomerWithContact(t *testing.T) {
	svc, conn := newTestService(t)

	res, err := svc.Resolve(context.Background(), nil, ResolveInput{
		Nom:   "Transport Rasoa",
		Email: "rasoa@example.mg",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.CustomerID == nil || !res.Created {
		t.Fatalf("expected a new customer, got %+v", res)
	}

	var created models.Customer
	if err := conn.First(&created, "id = ?", *res.CustomerID).Error; err != nil {
		t.Fatalf("load created customer: %v", err)
	}
	if created.Email == nil || *created.Email != "rasoa@example.mg" {
		t.Fatalf("unexpected created customer: %+v", created)
	}
}

func TestResolveWalkInProducesLabelOnly(t *testing.T) {
	svc, conn := newTestService(t)

	res, err := svc.Resolve(context.Background(), nil, ResolveInput{Nom: "Jean"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.CustomerID != nil {
		t.Fatal("walk-in sale must not create a customer row")
	}
	if res.Libelle == nil || *res.Libelle != WalkInLabelPrefix+"Jean" {
		t.Fatalf("unexpected label: %v", res.Libelle)
	}

	var count int64
	if err := conn.Model(&models.Customer{}).Count(&count).Error; err != nil {
		t.Fatalf("count customers: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no customer rows, got %d", count)
	}
}

func TestResolveRequiresAName(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Resolve(context.Background(), nil, ResolveInput{Telephone: "0341234567"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
