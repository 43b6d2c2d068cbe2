package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/db/models"
	pkgerrors "github.com/madaparts/backoffice-backend/pkg/errors"
)

// WalkInLabelPrefix marks orders sold without a customer record.
const WalkInLabelPrefix = "Client occasionnel: "

// ResolveInput describes the customer side of an incoming order. Exactly one
// of the three shapes applies: a known id, enough contact data to look up or
// create a record, or a bare name for a walk-in sale.
type ResolveInput struct {
	CustomerID *uuid.UUID
	Nom        string
	Type       string
	Telephone  string
	Email      string
	Siret      string
	Adresse    string
}

// Resolution is the outcome: either a customer id or a walk-in label.
type Resolution struct {
	CustomerID *uuid.UUID
	Libelle    *string
	Created    bool
}

// Service resolves order customers. Resolve runs against the caller's
// transaction so lookup and create stay atomic with the order insert.
type Service interface {
	Resolve(ctx context.Context, tx *gorm.DB, input ResolveInput) (*Resolution, error)
}

type service struct {
	repo Repository
}

// NewService wires the customer resolution service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Resolve(ctx context.Context, tx *gorm.DB, input ResolveInput) (*Resolution, error) {
	repo := s.repo.WithTx(tx)

	if input.CustomerID != nil {
		customer, err := repo.GetByID(ctx, *input.CustomerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "customer %s does not exist", *input.CustomerID)
			}
			return nil, err
		}
		return &Resolution{CustomerID: &customer.ID}, nil
	}

	if input.Nom == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}

	// no contact data means a walk-in sale: label only, no customer row
	if input.Telephone == "" && input.Email == "" {
		label := WalkInLabelPrefix + input.Nom
		return &Resolution{Libelle: &label}, nil
	}

	existing, err := repo.FindByContact(ctx, input.Telephone, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Resolution{CustomerID: &existing.ID}, nil
	}

	customer := &models.Customer{
		Nom:       input.Nom,
		Telephone: optional(input.Telephone),
		Email:     optional(input.Email),
		Siret:     optional(input.Siret),
		Adresse:   optional(input.Adresse),
	}
	if input.Type != "" {
		customer.Type = input.Type
	}
	if err := repo.Create(ctx, customer); err != nil {
		return nil, err
	}
	return &Resolution{CustomerID: &customer.ID, Created: true}, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
