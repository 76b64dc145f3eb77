package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/divergence"
	"storefront/internal/domain"
	"storefront/internal/identity"
	"storefront/internal/repository"
	"storefront/internal/routing"

	"go.uber.org/zap"
)

// AddressInput carries the writable address fields.
type AddressInput struct {
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
	IsDefault    bool
}

func (in AddressInput) validate() error {
	if strings.TrimSpace(in.AddressLine1) == "" {
		return ErrAddressLine1Required
	}
	return nil
}

// AddressService defines the address book operations. An owner has at most
// one default address.
type AddressService interface {
	Add(ctx context.Context, owner string, input AddressInput) (*AddressDTO, error)
	GetAll(ctx context.Context, owner string) ([]AddressDTO, error)
	Update(ctx context.Context, owner, addressID string, input AddressInput) (*AddressDTO, error)
	Delete(ctx context.Context, owner, addressID string) error
}

type addressService struct {
	relational repository.RelationalAddressStore
	document   repository.DocumentAddressStore
	mapper     identity.Mapper
	policy     routing.Policy
	logger     *zap.Logger
	reporter   reporter
}

// NewAddressService creates a new instance of AddressService
func NewAddressService(
	relational repository.RelationalAddressStore,
	document repository.DocumentAddressStore,
	mapper identity.Mapper,
	policy routing.Policy,
	journal divergence.Journal,
	logger *zap.Logger,
) AddressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("address-service")
	return &addressService{
		relational: relational,
		document:   document,
		mapper:     mapper,
		policy:     policy,
		logger:     logger,
		reporter:   newReporter(domain.EntityAddress, logger, journal),
	}
}

func applyAddressInput(a *domain.Address, in AddressInput) {
	a.AddressLine1 = strings.TrimSpace(in.AddressLine1)
	a.AddressLine2 = in.AddressLine2
	a.City = in.City
	a.State = in.State
	a.PostalCode = in.PostalCode
	a.Country = in.Country
	a.IsDefault = in.IsDefault
}

func applyAddressDocumentInput(a *domain.AddressDocument, in AddressInput) {
	a.AddressLine1 = strings.TrimSpace(in.AddressLine1)
	a.AddressLine2 = in.AddressLine2
	a.City = in.City
	a.State = in.State
	a.PostalCode = in.PostalCode
	a.Country = in.Country
	a.IsDefault = in.IsDefault
}

func (s *addressService) Add(ctx context.Context, owner string, input AddressInput) (*AddressDTO, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	userID, relationalOwner := domain.ParseRelationalID(owner)
	if !relationalOwner {
		return s.addDocument(ctx, owner, input)
	}

	// Clear the old default first so no read can see two defaults.
	if input.IsDefault {
		if err := s.relational.UnsetDefault(ctx, userID, 0); err != nil {
			return nil, fmt.Errorf("failed to unset default addresses: %w", err)
		}
	}

	address := &domain.Address{UserID: userID}
	applyAddressInput(address, input)
	saved, err := s.relational.Add(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to add address: %w", err)
	}

	return s.afterPrimaryWrite(ctx, "add", saved), nil
}

func (s *addressService) addDocument(ctx context.Context, owner string, input AddressInput) (*AddressDTO, error) {
	if input.IsDefault {
		if err := s.document.UnsetDefault(ctx, owner, ""); err != nil {
			return nil, fmt.Errorf("failed to unset default addresses: %w", err)
		}
	}

	address := &domain.AddressDocument{UserID: owner}
	applyAddressDocumentInput(address, input)
	saved, err := s.document.Add(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to add address: %w", err)
	}

	dto := addressFromDocument(saved)
	return &dto, nil
}

func (s *addressService) GetAll(ctx context.Context, owner string) ([]AddressDTO, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrOwnerRequired
	}

	userID, relationalOwner := domain.ParseRelationalID(owner)
	if !relationalOwner || s.policy.ReadsSecondary() {
		docs, err := s.document.GetByOwner(ctx, owner)
		if err != nil {
			return nil, err
		}
		out := make([]AddressDTO, 0, len(docs))
		for _, doc := range docs {
			out = append(out, addressFromDocument(doc))
		}
		return out, nil
	}

	addresses, err := s.relational.GetByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]AddressDTO, 0, len(addresses))
	for _, address := range addresses {
		out = append(out, addressFromRelational(address))
	}
	return out, nil
}

// ownedRelational loads an address and checks it belongs to userID. Another
// owner's address is reported as not found.
func (s *addressService) ownedRelational(ctx context.Context, userID int64, addressID string) (*domain.Address, error) {
	relID, ok := domain.ParseRelationalID(addressID)
	if !ok {
		resolved, err := s.mapper.ResolveRelationalID(ctx, domain.EntityAddress, addressID)
		if err != nil {
			if errors.Is(err, identity.ErrLinkNotFound) {
				return nil, repository.ErrAddressNotFound
			}
			return nil, fmt.Errorf("failed to resolve address id: %w", err)
		}
		relID = resolved
	}

	address, err := s.relational.GetByID(ctx, relID)
	if err != nil {
		return nil, err
	}
	if address.UserID != userID {
		return nil, repository.ErrAddressNotFound
	}
	return address, nil
}

func (s *addressService) ownedDocument(ctx context.Context, owner, addressID string) (*domain.AddressDocument, error) {
	address, err := s.document.GetByID(ctx, addressID)
	if err != nil {
		return nil, err
	}
	if address.UserID != owner {
		return nil, repository.ErrAddressNotFound
	}
	return address, nil
}

func (s *addressService) Update(ctx context.Context, owner, addressID string, input AddressInput) (*AddressDTO, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	userID, relationalOwner := domain.ParseRelationalID(owner)
	if !relationalOwner {
		return s.updateDocument(ctx, owner, addressID, input)
	}

	address, err := s.ownedRelational(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}

	if input.IsDefault {
		if err := s.relational.UnsetDefault(ctx, userID, address.ID); err != nil {
			return nil, fmt.Errorf("failed to unset default addresses: %w", err)
		}
	}

	applyAddressInput(address, input)
	if err := s.relational.Update(ctx, address); err != nil {
		return nil, fmt.Errorf("failed to update address: %w", err)
	}

	return s.afterPrimaryWrite(ctx, "update", address), nil
}

func (s *addressService) updateDocument(ctx context.Context, owner, addressID string, input AddressInput) (*AddressDTO, error) {
	address, err := s.ownedDocument(ctx, owner, addressID)
	if err != nil {
		return nil, err
	}

	if input.IsDefault {
		if err := s.document.UnsetDefault(ctx, owner, address.ID); err != nil {
			return nil, fmt.Errorf("failed to unset default addresses: %w", err)
		}
	}

	applyAddressDocumentInput(address, input)
	if err := s.document.Update(ctx, address); err != nil {
		return nil, fmt.Errorf("failed to update address: %w", err)
	}

	dto := addressFromDocument(address)
	return &dto, nil
}

func (s *addressService) Delete(ctx context.Context, owner, addressID string) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return ErrOwnerRequired
	}

	userID, relationalOwner := domain.ParseRelationalID(owner)
	if !relationalOwner {
		address, err := s.ownedDocument(ctx, owner, addressID)
		if err != nil {
			return err
		}
		deleted, err := s.document.Delete(ctx, address.ID)
		if err != nil {
			return fmt.Errorf("failed to delete address: %w", err)
		}
		if !deleted {
			return repository.ErrAddressNotFound
		}
		return nil
	}

	address, err := s.ownedRelational(ctx, userID, addressID)
	if err != nil {
		return err
	}
	deleted, err := s.relational.Delete(ctx, address.ID)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	if !deleted {
		return repository.ErrAddressNotFound
	}

	if !s.policy.WritesSecondary() {
		return nil
	}

	res := syncResult{relationalID: domain.FormatRelationalID(address.ID)}
	docID, err := s.mapper.ResolveDocumentID(ctx, domain.EntityAddress, address.ID)
	if err != nil {
		res.outcome, res.err = OutcomeSecondaryFailed, err
	} else {
		res.documentID = docID
		res.outcome, res.err = secondaryWrite(ctx, func(ctx context.Context) error {
			deleted, err := s.document.Delete(ctx, docID)
			if err != nil {
				return err
			}
			if !deleted {
				return errMissingDocument
			}
			return nil
		})
	}
	s.reporter.report(ctx, "delete", res)

	return nil
}

// afterPrimaryWrite mirrors the relational address and picks the DTO to
// return.
func (s *addressService) afterPrimaryWrite(ctx context.Context, operation string, address *domain.Address) *AddressDTO {
	dto := addressFromRelational(address)
	if !s.policy.WritesSecondary() {
		return &dto
	}

	doc, res := s.syncDocument(ctx, address)
	s.reporter.report(ctx, operation, res)

	if doc == nil {
		return &dto
	}
	if s.policy.ReadsSecondary() {
		docDTO := addressFromDocument(doc)
		docDTO.RelationalID = int64Ptr(address.ID)
		return &docDTO
	}
	dto.DocumentID = doc.ID
	return &dto
}

// syncDocument writes a snapshot of address into the document store,
// clearing other document defaults first when address is the default.
func (s *addressService) syncDocument(ctx context.Context, address *domain.Address) (*domain.AddressDocument, syncResult) {
	res := syncResult{relationalID: domain.FormatRelationalID(address.ID)}
	owner := domain.FormatRelationalID(address.UserID)

	docID, err := s.mapper.ResolveDocumentID(ctx, domain.EntityAddress, address.ID)
	if err != nil && !errors.Is(err, identity.ErrLinkNotFound) {
		res.outcome, res.err = OutcomeSecondaryFailed, err
		return nil, res
	}
	res.documentID = docID

	var doc *domain.AddressDocument
	res.outcome, res.err = secondaryWrite(ctx, func(ctx context.Context) error {
		if address.IsDefault {
			if err := s.document.UnsetDefault(ctx, owner, docID); err != nil {
				return err
			}
		}
		if docID != "" {
			doc = addressDocumentFrom(address, docID)
			return s.document.Update(ctx, doc)
		}
		var err error
		doc, err = s.document.Add(ctx, addressDocumentFrom(address, ""))
		return err
	})
	if res.outcome != OutcomeBothSucceeded {
		return nil, res
	}
	if docID != "" {
		return doc, res
	}

	res.documentID = doc.ID
	if err := s.mapper.Link(ctx, domain.EntityAddress, address.ID, doc.ID); err != nil {
		res.outcome, res.err = OutcomeLinkFailed, err
	}
	return doc, res
}
