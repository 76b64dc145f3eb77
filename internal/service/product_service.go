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

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductInput carries the writable product fields.
type ProductInput struct {
	Name           string
	Description    string
	Price          decimal.Decimal
	CategoryID     int64
	ImageURL       string
	StockQuantity  int
	Brand          string
	Rating         decimal.Decimal
	ReviewCount    int
	Specifications string
	// IsActive defaults to true on create and to the stored value on update.
	IsActive *bool
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrProductNameRequired
	}
	if in.Price.IsNegative() {
		return ErrNegativePrice
	}
	if in.StockQuantity < 0 {
		return ErrNegativeStock
	}
	if in.CategoryID <= 0 {
		return ErrCategoryRequired
	}
	return nil
}

// ProductService defines the product operations over both stores
type ProductService interface {
	GetAll(ctx context.Context) ([]ProductDTO, error)
	GetByID(ctx context.Context, id string) (*ProductDTO, error)
	Search(ctx context.Context, filter repository.ProductFilter) ([]ProductDTO, error)
	Create(ctx context.Context, input ProductInput) (*ProductDTO, error)
	Update(ctx context.Context, id string, input ProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, id string) (bool, error)
	CheckStockAvailability(ctx context.Context, id string, quantity int) (bool, error)
}

type productService struct {
	relational repository.RelationalProductStore
	document   repository.DocumentProductStore
	categories repository.CategoryStore
	mapper     identity.Mapper
	policy     routing.Policy
	logger     *zap.Logger
	reporter   reporter
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	relational repository.RelationalProductStore,
	document repository.DocumentProductStore,
	categories repository.CategoryStore,
	mapper identity.Mapper,
	policy routing.Policy,
	journal divergence.Journal,
	logger *zap.Logger,
) ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("product-service")
	return &productService{
		relational: relational,
		document:   document,
		categories: categories,
		mapper:     mapper,
		policy:     policy,
		logger:     logger,
		reporter:   newReporter(domain.EntityProduct, logger, journal),
	}
}

// relationalID resolves an opaque product id into the relational id space.
func (s *productService) relationalID(ctx context.Context, id string) (int64, error) {
	if relID, ok := domain.ParseRelationalID(id); ok {
		return relID, nil
	}
	relID, err := s.mapper.ResolveRelationalID(ctx, domain.EntityProduct, id)
	if err != nil {
		if errors.Is(err, identity.ErrLinkNotFound) {
			return 0, repository.ErrProductNotFound
		}
		return 0, fmt.Errorf("failed to resolve product id: %w", err)
	}
	return relID, nil
}

// documentID resolves an opaque product id into the document id space.
func (s *productService) documentID(ctx context.Context, id string) (string, error) {
	relID, ok := domain.ParseRelationalID(id)
	if !ok {
		return id, nil
	}
	docID, err := s.mapper.ResolveDocumentID(ctx, domain.EntityProduct, relID)
	if err != nil {
		if errors.Is(err, identity.ErrLinkNotFound) {
			return "", repository.ErrProductNotFound
		}
		return "", fmt.Errorf("failed to resolve product id: %w", err)
	}
	return docID, nil
}

func (s *productService) GetAll(ctx context.Context) ([]ProductDTO, error) {
	return s.Search(ctx, repository.ProductFilter{})
}

func (s *productService) Search(ctx context.Context, filter repository.ProductFilter) ([]ProductDTO, error) {
	if s.policy.ReadsSecondary() {
		docs, err := s.document.Search(ctx, filter)
		if err != nil {
			return nil, err
		}
		out := make([]ProductDTO, 0, len(docs))
		for _, doc := range docs {
			out = append(out, productFromDocument(doc))
		}
		return out, nil
	}

	products, err := s.relational.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]ProductDTO, 0, len(products))
	for _, product := range products {
		out = append(out, productFromRelational(product))
	}
	return out, nil
}

// GetByID reads from the authoritative store and fills in the counterpart id
// when a link exists.
func (s *productService) GetByID(ctx context.Context, id string) (*ProductDTO, error) {
	if s.policy.ReadsSecondary() {
		docID, err := s.documentID(ctx, id)
		if err != nil {
			return nil, err
		}
		doc, err := s.document.GetByID(ctx, docID)
		if err != nil {
			return nil, err
		}
		dto := productFromDocument(doc)
		if relID, err := s.mapper.ResolveRelationalID(ctx, domain.EntityProduct, doc.ID); err == nil {
			dto.RelationalID = int64Ptr(relID)
		}
		return &dto, nil
	}

	relID, err := s.relationalID(ctx, id)
	if err != nil {
		return nil, err
	}
	product, err := s.relational.GetByID(ctx, relID)
	if err != nil {
		return nil, err
	}
	dto := productFromRelational(product)
	if docID, err := s.mapper.ResolveDocumentID(ctx, domain.EntityProduct, product.ID); err == nil {
		dto.DocumentID = docID
	}
	return &dto, nil
}

func (s *productService) CheckStockAvailability(ctx context.Context, id string, quantity int) (bool, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return false, nil
		}
		return false, err
	}
	return product.IsActive && product.StockQuantity >= quantity, nil
}

func (s *productService) categoryName(ctx context.Context, categoryID int64) (string, error) {
	category, err := s.categories.FindByID(ctx, categoryID)
	if err != nil {
		return "", err
	}
	return category.Name, nil
}

func (s *productService) Create(ctx context.Context, input ProductInput) (*ProductDTO, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	categoryName, err := s.categoryName(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}

	product := &domain.Product{CategoryName: categoryName, IsActive: true}
	applyProductInput(product, input)

	saved, err := s.relational.Add(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	saved.CategoryName = categoryName

	dto := productFromRelational(saved)
	if !s.policy.WritesSecondary() {
		return &dto, nil
	}

	var doc *domain.ProductDocument
	res := syncResult{relationalID: dto.ID}
	res.outcome, res.err = secondaryWrite(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.document.Add(ctx, productDocumentFrom(saved, ""))
		return err
	})
	if res.outcome == OutcomeBothSucceeded {
		res.documentID = doc.ID
		if err := s.mapper.Link(ctx, domain.EntityProduct, saved.ID, doc.ID); err != nil {
			res.outcome, res.err = OutcomeLinkFailed, err
		}
	}
	s.reporter.report(ctx, "create", res)

	if doc == nil {
		return &dto, nil
	}
	if s.policy.ReadsSecondary() {
		docDTO := productFromDocument(doc)
		docDTO.RelationalID = int64Ptr(saved.ID)
		return &docDTO, nil
	}
	dto.DocumentID = doc.ID
	return &dto, nil
}

func applyProductInput(product *domain.Product, input ProductInput) {
	product.Name = strings.TrimSpace(input.Name)
	product.Description = input.Description
	product.Price = input.Price
	product.CategoryID = input.CategoryID
	product.ImageURL = input.ImageURL
	product.StockQuantity = input.StockQuantity
	product.Brand = input.Brand
	product.Rating = input.Rating
	product.ReviewCount = input.ReviewCount
	product.Specifications = input.Specifications
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
}

func (s *productService) Update(ctx context.Context, id string, input ProductInput) (*ProductDTO, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	relID, err := s.relationalID(ctx, id)
	if err != nil {
		return nil, err
	}
	product, err := s.relational.GetByID(ctx, relID)
	if err != nil {
		return nil, err
	}

	categoryName, err := s.categoryName(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}
	applyProductInput(product, input)
	product.CategoryName = categoryName

	if err := s.relational.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	dto := productFromRelational(product)
	if !s.policy.WritesSecondary() {
		return &dto, nil
	}

	doc, res := s.syncDocument(ctx, product)
	s.reporter.report(ctx, "update", res)

	if doc == nil {
		return &dto, nil
	}
	if s.policy.ReadsSecondary() {
		docDTO := productFromDocument(doc)
		docDTO.RelationalID = int64Ptr(product.ID)
		return &docDTO, nil
	}
	dto.DocumentID = doc.ID
	return &dto, nil
}

// syncDocument replaces the linked document with a snapshot of product. A
// product that was never mirrored gets a new document and link.
func (s *productService) syncDocument(ctx context.Context, product *domain.Product) (*domain.ProductDocument, syncResult) {
	res := syncResult{relationalID: domain.FormatRelationalID(product.ID)}

	docID, err := s.mapper.ResolveDocumentID(ctx, domain.EntityProduct, product.ID)
	if err != nil && !errors.Is(err, identity.ErrLinkNotFound) {
		res.outcome, res.err = OutcomeSecondaryFailed, err
		return nil, res
	}

	var doc *domain.ProductDocument
	if docID != "" {
		res.documentID = docID
		doc = productDocumentFrom(product, docID)
		res.outcome, res.err = secondaryWrite(ctx, func(ctx context.Context) error {
			return s.document.Update(ctx, doc)
		})
		if res.outcome != OutcomeBothSucceeded {
			return nil, res
		}
		return doc, res
	}

	res.outcome, res.err = secondaryWrite(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.document.Add(ctx, productDocumentFrom(product, ""))
		return err
	})
	if res.outcome != OutcomeBothSucceeded {
		return nil, res
	}
	res.documentID = doc.ID
	if err := s.mapper.Link(ctx, domain.EntityProduct, product.ID, doc.ID); err != nil {
		res.outcome, res.err = OutcomeLinkFailed, err
	}
	return doc, res
}

// Delete deactivates the product in the relational store and, best effort,
// in the document store.
func (s *productService) Delete(ctx context.Context, id string) (bool, error) {
	relID, err := s.relationalID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return false, nil
		}
		return false, err
	}

	found, err := s.relational.Delete(ctx, relID)
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	if !found || !s.policy.WritesSecondary() {
		return found, nil
	}

	res := syncResult{relationalID: domain.FormatRelationalID(relID)}
	docID, err := s.mapper.ResolveDocumentID(ctx, domain.EntityProduct, relID)
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

	return true, nil
}
