package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/divergence"
	"storefront/internal/domain"
	"storefront/internal/identity"
	"storefront/internal/repository"
	"storefront/internal/routing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService defines the cart operations. Every operation returns the cart
// as it stands afterwards; an owner without a cart has an empty one.
type CartService interface {
	GetCart(ctx context.Context, owner string) (*CartDTO, error)
	AddItem(ctx context.Context, owner, productID string, quantity int) (*CartDTO, error)
	UpdateQuantity(ctx context.Context, owner, productID string, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, owner, productID string) (*CartDTO, error)
	ClearCart(ctx context.Context, owner string) (*CartDTO, error)
}

type cartService struct {
	relational repository.RelationalCartStore
	document   repository.DocumentCartStore
	products   ProductService
	mapper     identity.Mapper
	policy     routing.Policy
	logger     *zap.Logger
	reporter   reporter
}

// NewCartService creates a new instance of CartService. Products are looked
// up through products, so they follow the product routing policy.
func NewCartService(
	relational repository.RelationalCartStore,
	document repository.DocumentCartStore,
	products ProductService,
	mapper identity.Mapper,
	policy routing.Policy,
	journal divergence.Journal,
	logger *zap.Logger,
) CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cart-service")
	return &cartService{
		relational: relational,
		document:   document,
		products:   products,
		mapper:     mapper,
		policy:     policy,
		logger:     logger,
		reporter:   newReporter(domain.EntityCart, logger, journal),
	}
}

// productRef identifies a product in both id spaces; either side may be
// unknown.
type productRef struct {
	relationalID int64
	documentID   string
}

// cartLine is a cart item independent of the store it came from.
type cartLine struct {
	product  productRef
	name     string
	price    decimal.Decimal
	brand    string
	imageURL string
	stock    int
	quantity int
	addedAt  time.Time
}

func (l cartLine) matches(ref productRef) bool {
	if ref.relationalID != 0 && l.product.relationalID == ref.relationalID {
		return true
	}
	return ref.documentID != "" && l.product.documentID == ref.documentID
}

func findLine(lines []cartLine, ref productRef) int {
	for i, line := range lines {
		if line.matches(ref) {
			return i
		}
	}
	return -1
}

func linesFromRelational(items []domain.CartItem) []cartLine {
	lines := make([]cartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, cartLine{
			product:  productRef{relationalID: item.ProductID},
			name:     item.ProductName,
			price:    item.Price,
			brand:    item.Brand,
			imageURL: item.ImageURL,
			stock:    item.StockQuantity,
			quantity: item.Quantity,
			addedAt:  item.AddedAt,
		})
	}
	return lines
}

func linesFromDocument(items []domain.CartItemDocument) []cartLine {
	lines := make([]cartLine, 0, len(items))
	for _, item := range items {
		ref := productRef{documentID: item.ProductID}
		if relID, ok := domain.ParseRelationalID(item.ProductID); ok {
			ref = productRef{relationalID: relID}
		}
		lines = append(lines, cartLine{
			product:  ref,
			name:     item.ProductName,
			price:    item.Price,
			brand:    item.Brand,
			imageURL: item.ImageURL,
			stock:    item.StockQuantity,
			quantity: item.Quantity,
			addedAt:  item.AddedAt,
		})
	}
	return lines
}

func relationalItems(lines []cartLine) []domain.CartItem {
	items := make([]domain.CartItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.CartItem{
			ProductID:     line.product.relationalID,
			ProductName:   line.name,
			Price:         line.price,
			Brand:         line.brand,
			ImageURL:      line.imageURL,
			StockQuantity: line.stock,
			Quantity:      line.quantity,
			AddedAt:       line.addedAt,
		})
	}
	return items
}

func documentItems(lines []cartLine) []domain.CartItemDocument {
	items := make([]domain.CartItemDocument, 0, len(lines))
	for _, line := range lines {
		productID := line.product.documentID
		if productID == "" {
			productID = domain.FormatRelationalID(line.product.relationalID)
		}
		items = append(items, domain.CartItemDocument{
			ProductID:     productID,
			ProductName:   line.name,
			Price:         line.price,
			Quantity:      line.quantity,
			ImageURL:      line.imageURL,
			Brand:         line.brand,
			StockQuantity: line.stock,
			AddedAt:       line.addedAt,
		})
	}
	return items
}

// refFor resolves a consumer supplied product id into both id spaces, as far
// as links exist.
func (s *cartService) refFor(ctx context.Context, productID string) productRef {
	if relID, ok := domain.ParseRelationalID(productID); ok {
		ref := productRef{relationalID: relID}
		if docID, err := s.mapper.ResolveDocumentID(ctx, domain.EntityProduct, relID); err == nil {
			ref.documentID = docID
		}
		return ref
	}
	ref := productRef{documentID: productID}
	if relID, err := s.mapper.ResolveRelationalID(ctx, domain.EntityProduct, productID); err == nil {
		ref.relationalID = relID
	}
	return ref
}

func (s *cartService) GetCart(ctx context.Context, owner string) (*CartDTO, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrOwnerRequired
	}

	userID, relationalOwner := domain.ParseRelationalID(owner)
	if !relationalOwner {
		doc, err := s.loadOrCreateDocument(ctx, owner)
		if err != nil {
			return nil, err
		}
		dto := cartFromDocument(doc)
		return &dto, nil
	}

	if s.policy.ReadsSecondary() {
		doc, err := s.document.GetByOwner(ctx, owner)
		if err == nil {
			dto := cartFromDocument(doc)
			return &dto, nil
		}
		if !errors.Is(err, repository.ErrCartNotFound) {
			return nil, err
		}
	}

	cart, created, err := s.loadOrCreateRelational(ctx, userID)
	if err != nil {
		return nil, err
	}
	if created {
		return s.afterPrimaryWrite(ctx, "create", cart), nil
	}
	if s.policy.ReadsSecondary() {
		// the document copy is missing although the relational cart exists
		return s.afterPrimaryWrite(ctx, "resync", cart), nil
	}
	dto := cartFromRelational(cart)
	return &dto, nil
}

func (s *cartService) AddItem(ctx context.Context, owner, productID string, quantity int) (*CartDTO, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if strings.TrimSpace(owner) == "" {
		return nil, ErrOwnerRequired
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, repository.ErrProductNotFound
	}

	ref := productRef{documentID: product.DocumentID}
	if product.RelationalID != nil {
		ref.relationalID = *product.RelationalID
	}
	if _, ok := domain.ParseRelationalID(owner); ok && ref.relationalID == 0 {
		// relational carts can only hold relational products
		return nil, repository.ErrProductNotFound
	}

	return s.mutate(ctx, owner, "add_item", true, func(ctx context.Context, lines []cartLine) ([]cartLine, error) {
		if i := findLine(lines, ref); i >= 0 {
			lines[i].quantity += quantity
			lines[i].stock = product.StockQuantity
			return lines, nil
		}
		return append(lines, cartLine{
			product:  ref,
			name:     product.Name,
			price:    product.Price,
			brand:    product.Brand,
			imageURL: product.ImageURL,
			stock:    product.StockQuantity,
			quantity: quantity,
			addedAt:  time.Now().UTC(),
		}), nil
	})
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line.
func (s *cartService) UpdateQuantity(ctx context.Context, owner, productID string, quantity int) (*CartDTO, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, owner, productID)
	}
	if strings.TrimSpace(owner) == "" {
		return nil, ErrOwnerRequired
	}

	ref := s.refFor(ctx, productID)
	return s.mutate(ctx, owner, "update_quantity", false, func(ctx context.Context, lines []cartLine) ([]cartLine, error) {
		i := findLine(lines, ref)
		if i < 0 {
			return nil, ErrCartItemNotFound
		}

		product, err := s.products.GetByID(ctx, productID)
		if err != nil {
			return nil, err
		}
		if !product.IsActive {
			return nil, repository.ErrProductNotFound
		}
		if quantity > product.StockQuantity {
			return nil, ErrInsufficientStock
		}

		lines[i].quantity = quantity
		lines[i].stock = product.StockQuantity
		return lines, nil
	})
}

func (s *cartService) RemoveItem(ctx context.Context, owner, productID string) (*CartDTO, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrOwnerRequired
	}

	ref := s.refFor(ctx, productID)
	return s.mutate(ctx, owner, "remove_item", false, func(ctx context.Context, lines []cartLine) ([]cartLine, error) {
		i := findLine(lines, ref)
		if i < 0 {
			return nil, ErrCartItemNotFound
		}
		return append(lines[:i], lines[i+1:]...), nil
	})
}

// ClearCart empties the cart but keeps the cart record.
func (s *cartService) ClearCart(ctx context.Context, owner string) (*CartDTO, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrOwnerRequired
	}

	return s.mutate(ctx, owner, "clear", false, func(ctx context.Context, lines []cartLine) ([]cartLine, error) {
		return []cartLine{}, nil
	})
}

type lineChange func(ctx context.Context, lines []cartLine) ([]cartLine, error)

// mutate applies change to the owner's cart in the primary store and mirrors
// the result. Without create, a missing cart is treated as empty and nothing
// is persisted.
func (s *cartService) mutate(ctx context.Context, owner, operation string, create bool, change lineChange) (*CartDTO, error) {
	owner = strings.TrimSpace(owner)

	userID, relationalOwner := domain.ParseRelationalID(owner)
	if !relationalOwner {
		return s.mutateDocument(ctx, owner, create, change)
	}

	var cart *domain.Cart
	var err error
	if create {
		cart, _, err = s.loadOrCreateRelational(ctx, userID)
	} else {
		cart, err = s.relational.GetByOwner(ctx, userID)
	}
	if errors.Is(err, repository.ErrCartNotFound) {
		if _, err := change(ctx, []cartLine{}); err != nil {
			return nil, err
		}
		dto := emptyCart(owner)
		return &dto, nil
	}
	if err != nil {
		return nil, err
	}

	lines, err := change(ctx, linesFromRelational(cart.Items))
	if err != nil {
		return nil, err
	}
	cart.Items = relationalItems(lines)

	if err := s.relational.Update(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to update cart: %w", err)
	}

	return s.afterPrimaryWrite(ctx, operation, cart), nil
}

// mutateDocument handles owners that only exist in the document store.
func (s *cartService) mutateDocument(ctx context.Context, owner string, create bool, change lineChange) (*CartDTO, error) {
	var doc *domain.CartDocument
	var err error
	if create {
		doc, err = s.loadOrCreateDocument(ctx, owner)
	} else {
		doc, err = s.document.GetByOwner(ctx, owner)
	}
	if errors.Is(err, repository.ErrCartNotFound) {
		if _, err := change(ctx, []cartLine{}); err != nil {
			return nil, err
		}
		dto := emptyCart(owner)
		return &dto, nil
	}
	if err != nil {
		return nil, err
	}

	lines, err := change(ctx, linesFromDocument(doc.Items))
	if err != nil {
		return nil, err
	}
	doc.Items = documentItems(lines)

	if err := s.document.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to update cart: %w", err)
	}

	dto := cartFromDocument(doc)
	return &dto, nil
}

func (s *cartService) loadOrCreateRelational(ctx context.Context, userID int64) (*domain.Cart, bool, error) {
	cart, err := s.relational.GetByOwner(ctx, userID)
	if err == nil {
		return cart, false, nil
	}
	if !errors.Is(err, repository.ErrCartNotFound) {
		return nil, false, err
	}

	cart, err = s.relational.Add(ctx, &domain.Cart{UserID: userID, Items: []domain.CartItem{}})
	if err != nil {
		// another request may have created it first
		if existing, getErr := s.relational.GetByOwner(ctx, userID); getErr == nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create cart: %w", err)
	}
	return cart, true, nil
}

func (s *cartService) loadOrCreateDocument(ctx context.Context, owner string) (*domain.CartDocument, error) {
	doc, err := s.document.GetByOwner(ctx, owner)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, repository.ErrCartNotFound) {
		return nil, err
	}

	doc, err = s.document.Add(ctx, &domain.CartDocument{UserID: owner, Items: []domain.CartItemDocument{}})
	if err != nil {
		if existing, getErr := s.document.GetByOwner(ctx, owner); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return doc, nil
}

// afterPrimaryWrite mirrors the relational cart when the policy asks for it
// and picks the DTO to return. It cannot fail.
func (s *cartService) afterPrimaryWrite(ctx context.Context, operation string, cart *domain.Cart) *CartDTO {
	dto := cartFromRelational(cart)
	if !s.policy.WritesSecondary() {
		return &dto
	}

	doc, res := s.syncDocument(ctx, cart)
	s.reporter.report(ctx, operation, res)

	if doc == nil {
		return &dto
	}
	if s.policy.ReadsSecondary() {
		docDTO := cartFromDocument(doc)
		docDTO.RelationalID = int64Ptr(cart.ID)
		return &docDTO
	}
	dto.DocumentID = doc.ID
	return &dto
}

// syncDocument replaces the owner's document cart with a snapshot of the
// relational cart. Product ids are written in the document id space where a
// link exists.
func (s *cartService) syncDocument(ctx context.Context, cart *domain.Cart) (*domain.CartDocument, syncResult) {
	res := syncResult{relationalID: domain.FormatRelationalID(cart.ID)}
	owner := domain.FormatRelationalID(cart.UserID)

	var doc *domain.CartDocument
	created := false
	res.outcome, res.err = secondaryWrite(ctx, func(ctx context.Context) error {
		lines := linesFromRelational(cart.Items)
		for i := range lines {
			if docID, err := s.mapper.ResolveDocumentID(ctx, domain.EntityProduct, lines[i].product.relationalID); err == nil {
				lines[i].product.documentID = docID
			}
		}
		items := documentItems(lines)

		existing, err := s.document.GetByOwner(ctx, owner)
		if errors.Is(err, repository.ErrCartNotFound) {
			doc, err = s.document.Add(ctx, &domain.CartDocument{
				UserID:    owner,
				Items:     items,
				CreatedAt: cart.CreatedAt,
			})
			created = err == nil
			return err
		}
		if err != nil {
			return err
		}

		existing.Items = items
		if err := s.document.Update(ctx, existing); err != nil {
			return err
		}
		doc = existing
		return nil
	})
	if res.outcome != OutcomeBothSucceeded {
		return nil, res
	}
	res.documentID = doc.ID

	if !created {
		_, err := s.mapper.ResolveDocumentID(ctx, domain.EntityCart, cart.ID)
		if err == nil {
			return doc, res
		}
		if !errors.Is(err, identity.ErrLinkNotFound) {
			res.outcome, res.err = OutcomeLinkFailed, err
			return doc, res
		}
	}
	if err := s.mapper.Link(ctx, domain.EntityCart, cart.ID, doc.ID); err != nil {
		res.outcome, res.err = OutcomeLinkFailed, err
	}
	return doc, res
}
