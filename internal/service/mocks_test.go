package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/divergence"
	"storefront/internal/domain"
	"storefront/internal/identity"
	"storefront/internal/repository"
)

// Mock repositories for testing. Every store hands out copies so the service
// cannot change stored state without going through the store.

type mockRelationalProductStore struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
	nextID   int64
	err      error
}

func newMockRelationalProductStore() *mockRelationalProductStore {
	return &mockRelationalProductStore{products: make(map[int64]*domain.Product)}
}

func (m *mockRelationalProductStore) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRelationalProductStore) GetAll(ctx context.Context) ([]*domain.Product, error) {
	return m.Search(ctx, repository.ProductFilter{})
}

func (m *mockRelationalProductStore) Search(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range m.products {
		if !p.IsActive {
			continue
		}
		if !matchesFilter(filter, p.Name, p.Description, p.Brand, p.CategoryID) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRelationalProductStore) Add(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.nextID++
	saved := *product
	saved.ID = m.nextID
	saved.CreatedAt = time.Now().UTC()
	saved.UpdatedAt = saved.CreatedAt
	stored := saved
	m.products[saved.ID] = &stored
	return &saved, nil
}

func (m *mockRelationalProductStore) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	product.UpdatedAt = time.Now().UTC()
	stored := *product
	m.products[product.ID] = &stored
	return nil
}

func (m *mockRelationalProductStore) Delete(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return false, nil
	}
	p.IsActive = false
	return true, nil
}

type mockDocumentProductStore struct {
	mu       sync.Mutex
	products map[string]*domain.ProductDocument
	nextID   int
	err      error
}

func newMockDocumentProductStore() *mockDocumentProductStore {
	return &mockDocumentProductStore{products: make(map[string]*domain.ProductDocument)}
}

func (m *mockDocumentProductStore) GetByID(ctx context.Context, id string) (*domain.ProductDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockDocumentProductStore) GetAll(ctx context.Context) ([]*domain.ProductDocument, error) {
	return m.Search(ctx, repository.ProductFilter{})
}

func (m *mockDocumentProductStore) Search(ctx context.Context, filter repository.ProductFilter) ([]*domain.ProductDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.ProductDocument{}
	for _, p := range m.products {
		if !p.IsActive {
			continue
		}
		if !matchesFilter(filter, p.Name, p.Description, p.Brand, p.Category.ID) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDocumentProductStore) Add(ctx context.Context, product *domain.ProductDocument) (*domain.ProductDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.nextID++
	saved := *product
	saved.ID = fmt.Sprintf("pdoc-%04d", m.nextID)
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}
	saved.UpdatedAt = time.Now().UTC()
	stored := saved
	m.products[saved.ID] = &stored
	return &saved, nil
}

func (m *mockDocumentProductStore) Update(ctx context.Context, product *domain.ProductDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	product.UpdatedAt = time.Now().UTC()
	stored := *product
	m.products[product.ID] = &stored
	return nil
}

func (m *mockDocumentProductStore) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return false, nil
	}
	p.IsActive = false
	return true, nil
}

func matchesFilter(filter repository.ProductFilter, name, description, brand string, categoryID int64) bool {
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		if !strings.Contains(strings.ToLower(name), q) &&
			!strings.Contains(strings.ToLower(description), q) &&
			!strings.Contains(strings.ToLower(brand), q) {
			return false
		}
	}
	if filter.CategoryID != nil && *filter.CategoryID != categoryID {
		return false
	}
	if filter.Brand != "" && filter.Brand != brand {
		return false
	}
	return true
}

type mockCategoryStore struct {
	categories map[int64]*domain.Category
}

func newMockCategoryStore(categories ...*domain.Category) *mockCategoryStore {
	m := &mockCategoryStore{categories: make(map[int64]*domain.Category)}
	for _, c := range categories {
		m.categories[c.ID] = c
	}
	return m
}

func (m *mockCategoryStore) Create(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	saved := *category
	saved.ID = int64(len(m.categories) + 1)
	m.categories[saved.ID] = &saved
	return &saved, nil
}

func (m *mockCategoryStore) List(ctx context.Context) ([]*domain.Category, error) {
	out := []*domain.Category{}
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCategoryStore) FindByID(ctx context.Context, id int64) (*domain.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return c, nil
}

type mockRelationalCartStore struct {
	mu     sync.Mutex
	carts  map[int64]*domain.Cart
	nextID int64
	calls  int
	err    error
}

func newMockRelationalCartStore() *mockRelationalCartStore {
	return &mockRelationalCartStore{carts: make(map[int64]*domain.Cart)}
}

func copyCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = append([]domain.CartItem{}, c.Items...)
	return &cp
}

func (m *mockRelationalCartStore) GetByID(ctx context.Context, id int64) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	c, ok := m.carts[id]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return copyCart(c), nil
}

func (m *mockRelationalCartStore) GetByOwner(ctx context.Context, userID int64) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, c := range m.carts {
		if c.UserID == userID {
			return copyCart(c), nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (m *mockRelationalCartStore) Add(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	m.nextID++
	saved := copyCart(cart)
	saved.ID = m.nextID
	saved.CreatedAt = time.Now().UTC()
	saved.UpdatedAt = saved.CreatedAt
	m.carts[saved.ID] = copyCart(saved)
	return saved, nil
}

func (m *mockRelationalCartStore) Update(ctx context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	if _, ok := m.carts[cart.ID]; !ok {
		return repository.ErrCartNotFound
	}
	cart.UpdatedAt = time.Now().UTC()
	m.carts[cart.ID] = copyCart(cart)
	return nil
}

func (m *mockRelationalCartStore) Delete(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	_, ok := m.carts[id]
	delete(m.carts, id)
	return ok, nil
}

type mockDocumentCartStore struct {
	mu     sync.Mutex
	carts  map[string]*domain.CartDocument
	nextID int
	err    error
}

func newMockDocumentCartStore() *mockDocumentCartStore {
	return &mockDocumentCartStore{carts: make(map[string]*domain.CartDocument)}
}

func copyCartDocument(c *domain.CartDocument) *domain.CartDocument {
	cp := *c
	cp.Items = append([]domain.CartItemDocument{}, c.Items...)
	return &cp
}

func (m *mockDocumentCartStore) GetByID(ctx context.Context, id string) (*domain.CartDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return copyCartDocument(c), nil
}

func (m *mockDocumentCartStore) GetByOwner(ctx context.Context, userID string) (*domain.CartDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, c := range m.carts {
		if c.UserID == userID && c.IsActive {
			return copyCartDocument(c), nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (m *mockDocumentCartStore) Add(ctx context.Context, cart *domain.CartDocument) (*domain.CartDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.nextID++
	saved := copyCartDocument(cart)
	saved.ID = fmt.Sprintf("cdoc-%04d", m.nextID)
	saved.IsActive = true
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}
	saved.UpdatedAt = time.Now().UTC()
	saved.Recalculate()
	m.carts[saved.ID] = copyCartDocument(saved)
	return saved, nil
}

func (m *mockDocumentCartStore) Update(ctx context.Context, cart *domain.CartDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.carts[cart.ID]; !ok {
		return repository.ErrCartNotFound
	}
	cart.UpdatedAt = time.Now().UTC()
	cart.Recalculate()
	m.carts[cart.ID] = copyCartDocument(cart)
	return nil
}

func (m *mockDocumentCartStore) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok || !c.IsActive {
		return false, nil
	}
	c.IsActive = false
	return true, nil
}

// The address mocks reject a second default per owner, like the partial
// unique indexes on both real stores.

type mockRelationalAddressStore struct {
	mu        sync.Mutex
	addresses map[int64]*domain.Address
	nextID    int64
	err       error
}

func newMockRelationalAddressStore() *mockRelationalAddressStore {
	return &mockRelationalAddressStore{addresses: make(map[int64]*domain.Address)}
}

func (m *mockRelationalAddressStore) otherDefault(userID, exceptID int64) bool {
	for _, a := range m.addresses {
		if a.UserID == userID && a.IsDefault && a.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *mockRelationalAddressStore) GetByID(ctx context.Context, id int64) (*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.addresses[id]
	if !ok {
		return nil, repository.ErrAddressNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRelationalAddressStore) GetByOwner(ctx context.Context, userID int64) ([]*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Address{}
	for _, a := range m.addresses {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockRelationalAddressStore) Add(ctx context.Context, address *domain.Address) (*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if address.IsDefault && m.otherDefault(address.UserID, 0) {
		return nil, repository.ErrDefaultAddressConflict
	}
	m.nextID++
	saved := *address
	saved.ID = m.nextID
	saved.CreatedAt = time.Now().UTC()
	saved.UpdatedAt = saved.CreatedAt
	stored := saved
	m.addresses[saved.ID] = &stored
	return &saved, nil
}

func (m *mockRelationalAddressStore) Update(ctx context.Context, address *domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.addresses[address.ID]; !ok {
		return repository.ErrAddressNotFound
	}
	if address.IsDefault && m.otherDefault(address.UserID, address.ID) {
		return repository.ErrDefaultAddressConflict
	}
	address.UpdatedAt = time.Now().UTC()
	stored := *address
	m.addresses[address.ID] = &stored
	return nil
}

func (m *mockRelationalAddressStore) Delete(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.addresses[id]
	delete(m.addresses, id)
	return ok, nil
}

func (m *mockRelationalAddressStore) UnsetDefault(ctx context.Context, userID int64, exceptID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, a := range m.addresses {
		if a.UserID == userID && a.ID != exceptID {
			a.IsDefault = false
		}
	}
	return nil
}

type mockDocumentAddressStore struct {
	mu        sync.Mutex
	addresses map[string]*domain.AddressDocument
	nextID    int
	err       error
}

func newMockDocumentAddressStore() *mockDocumentAddressStore {
	return &mockDocumentAddressStore{addresses: make(map[string]*domain.AddressDocument)}
}

func (m *mockDocumentAddressStore) otherDefault(userID, exceptID string) bool {
	for _, a := range m.addresses {
		if a.UserID == userID && a.IsDefault && a.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *mockDocumentAddressStore) GetByID(ctx context.Context, id string) (*domain.AddressDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.addresses[id]
	if !ok {
		return nil, repository.ErrAddressNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockDocumentAddressStore) GetByOwner(ctx context.Context, userID string) ([]*domain.AddressDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.AddressDocument{}
	for _, a := range m.addresses {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockDocumentAddressStore) Add(ctx context.Context, address *domain.AddressDocument) (*domain.AddressDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if address.IsDefault && m.otherDefault(address.UserID, "") {
		return nil, repository.ErrDefaultAddressConflict
	}
	m.nextID++
	saved := *address
	saved.ID = fmt.Sprintf("adoc-%04d", m.nextID)
	saved.CreatedAt = time.Now().UTC()
	saved.UpdatedAt = saved.CreatedAt
	stored := saved
	m.addresses[saved.ID] = &stored
	return &saved, nil
}

func (m *mockDocumentAddressStore) Update(ctx context.Context, address *domain.AddressDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.addresses[address.ID]; !ok {
		return repository.ErrAddressNotFound
	}
	if address.IsDefault && m.otherDefault(address.UserID, address.ID) {
		return repository.ErrDefaultAddressConflict
	}
	address.UpdatedAt = time.Now().UTC()
	stored := *address
	m.addresses[address.ID] = &stored
	return nil
}

func (m *mockDocumentAddressStore) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.addresses[id]
	delete(m.addresses, id)
	return ok, nil
}

func (m *mockDocumentAddressStore) UnsetDefault(ctx context.Context, userID string, exceptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, a := range m.addresses {
		if a.UserID == userID && a.ID != exceptID {
			a.IsDefault = false
		}
	}
	return nil
}

type recordingJournal struct {
	mu      sync.Mutex
	entries []divergence.Entry
}

func (j *recordingJournal) Record(ctx context.Context, entry divergence.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

func (j *recordingJournal) Recent(ctx context.Context, entity domain.EntityType, limit int64) ([]divergence.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := []divergence.Entry{}
	for i := len(j.entries) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if j.entries[i].Entity == entity {
			out = append(out, j.entries[i])
		}
	}
	return out, nil
}

func (j *recordingJournal) outcomes() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, 0, len(j.entries))
	for _, e := range j.entries {
		out = append(out, e.Outcome)
	}
	return out
}

type linkKey struct {
	entity       domain.EntityType
	relationalID int64
}

type docKey struct {
	entity     domain.EntityType
	documentID string
}

// memoryMapper follows the conflict rules of the PostgreSQL mapper.
type memoryMapper struct {
	mu         sync.RWMutex
	byRelation map[linkKey]string
	byDocument map[docKey]int64
}

var _ identity.Mapper = (*memoryMapper)(nil)

func newMemoryMapper() *memoryMapper {
	return &memoryMapper{
		byRelation: make(map[linkKey]string),
		byDocument: make(map[docKey]int64),
	}
}

func (m *memoryMapper) Link(ctx context.Context, entity domain.EntityType, relationalID int64, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byRelation[linkKey{entity, relationalID}]; ok {
		if existing == documentID {
			return nil
		}
		return identity.ErrLinkConflict
	}
	if _, ok := m.byDocument[docKey{entity, documentID}]; ok {
		return identity.ErrLinkConflict
	}

	m.byRelation[linkKey{entity, relationalID}] = documentID
	m.byDocument[docKey{entity, documentID}] = relationalID
	return nil
}

func (m *memoryMapper) ResolveDocumentID(ctx context.Context, entity domain.EntityType, relationalID int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	documentID, ok := m.byRelation[linkKey{entity, relationalID}]
	if !ok {
		return "", identity.ErrLinkNotFound
	}
	return documentID, nil
}

func (m *memoryMapper) ResolveRelationalID(ctx context.Context, entity domain.EntityType, documentID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	relationalID, ok := m.byDocument[docKey{entity, documentID}]
	if !ok {
		return 0, identity.ErrLinkNotFound
	}
	return relationalID, nil
}

func (m *memoryMapper) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byRelation)
}
