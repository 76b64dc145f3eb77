package transport

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront/internal/divergence"
	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/routing"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "transport-secret"

type fakeProductService struct {
	products   map[string]service.ProductDTO
	lastInput  service.ProductInput
	lastFilter repository.ProductFilter
	stock      map[string]int
	err        error
}

func newFakeProductService() *fakeProductService {
	return &fakeProductService{
		products: make(map[string]service.ProductDTO),
		stock:    make(map[string]int),
	}
}

func (f *fakeProductService) GetAll(ctx context.Context) ([]service.ProductDTO, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]service.ProductDTO, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProductService) GetByID(ctx context.Context, id string) (*service.ProductDTO, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (f *fakeProductService) Search(ctx context.Context, filter repository.ProductFilter) ([]service.ProductDTO, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return []service.ProductDTO{}, nil
}

func (f *fakeProductService) Create(ctx context.Context, input service.ProductInput) (*service.ProductDTO, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	p := service.ProductDTO{
		ID:            fmt.Sprintf("%d", len(f.products)+1),
		Name:          input.Name,
		Price:         input.Price,
		CategoryID:    input.CategoryID,
		StockQuantity: input.StockQuantity,
		IsActive:      true,
	}
	f.products[p.ID] = p
	return &p, nil
}

func (f *fakeProductService) Update(ctx context.Context, id string, input service.ProductInput) (*service.ProductDTO, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	p.Name = input.Name
	p.Price = input.Price
	f.products[id] = p
	return &p, nil
}

func (f *fakeProductService) Delete(ctx context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return false, nil
	}
	p.IsActive = false
	f.products[id] = p
	return true, nil
}

func (f *fakeProductService) CheckStockAvailability(ctx context.Context, id string, quantity int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.stock[id] >= quantity, nil
}

// fakeCartService records the owner and arguments of the last call.
type fakeCartService struct {
	owner     string
	productID string
	quantity  int
	calls     []string
	err       error
}

func (f *fakeCartService) record(op, owner, productID string, quantity int) (*service.CartDTO, error) {
	f.calls = append(f.calls, op)
	f.owner, f.productID, f.quantity = owner, productID, quantity
	if f.err != nil {
		return nil, f.err
	}
	return &service.CartDTO{UserID: owner, Items: []service.CartItemDTO{}}, nil
}

func (f *fakeCartService) GetCart(ctx context.Context, owner string) (*service.CartDTO, error) {
	return f.record("get", owner, "", 0)
}

func (f *fakeCartService) AddItem(ctx context.Context, owner, productID string, quantity int) (*service.CartDTO, error) {
	return f.record("add", owner, productID, quantity)
}

func (f *fakeCartService) UpdateQuantity(ctx context.Context, owner, productID string, quantity int) (*service.CartDTO, error) {
	return f.record("update", owner, productID, quantity)
}

func (f *fakeCartService) RemoveItem(ctx context.Context, owner, productID string) (*service.CartDTO, error) {
	return f.record("remove", owner, productID, 0)
}

func (f *fakeCartService) ClearCart(ctx context.Context, owner string) (*service.CartDTO, error) {
	return f.record("clear", owner, "", 0)
}

type fakeAddressService struct {
	owner     string
	addressID string
	input     service.AddressInput
	err       error
}

func (f *fakeAddressService) Add(ctx context.Context, owner string, input service.AddressInput) (*service.AddressDTO, error) {
	f.owner, f.input = owner, input
	if f.err != nil {
		return nil, f.err
	}
	return &service.AddressDTO{ID: "1", UserID: owner, AddressLine1: input.AddressLine1, IsDefault: input.IsDefault}, nil
}

func (f *fakeAddressService) GetAll(ctx context.Context, owner string) ([]service.AddressDTO, error) {
	f.owner = owner
	if f.err != nil {
		return nil, f.err
	}
	return []service.AddressDTO{}, nil
}

func (f *fakeAddressService) Update(ctx context.Context, owner, addressID string, input service.AddressInput) (*service.AddressDTO, error) {
	f.owner, f.addressID, f.input = owner, addressID, input
	if f.err != nil {
		return nil, f.err
	}
	return &service.AddressDTO{ID: addressID, UserID: owner, AddressLine1: input.AddressLine1}, nil
}

func (f *fakeAddressService) Delete(ctx context.Context, owner, addressID string) error {
	f.owner, f.addressID = owner, addressID
	return f.err
}

// fakeLinkLister hands out its links newest first, like the PostgreSQL mapper.
type fakeLinkLister struct {
	links []domain.IdentityLink
	limit int64
	err   error
}

func (f *fakeLinkLister) Links(ctx context.Context, entity domain.EntityType, limit int64) ([]domain.IdentityLink, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.IdentityLink
	for i := len(f.links) - 1; i >= 0; i-- {
		if f.links[i].EntityType == entity && int64(len(out)) < limit {
			out = append(out, f.links[i])
		}
	}
	return out, nil
}

type testAPI struct {
	router    chi.Router
	products  *fakeProductService
	carts     *fakeCartService
	addresses *fakeAddressService
	links     *fakeLinkLister
}

// newTestAPI mounts every handler the way the server does, with real auth.
func newTestAPI(t *testing.T, policies *routing.Router, journal divergence.Journal) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	api := &testAPI{
		router:    chi.NewRouter(),
		products:  newFakeProductService(),
		carts:     &fakeCartService{},
		addresses: &fakeAddressService{},
		links:     &fakeLinkLister{},
	}
	if policies == nil {
		policies = routing.NewRouter(nil)
	}
	if journal == nil {
		journal = divergence.Nop{}
	}

	auth := middleware.AuthMiddleware(testSecret, logger)
	admin := middleware.RequireAdmin(logger)
	NewProductHandler(api.products, logger).RegisterRoutes(api.router, auth, admin)
	NewCartHandler(api.carts, logger).RegisterRoutes(api.router, auth)
	NewAddressHandler(api.addresses, logger).RegisterRoutes(api.router, auth)
	NewAdminHandler(policies, journal, api.links, logger).RegisterRoutes(api.router, auth, admin)
	return api
}

// do sends a request; owner may be an int64 or string claim, nil means
// anonymous.
func (api *testAPI) do(t *testing.T, method, path string, owner interface{}, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if owner != nil {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": owner,
			"role":    role,
			"exp":     time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}
