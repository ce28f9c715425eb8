package resources

import (
	"net/http"
	"strings"
	"time"

	"github.com/artpar/skybite/internal/core/auth"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/manyminds/api2go"
)

// =============================================================================
// Address JSON:API Model
// =============================================================================

// Address wraps a customer's address book entry.
type Address struct {
	ID         string          `json:"-"`
	CustomerID string          `json:"customer_id"`
	Label      string          `json:"label"`
	Line       string          `json:"line"`
	Location   domain.GeoPoint `json:"location"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (a Address) GetID() string { return a.ID }

func (a *Address) SetID(id string) error {
	a.ID = id
	return nil
}

func (a Address) GetName() string { return "addresses" }

// AddressFromDomain converts a domain.Address.
func AddressFromDomain(a *domain.Address) Address {
	return Address{
		ID:         a.ID,
		CustomerID: a.CustomerID,
		Label:      a.Label,
		Line:       a.Line,
		Location:   a.Location,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// =============================================================================
// AddressResource - CRUD Operations
// =============================================================================

// AddressResource serves the caller's own address book. Entries of other
// customers are reported as not found.
type AddressResource struct {
	Store store.Store
}

// NewAddressResource creates a new address resource handler.
func NewAddressResource(s store.Store) *AddressResource {
	return &AddressResource{Store: s}
}

func (r AddressResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)
	if !authCtx.Authenticated {
		return fail(auth.ErrUnauthenticated)
	}

	opts := ListOptionsFrom(req)
	addresses, err := r.Store.ListAddressesByCustomer(ctx, authCtx.UserID, opts)
	if err != nil {
		return fail(err)
	}
	result := make([]Address, 0, len(addresses))
	for i := range addresses {
		result = append(result, AddressFromDomain(&addresses[i]))
	}
	return &Response{Code: http.StatusOK, Res: result, Meta: listMeta(len(result), opts)}, nil
}

func (r AddressResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	a, err := r.owned(req, id)
	if err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: AddressFromDomain(a)}, nil
}

func (r AddressResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)
	if !authCtx.Authenticated {
		return fail(auth.ErrUnauthenticated)
	}
	in, ok := obj.(Address)
	if !ok {
		return invalidBody()
	}

	a, err := domain.NewAddress(authCtx.UserID, in.Label, in.Line, in.Location)
	if err != nil {
		return fail(err)
	}
	if err := r.Store.CreateAddress(ctx, a); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusCreated, Res: AddressFromDomain(a)}, nil
}

func (r AddressResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	ctx := req.PlainRequest.Context()
	in, ok := obj.(Address)
	if !ok {
		return invalidBody()
	}
	existing, err := r.owned(req, in.ID)
	if err != nil {
		return fail(err)
	}

	line := strings.TrimSpace(in.Line)
	if line == "" {
		return fail(domain.NewValidationError("line", "line is required"))
	}
	if !in.Location.Valid() {
		return fail(domain.NewValidationError("location", "location is out of range"))
	}
	existing.Label = strings.TrimSpace(in.Label)
	existing.Line = line
	existing.Location = in.Location
	existing.UpdatedAt = time.Now().UTC()

	if err := r.Store.UpdateAddress(ctx, existing); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusOK, Res: AddressFromDomain(existing)}, nil
}

func (r AddressResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	if _, err := r.owned(req, id); err != nil {
		return fail(err)
	}
	if err := r.Store.DeleteAddress(req.PlainRequest.Context(), id); err != nil {
		return fail(err)
	}
	return &Response{Code: http.StatusNoContent}, nil
}

func (r AddressResource) owned(req api2go.Request, id string) (*domain.Address, error) {
	ctx := req.PlainRequest.Context()
	authCtx := auth.FromContext(ctx)
	if !authCtx.Authenticated {
		return nil, auth.ErrUnauthenticated
	}
	a, err := r.Store.GetAddress(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanManageAddress(authCtx, *a) {
		return nil, store.NewStoreError("GetAddress", "address", id, "address not found", store.ErrNotFound)
	}
	return a, nil
}
