// Package store defines the persistence collaborator contract for tenant
// user tables: per-tenant dynamic column sets, exact-match lookup by column,
// and whole-record writes. Implementations must keep schema mutations
// serialized per tenant; per-record write serialization is owned by the
// callers (see internal/gate).
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownTenant   = errors.New("unknown tenant")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrNotFound        = errors.New("record not found")
)

// Location is a (lat, long) pair asserted by the caller at sign-up or login.
type Location struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Record is one user row in a tenant table. History sequences are ordered
// oldest first and bounded by the store's history limit.
type Record struct {
	ID            int64
	PasswordToken string
	MFAKeyToken   string
	TotalLogins   int
	PrevLocations []Location
	PrevDevices   []string
	PrevLogins    []time.Time
	Attempts      int
	AllAttempts   int
	PendingMFA    bool
	Custom        map[string]string
}

// AppendHistory pushes a new observation onto the three history sequences,
// trimming the oldest entries once limit is exceeded. limit <= 0 means
// unbounded.
func (r *Record) AppendHistory(loc Location, device string, at time.Time, limit int) {
	r.PrevLocations = append(r.PrevLocations, loc)
	r.PrevDevices = append(r.PrevDevices, device)
	r.PrevLogins = append(r.PrevLogins, at)

	if limit > 0 {
		if n := len(r.PrevLocations); n > limit {
			r.PrevLocations = r.PrevLocations[n-limit:]
		}
		if n := len(r.PrevDevices); n > limit {
			r.PrevDevices = r.PrevDevices[n-limit:]
		}
		if n := len(r.PrevLogins); n > limit {
			r.PrevLogins = r.PrevLogins[n-limit:]
		}
	}
}

// Clone returns a deep copy so callers can mutate without aliasing store
// internals.
func (r *Record) Clone() *Record {
	cp := *r
	cp.PrevLocations = append([]Location(nil), r.PrevLocations...)
	cp.PrevDevices = append([]string(nil), r.PrevDevices...)
	cp.PrevLogins = append([]time.Time(nil), r.PrevLogins...)
	cp.Custom = make(map[string]string, len(r.Custom))
	for k, v := range r.Custom {
		cp.Custom[k] = v
	}
	return &cp
}

// Store is the durable row store behind the engine.
type Store interface {
	// CreateTenant allocates a tenant table with the default columns plus
	// the given custom columns.
	CreateTenant(ctx context.Context, token string, customColumns []string) error

	// AddColumn appends a custom column; existing rows get the empty string.
	AddColumn(ctx context.Context, token, name string) error

	// RemoveColumn drops a custom column and its values.
	RemoveColumn(ctx context.Context, token, name string) error

	// CustomColumns returns the tenant's declared custom columns in order.
	CustomColumns(ctx context.Context, token string) ([]string, error)

	// Insert stores a new record and returns its assigned id.
	Insert(ctx context.Context, token string, rec *Record) (int64, error)

	// FindByColumn returns the first record whose custom column equals
	// value exactly.
	FindByColumn(ctx context.Context, token, column, value string) (*Record, error)

	// FindByID returns the record with the given id.
	FindByID(ctx context.Context, token string, id int64) (*Record, error)

	// All returns every record in the tenant table.
	All(ctx context.Context, token string) ([]*Record, error)

	// Update overwrites the stored record identified by rec.ID.
	Update(ctx context.Context, token string, rec *Record) error

	// Delete removes the first record whose custom column equals value.
	Delete(ctx context.Context, token, column, value string) error
}
