// Package account owns user records per tenant: sign-up with uniqueness
// enforcement, identifier lookups, detail updates, and removal. Passwords
// and MFA keys are stored only as one-way tokens.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/secureauth-ai/sentinel/internal/store"
	"github.com/secureauth-ai/sentinel/internal/tenant"
)

var ErrDuplicateIdentifier = errors.New("duplicate identifier")

type Service struct {
	store        store.Store
	tokenizer    Tokenizer
	log          *zap.Logger
	historyLimit int
	locks        *tenantLocks
}

func NewService(st store.Store, tok Tokenizer, log *zap.Logger, historyLimit int) *Service {
	return &Service{
		store:        st,
		tokenizer:    tok,
		log:          log,
		historyLimit: historyLimit,
		locks:        newTenantLocks(),
	}
}

type SignUpInput struct {
	Password          string
	Location          store.Location
	Device            string
	Details           map[string]string
	UniqueIdentifiers []string
	Timestamp         time.Time
}

// SignUp creates a user record and returns the initial MFA key in plaintext.
// The key is stored only as a one-way token and can never be retrieved
// again; the caller must persist it.
func (s *Service) SignUp(ctx context.Context, token string, in SignUpInput) (string, error) {
	unlock := s.locks.lock(token)
	defer unlock()

	for _, name := range in.UniqueIdentifiers {
		value, ok := in.Details[name]
		if !ok {
			return "", store.ErrUnknownColumn
		}
		_, err := s.store.FindByColumn(ctx, token, name, value)
		switch {
		case err == nil:
			return "", ErrDuplicateIdentifier
		case errors.Is(err, store.ErrNotFound):
			// identifier free
		default:
			return "", err
		}
	}

	passwordToken, err := s.tokenizer.Tokenize(in.Password)
	if err != nil {
		return "", err
	}

	mfaKey := uuid.NewString()
	mfaToken, err := s.tokenizer.Tokenize(mfaKey)
	if err != nil {
		return "", err
	}

	at := in.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	rec := &store.Record{
		PasswordToken: passwordToken,
		MFAKeyToken:   mfaToken,
		Custom:        in.Details,
	}
	if rec.Custom == nil {
		rec.Custom = map[string]string{}
	}
	// Sign-up seeds the history baselines; the first login cannot be
	// anomalous against itself.
	rec.AppendHistory(in.Location, in.Device, at, s.historyLimit)

	id, err := s.store.Insert(ctx, token, rec)
	if err != nil {
		return "", err
	}

	s.log.Info("user signed up",
		zap.String("tenant", token),
		zap.Int64("user_id", id))
	return mfaKey, nil
}

// GetByIdentifier returns the record whose column equals value exactly.
func (s *Service) GetByIdentifier(ctx context.Context, token, column, value string) (*store.Record, error) {
	return s.store.FindByColumn(ctx, token, column, value)
}

// GetAllDetails returns every record in the tenant table.
func (s *Service) GetAllDetails(ctx context.Context, token string) ([]*store.Record, error) {
	return s.store.All(ctx, token)
}

// UpdateDetails writes the given column/value pairs onto the record matched
// by (column, value). Default columns are rejected unless allowProtected is
// set; password writes are re-tokenized either way.
func (s *Service) UpdateDetails(ctx context.Context, token, column, value string, details map[string]string, allowProtected bool) error {
	if !allowProtected {
		for name := range details {
			// The password is writable without the override; it is
			// re-tokenized below, never stored raw.
			if name != "password" && tenant.IsProtected(name) {
				return tenant.ErrProtectedColumn
			}
		}
	}

	declared, err := s.store.CustomColumns(ctx, token)
	if err != nil {
		return err
	}
	isCustom := make(map[string]bool, len(declared))
	for _, c := range declared {
		isCustom[c] = true
	}

	rec, err := s.store.FindByColumn(ctx, token, column, value)
	if err != nil {
		return err
	}

	for name, v := range details {
		switch {
		case name == "password":
			tok, err := s.tokenizer.Tokenize(v)
			if err != nil {
				return err
			}
			rec.PasswordToken = tok
		case tenant.IsProtected(name):
			if err := s.setProtected(rec, name, v); err != nil {
				return err
			}
		case isCustom[name]:
			rec.Custom[name] = v
		default:
			return store.ErrUnknownColumn
		}
	}

	return s.store.Update(ctx, token, rec)
}

// setProtected applies an explicit override write to a default column.
// History sequences arrive JSON-encoded the same way the read side exposes
// them; the MFA key arrives in plaintext and is re-tokenized. The record id
// is never assignable.
func (s *Service) setProtected(rec *store.Record, name, value string) error {
	switch name {
	case "total_logins", "attempts", "all_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return tenant.ErrInvalidSchema
		}
		switch name {
		case "total_logins":
			rec.TotalLogins = n
		case "attempts":
			rec.Attempts = n
		case "all_attempts":
			rec.AllAttempts = n
		}
	case "pending_mfa":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return tenant.ErrInvalidSchema
		}
		rec.PendingMFA = b
	case "mfa_key":
		tok, err := s.tokenizer.Tokenize(value)
		if err != nil {
			return err
		}
		rec.MFAKeyToken = tok
	case "prev_locations":
		var locations []store.Location
		if err := json.Unmarshal([]byte(value), &locations); err != nil {
			return tenant.ErrInvalidSchema
		}
		rec.PrevLocations = locations
	case "prev_devices":
		var devices []string
		if err := json.Unmarshal([]byte(value), &devices); err != nil {
			return tenant.ErrInvalidSchema
		}
		rec.PrevDevices = devices
	case "prev_logins":
		var logins []time.Time
		if err := json.Unmarshal([]byte(value), &logins); err != nil {
			return tenant.ErrInvalidSchema
		}
		rec.PrevLogins = logins
	default:
		return tenant.ErrProtectedColumn
	}
	return nil
}

// RemoveUser deletes the record matched by (column, value).
func (s *Service) RemoveUser(ctx context.Context, token, column, value string) error {
	return s.store.Delete(ctx, token, column, value)
}
