// Package gate orchestrates the login state machine: credential check, risk
// evaluation, the MFA requirement, and one-time MFA key rotation. It owns the
// attempt counters and history append path, and serializes all of it per
// user record.
package gate

import (
	"context"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/secureauth-ai/sentinel/internal/account"
	"github.com/secureauth-ai/sentinel/internal/api"
	"github.com/secureauth-ai/sentinel/internal/config"
	"github.com/secureauth-ai/sentinel/internal/risk"
	"github.com/secureauth-ai/sentinel/internal/store"
)

// State is the terminal outcome of a gate operation.
type State string

const (
	StateAuthenticated State = "AUTHENTICATED"
	StateRequiresMFA   State = "REQUIRES_MFA"
	StateRejected      State = "REJECTED"
)

// Outcome is surfaced to the caller for every login and MFA verification.
// Value carries "MFA" for step-up requests, the rotated MFA key after a
// successful verification, or a session token when enabled.
type Outcome struct {
	State       State
	Value       string
	Probability float64
	Message     string
}

type Service struct {
	store        store.Store
	tokenizer    account.Tokenizer
	classifier   *risk.Classifier
	config       *config.GateConfig
	log          *zap.Logger
	historyLimit int
	locks        *recordLocks
	now          func() time.Time
}

func NewService(st store.Store, tok account.Tokenizer, cls *risk.Classifier, cfg *config.GateConfig, log *zap.Logger, historyLimit int) *Service {
	return &Service{
		store:        st,
		tokenizer:    tok,
		classifier:   cls,
		config:       cfg,
		log:          log,
		historyLimit: historyLimit,
		locks:        newRecordLocks(),
		now:          time.Now,
	}
}

type LoginInput struct {
	Column    string
	Value     string
	Password  string
	Location  store.Location
	Device    string
	Timestamp time.Time
}

// Login evaluates one attempt. Password mismatch rejects immediately without
// scoring; a matching password flows through feature extraction, anomaly
// scoring and the classifier, and lands on AUTHENTICATED or REQUIRES_MFA.
func (s *Service) Login(ctx context.Context, token string, in LoginInput) (*Outcome, error) {
	rec, unlock, err := s.lockRecord(ctx, token, in.Column, in.Value)
	if err != nil {
		return nil, err
	}
	defer unlock()

	at := in.Timestamp
	if at.IsZero() {
		at = s.now().UTC()
	}

	if !s.tokenizer.Verify(in.Password, rec.PasswordToken) {
		rec.Attempts++
		rec.AllAttempts++
		if err := s.store.Update(ctx, token, rec); err != nil {
			return nil, err
		}
		return &Outcome{
			State:   StateRejected,
			Message: "invalid credentials",
		}, nil
	}

	attempt := risk.Attempt{Location: in.Location, Device: in.Device, At: at}
	vec := risk.CombinedVector(rec, attempt)

	unsafe, prob, err := s.classifier.Classify(vec)
	if err != nil {
		// Scoring failure degrades to requiring MFA rather than failing
		// the login.
		s.log.Error("risk scoring failed, requiring MFA",
			zap.String("tenant", token),
			zap.Int64("user_id", rec.ID),
			zap.Error(err))
		unsafe = true
	}

	if s.config.MaxAttempts > 0 && rec.Attempts >= s.config.MaxAttempts {
		unsafe = true
	}

	// History is appended on both outcomes so future scoring reflects this
	// attempt.
	rec.AppendHistory(in.Location, in.Device, at, s.historyLimit)
	rec.AllAttempts++

	if unsafe {
		rec.Attempts++
		rec.PendingMFA = true
		if err := s.store.Update(ctx, token, rec); err != nil {
			return nil, err
		}
		s.log.Info("login requires MFA",
			zap.String("tenant", token),
			zap.Int64("user_id", rec.ID),
			zap.Float64("probability_unsafe", prob))
		return &Outcome{
			State:       StateRequiresMFA,
			Value:       api.OutcomeMFA,
			Probability: prob,
			Message:     "MFA required, use verify_mfa",
		}, nil
	}

	rec.Attempts = 0
	rec.TotalLogins++
	// A safe login clears any pending MFA requirement; risk is re-evaluated
	// on every attempt.
	rec.PendingMFA = false
	if err := s.store.Update(ctx, token, rec); err != nil {
		return nil, err
	}

	value := ""
	if s.config.SessionTokenEnabled {
		value, err = s.sessionToken(token, rec.ID)
		if err != nil {
			return nil, err
		}
	}

	return &Outcome{
		State:       StateAuthenticated,
		Value:       value,
		Probability: prob,
		Message:     "user logged in",
	}, nil
}

// VerifyMFA checks the provided key against the stored token. A valid key
// authenticates, resets the attempt counter, and rotates the key: the
// replacement is returned in plaintext exactly once and the old key is
// invalid from here on.
func (s *Service) VerifyMFA(ctx context.Context, token, providedKey, column, value string) (*Outcome, error) {
	rec, unlock, err := s.lockRecord(ctx, token, column, value)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if rec.MFAKeyToken == "" || !s.tokenizer.Verify(providedKey, rec.MFAKeyToken) {
		rec.Attempts++
		if err := s.store.Update(ctx, token, rec); err != nil {
			return nil, err
		}
		return &Outcome{
			State:   StateRejected,
			Message: "MFA key incorrect",
		}, nil
	}

	newKey := uuid.NewString()
	newToken, err := s.tokenizer.Tokenize(newKey)
	if err != nil {
		return nil, err
	}

	rec.MFAKeyToken = newToken
	rec.Attempts = 0
	rec.TotalLogins++
	rec.PendingMFA = false
	if err := s.store.Update(ctx, token, rec); err != nil {
		return nil, err
	}

	s.log.Info("MFA key verified and rotated",
		zap.String("tenant", token),
		zap.Int64("user_id", rec.ID))

	return &Outcome{
		State:   StateAuthenticated,
		Value:   newKey,
		Message: "MFA key verified",
	}, nil
}

// lockRecord resolves the record by identifier, acquires its mutex, and
// re-reads under the lock so concurrent attempts never commit from a stale
// snapshot.
func (s *Service) lockRecord(ctx context.Context, token, column, value string) (*store.Record, func(), error) {
	rec, err := s.store.FindByColumn(ctx, token, column, value)
	if err != nil {
		return nil, nil, err
	}

	unlock := s.locks.lock(token, rec.ID)

	rec, err = s.store.FindByID(ctx, token, rec.ID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return rec, unlock, nil
}

type sessionClaims struct {
	Tenant string `json:"tenant"`
	jwt.RegisteredClaims
}

func (s *Service) sessionToken(tenantToken string, id int64) (string, error) {
	expirationTime := s.now().Add(s.config.TokenExpiration)
	claims := &sessionClaims{
		Tenant: tenantToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id, 10),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}
