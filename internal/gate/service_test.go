package gate

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/secureauth-ai/sentinel/internal/account"
	"github.com/secureauth-ai/sentinel/internal/config"
	"github.com/secureauth-ai/sentinel/internal/risk"
	"github.com/secureauth-ai/sentinel/internal/store"
	"github.com/secureauth-ai/sentinel/internal/store/memory"
)

const (
	testTenant   = "tenant-1"
	testPassword = "correct-horse"
	testDevice   = "firefox-linux"
)

var (
	london  = store.Location{Lat: 51.5074, Long: -0.1278}
	newYork = store.Location{Lat: 40.7128, Long: -74.0060}

	baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
)

type testEnv struct {
	store    *memory.Store
	accounts *account.Service
	gate     *Service
	mfaKey   string
}

func newTestEnv(t *testing.T, cfg *config.GateConfig) *testEnv {
	ctx := context.Background()
	log := zap.NewNop()

	st := memory.New()
	require.NoError(t, st.CreateTenant(ctx, testTenant, []string{"username"}))

	tok := &account.BcryptTokenizer{Cost: bcrypt.MinCost}
	cls, err := risk.LoadClassifier("", 0.5, log)
	require.NoError(t, err)

	accounts := account.NewService(st, tok, log, 50)
	mfaKey, err := accounts.SignUp(ctx, testTenant, account.SignUpInput{
		Password:          testPassword,
		Location:          london,
		Device:            testDevice,
		Details:           map[string]string{"username": "alice"},
		UniqueIdentifiers: []string{"username"},
		Timestamp:         baseTime,
	})
	require.NoError(t, err)

	return &testEnv{
		store:    st,
		accounts: accounts,
		gate:     NewService(st, tok, cls, cfg, log, 50),
		mfaKey:   mfaKey,
	}
}

func (e *testEnv) record(t *testing.T) *store.Record {
	rec, err := e.store.FindByColumn(context.Background(), testTenant, "username", "alice")
	require.NoError(t, err)
	return rec
}

func (e *testEnv) login(t *testing.T, password string, loc store.Location, device string, at time.Time) *Outcome {
	out, err := e.gate.Login(context.Background(), testTenant, LoginInput{
		Column:    "username",
		Value:     "alice",
		Password:  password,
		Location:  loc,
		Device:    device,
		Timestamp: at,
	})
	require.NoError(t, err)
	return out
}

func TestLoginKnownLocationAuthenticates(t *testing.T) {
	env := newTestEnv(t, &config.GateConfig{MaxAttempts: 5})

	out := env.login(t, testPassword, london, testDevice, baseTime.Add(24*time.Hour))

	assert.Equal(t, StateAuthenticated, out.State)
	assert.Less(t, out.Probability, 0.5)
	assert.Empty(t, out.Value)

	rec := env.record(t)
	assert.Equal(t, 1, rec.TotalLogins)
	assert.Equal(t, 0, rec.Attempts)
	assert.Equal(t, 1, rec.AllAttempts)
	assert.False(t, rec.PendingMFA)
	assert.Len(t, rec.PrevLocations, 2)
}

func TestLoginWrongPasswordRejected(t *testing.T) {
	env := newTestEnv(t, &config.GateConfig{MaxAttempts: 5})

	out := env.login(t, "nope", london, testDevice, baseTime.Add(time.Hour))

	assert.Equal(t, StateRejected, out.State)
	assert.Zero(t, out.Probability, "rejected attempts are never scored")

	rec := env.record(t)
	assert.Equal(t, 0, rec.TotalLogins)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, 1, rec.AllAttempts)
	assert.Len(t, rec.PrevLocations, 1, "failed attempts leave history untouched")
}

func TestLoginNewContinentRequiresMFA(t *testing.T) {
	env := newTestEnv(t, &config.GateConfig{MaxAttempts: 5})

	out := env.login(t, testPassword, london, testDevice, baseTime.Add(24*time.Hour))
	require.Equal(t, StateAuthenticated, out.State)

	out = env.login(t, testPassword, newYork, "unknown-device", baseTime.Add(25*time.Hour))

	assert.Equal(t, StateRequiresMFA, out.State)
	assert.Equal(t, "MFA", out.Value)
	assert.GreaterOrEqual(t, out.Probability, 0.5)

	rec := env.record(t)
	assert.True(t, rec.PendingMFA)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, 1, rec.TotalLogins, "step-up request is not a completed login")
	assert.Equal(t, 2, rec.AllAttempts)
	assert.Len(t, rec.PrevLocations, 3, "history reflects the attempt either way")
}

func TestVerifyMFARotatesKey(t *testing.T) {
	env := newTestEnv(t, &config.GateConfig{MaxAttempts: 5})
	ctx := context.Background()

	out := env.login(t, testPassword, newYork, "unknown-device", baseTime.Add(time.Hour))
	require.Equal(t, StateRequiresMFA, out.State)

	out, err := env.gate.VerifyMFA(ctx, testTenant, env.mfaKey, "username", "alice")
	require.NoError(t, err)

	assert.Equal(t, StateAuthenticated, out.State)
	assert.NotEmpty(t, out.Value)
	assert.NotEqual(t, env.mfaKey, out.Value, "key must rotate on use")

	rec := env.record(t)
	assert.Equal(t, 0, rec.Attempts)
	assert.Equal(t, 1, rec.TotalLogins)
	assert.False(t, rec.PendingMFA)

	// The old key is dead.
	old, err := env.gate.VerifyMFA(ctx, testTenant, env.mfaKey, "username", "alice")
	require.NoError(t, err)
	assert.Equal(t, StateRejected, old.State)

	// The rotated key works exactly once more, rotating again.
	next, err := env.gate.VerifyMFA(ctx, testTenant, out.Value, "username", "alice")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, next.State)
	assert.NotEqual(t, out.Value, next.Value)
}

func TestVerifyMFAWrongKeyRejected(t *testing.T) {
	env := newTestEnv(t, &config.GateConfig{MaxAttempts: 5})

	out, err := env.gate.VerifyMFA(context.Background(), testTenant, "not-the-key", "username", "alice")
	require.NoError(t, err)

	assert.Equal(t, StateRejected, out.State)
	assert.Equal(t, 1, env.record(t).Attempts)
}

func TestLoginMaxAttemptsForcesMFA(t *testing.T) {
	env := newTestEnv(t, &config.GateConfig{MaxAttempts: 3})
	ctx := context.Background()

	rec := env.record(t)
	rec.Attempts = 3
	require.NoError(t, env.store.Update(ctx, testTenant, rec))

	// Same place, same device: a low-risk profile that the attempt cap still
	// escalates.
	out := env.login(t, testPassword, london, testDevice, baseTime.Add(time.Hour))

	assert.Equal(t, StateRequiresMFA, out.State)
	assert.Less(t, out.Probability, 0.5)
	assert.True(t, env.record(t).PendingMFA)
}

func TestLoginUnknownUser(t *testing.T) {
	env := newTestEnv(t, &config.GateConfig{MaxAttempts: 5})

	_, err := env.gate.Login(context.Background(), testTenant, LoginInput{
		Column:   "username",
		Value:    "nobody",
		Password: testPassword,
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLoginSessionToken(t *testing.T) {
	secret := "test-secret"
	env := newTestEnv(t, &config.GateConfig{
		MaxAttempts:         5,
		SessionTokenEnabled: true,
		JWTSecret:           secret,
		TokenExpiration:     15 * time.Minute,
	})

	out := env.login(t, testPassword, london, testDevice, baseTime.Add(time.Hour))
	require.Equal(t, StateAuthenticated, out.State)
	require.NotEmpty(t, out.Value)

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(out.Value, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, testTenant, claims.Tenant)
	assert.Equal(t, "1", claims.Subject)
}

func TestLoginAllAttemptsMonotonic(t *testing.T) {
	env := newTestEnv(t, &config.GateConfig{MaxAttempts: 10})

	env.login(t, "nope", london, testDevice, baseTime.Add(time.Hour))
	env.login(t, testPassword, london, testDevice, baseTime.Add(2*time.Hour))
	env.login(t, "nope", london, testDevice, baseTime.Add(3*time.Hour))
	env.login(t, testPassword, newYork, "unknown-device", baseTime.Add(4*time.Hour))

	assert.Equal(t, 4, env.record(t).AllAttempts, "every attempt counts, whatever the outcome")
}
