package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophtoken/internal/common"
	"github.com/dmitrijs2005/gophtoken/internal/cryptox"
	"github.com/dmitrijs2005/gophtoken/internal/dbx"
	"github.com/dmitrijs2005/gophtoken/internal/logging"
	"github.com/dmitrijs2005/gophtoken/internal/server/auth"
	"github.com/dmitrijs2005/gophtoken/internal/server/config"
	"github.com/dmitrijs2005/gophtoken/internal/server/models"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

var signingKey = sync.OnceValue(func() *rsa.PrivateKey {
	k, err := rsa.GenerateKey(rand.Reader, auth.DevKeyBits)
	if err != nil {
		panic(err)
	}
	return k
})

var start = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 30 * 24 * time.Hour,
		ReuseGracePeriod:             60 * time.Second,
	}
}

func newIssuer(t *testing.T) *auth.Issuer {
	t.Helper()
	iss, err := auth.NewIssuer(signingKey(), auth.IssuerConfig{
		Issuer: "gophtoken", Audience: "gophtoken-api", KeyID: "test", Validity: time.Hour,
	})
	require.NoError(t, err)
	return iss
}

type fixture struct {
	svc    *TokenService
	m      *repomanager.MemoryRepositoryManager
	clock  *fakeClock
	issuer *auth.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := repomanager.NewMemoryRepositoryManager()
	_, err := SeedDemoUsers(context.Background(), nil, m, start)
	require.NoError(t, err)

	clock := &fakeClock{t: start}
	iss := newIssuer(t)
	svc := NewTokenService(nil, m, iss, testConfig(), discardLogger())
	svc.now = clock.now
	return &fixture{svc: svc, m: m, clock: clock, issuer: iss}
}

func (f *fixture) record(t *testing.T, raw string) *models.RefreshToken {
	t.Helper()
	rec, err := f.m.RefreshTokens(nil).FindByDigest(context.Background(), cryptox.Digest(raw))
	require.NoError(t, err)
	return rec
}

func (f *fixture) issue(t *testing.T, principal string) *TokenPair {
	t.Helper()
	pair, err := f.svc.Issue(context.Background(), common.GrantTypeWindowsIdentity, principal)
	require.NoError(t, err)
	return pair
}

// spyManager counts repository lookups.
type spyManager struct {
	repomanager.RepositoryManager
	calls int
}

func (m *spyManager) Users(db dbx.DBTX) users.Repository {
	m.calls++
	return m.RepositoryManager.Users(db)
}

func (m *spyManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	m.calls++
	return m.RepositoryManager.RefreshTokens(db)
}

// tokenStoreManager serves users from memory and tokens from repo.
type tokenStoreManager struct {
	*repomanager.MemoryRepositoryManager
	repo refreshtokens.Repository
}

func (m *tokenStoreManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.repo }

type failingTokens struct {
	refreshtokens.Repository
	findErr   error
	createErr error
}

func (f *failingTokens) FindByDigest(ctx context.Context, digest string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Repository.FindByDigest(ctx, digest)
}

func (f *failingTokens) Create(ctx context.Context, t *models.RefreshToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.Repository.Create(ctx, t)
}

// --- issue ---

func TestIssue_Success(t *testing.T) {
	f := newFixture(t)

	pair := f.issue(t, "jeff.wang")

	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(3600), pair.ExpiresIn)
	assert.Equal(t, "orders.read orders.write", pair.Scope)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	rec := f.record(t, pair.RefreshToken)
	jeff, err := f.m.Users(nil).GetByUsername(context.Background(), "jeff.wang")
	require.NoError(t, err)
	assert.Equal(t, jeff.ID, rec.UserID)
	assert.True(t, rec.CreatedAt.Equal(start))
	assert.True(t, rec.ExpiresAt.Equal(start.Add(30*24*time.Hour)))
	assert.False(t, rec.Revoked)
	assert.Nil(t, rec.RevokedAt)
	assert.Empty(t, rec.ReplacedBy)
	assert.NotEqual(t, pair.RefreshToken, rec.TokenDigest)

	claims, err := f.issuer.Parse(pair.AccessToken, start)
	require.NoError(t, err)
	assert.Equal(t, "jeff.wang", claims.Subject)
}

func TestIssue_NormalizesPrincipal(t *testing.T) {
	f := newFixture(t)

	pair := f.issue(t, "  CORP\\Alice.Chen ")
	assert.Equal(t, "orders.read", pair.Scope)
}

func TestIssue_UnsupportedGrantTypeTouchesNothing(t *testing.T) {
	spy := &spyManager{RepositoryManager: repomanager.NewMemoryRepositoryManager()}
	svc := NewTokenService(nil, spy, newIssuer(t), testConfig(), discardLogger())

	_, err := svc.Issue(context.Background(), "password", "jeff.wang")
	require.ErrorIs(t, err, common.ErrUnsupportedGrantType)
	assert.Zero(t, spy.calls)
}

func TestIssue_InvalidIdentity(t *testing.T) {
	f := newFixture(t)

	for _, principal := range []string{"", "   ", "CORP\\", "CORP\\  "} {
		_, err := f.svc.Issue(context.Background(), common.GrantTypeWindowsIdentity, principal)
		assert.ErrorIs(t, err, common.ErrInvalidIdentity, "principal %q", principal)
	}
}

func TestIssue_UnknownOrInactiveUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Users(nil).Create(context.Background(), &models.User{
		UserName: "gone.user", AuthType: models.AuthTypeWindows, IsActive: false,
	})
	require.NoError(t, err)

	_, err = f.svc.Issue(context.Background(), common.GrantTypeWindowsIdentity, "nobody")
	require.ErrorIs(t, err, common.ErrUserNotFound)

	_, err = f.svc.Issue(context.Background(), common.GrantTypeWindowsIdentity, "gone.user")
	require.ErrorIs(t, err, common.ErrUserNotFound)
	assert.Equal(t, 0, f.m.RefreshTokens(nil).(*refreshtokens.MemoryRepository).Len())
}

func TestIssueInitial_StoreError(t *testing.T) {
	m := repomanager.NewMemoryRepositoryManager()
	tokens := &failingTokens{Repository: refreshtokens.NewMemoryRepository(), createErr: errors.New("disk full")}
	svc := NewTokenService(nil, &tokenStoreManager{MemoryRepositoryManager: m, repo: tokens}, newIssuer(t), testConfig(), discardLogger())

	_, err := svc.IssueInitial(context.Background(), &models.User{ID: "u1", UserName: "x", IsActive: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

// --- rotate ---

func TestRotate_Success(t *testing.T) {
	f := newFixture(t)
	first := f.issue(t, "jeff.wang")

	f.clock.advance(10 * time.Minute)
	second, err := f.svc.Rotate(context.Background(), first.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, "orders.read orders.write", second.Scope)

	old := f.record(t, first.RefreshToken)
	succ := f.record(t, second.RefreshToken)
	assert.True(t, old.Revoked)
	assert.True(t, old.RevokedAt.Equal(start.Add(10*time.Minute)))
	assert.Equal(t, succ.ID, old.ReplacedBy)
	assert.True(t, old.ExpiresAt.Equal(start.Add(30*24*time.Hour)), "expiry is never extended")

	assert.False(t, succ.Revoked)
	assert.Equal(t, old.UserID, succ.UserID)
	assert.True(t, succ.ExpiresAt.Equal(start.Add(10*time.Minute+30*24*time.Hour)))
}

func TestRotate_UnknownOrEmpty(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Rotate(context.Background(), "not-a-token")
	require.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = f.svc.Rotate(context.Background(), "  ")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestRotate_ExpiredLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t)
	pair := f.issue(t, "jeff.wang")
	before := f.record(t, pair.RefreshToken)

	f.clock.advance(30*24*time.Hour + time.Second)
	_, err := f.svc.Rotate(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, common.ErrTokenExpired)

	after := f.record(t, pair.RefreshToken)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, f.m.RefreshTokens(nil).(*refreshtokens.MemoryRepository).Len())
}

func TestRotate_AtExpiryInstantIsAccepted(t *testing.T) {
	f := newFixture(t)
	pair := f.issue(t, "jeff.wang")

	f.clock.advance(30 * 24 * time.Hour)
	_, err := f.svc.Rotate(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
}

func TestRotate_ReuseAfterGraceRevokesFamily(t *testing.T) {
	f := newFixture(t)
	first := f.issue(t, "jeff.wang")
	other := f.issue(t, "jeff.wang")
	alice := f.issue(t, "alice.chen")

	second, err := f.svc.Rotate(context.Background(), first.RefreshToken)
	require.NoError(t, err)

	f.clock.advance(61 * time.Second)
	_, err = f.svc.Rotate(context.Background(), first.RefreshToken)
	require.ErrorIs(t, err, common.ErrTokenReuseDetected)

	assert.True(t, f.record(t, second.RefreshToken).Revoked)
	assert.True(t, f.record(t, other.RefreshToken).Revoked)
	assert.False(t, f.record(t, alice.RefreshToken).Revoked)
	assert.True(t, f.record(t, first.RefreshToken).RevokedAt.Equal(start), "first revocation time is kept")
}

func TestRotate_ExpiredAndReplayedIsReuse(t *testing.T) {
	f := newFixture(t)
	first := f.issue(t, "jeff.wang")
	_, err := f.svc.Rotate(context.Background(), first.RefreshToken)
	require.NoError(t, err)

	f.clock.advance(31 * 24 * time.Hour)
	_, err = f.svc.Rotate(context.Background(), first.RefreshToken)
	require.ErrorIs(t, err, common.ErrTokenReuseDetected)
}

func TestRotate_GraceRetrySupersedesPreviousSuccessor(t *testing.T) {
	f := newFixture(t)
	first := f.issue(t, "jeff.wang")

	second, err := f.svc.Rotate(context.Background(), first.RefreshToken)
	require.NoError(t, err)

	f.clock.advance(60 * time.Second)
	third, err := f.svc.Rotate(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, second.RefreshToken, third.RefreshToken)

	orig := f.record(t, first.RefreshToken)
	prev := f.record(t, second.RefreshToken)
	next := f.record(t, third.RefreshToken)

	assert.True(t, orig.RevokedAt.Equal(start))
	assert.Equal(t, next.ID, orig.ReplacedBy)
	assert.True(t, prev.Revoked)
	assert.True(t, prev.RevokedAt.Equal(start.Add(60*time.Second)))
	assert.False(t, next.Revoked)
}

func TestRotate_RevokedWithoutSuccessorIsReuse(t *testing.T) {
	f := newFixture(t)
	pair := f.issue(t, "jeff.wang")
	other := f.issue(t, "jeff.wang")

	rec := f.record(t, pair.RefreshToken)
	_, err := f.m.RefreshTokens(nil).Revoke(context.Background(), rec.ID, start)
	require.NoError(t, err)

	_, err = f.svc.Rotate(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, common.ErrTokenReuseDetected)
	assert.True(t, f.record(t, other.RefreshToken).Revoked)
}

func TestRotate_GraceRetryAfterSuccessorUsedIsReuse(t *testing.T) {
	f := newFixture(t)
	first := f.issue(t, "jeff.wang")

	second, err := f.svc.Rotate(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	f.clock.advance(5 * time.Second)
	third, err := f.svc.Rotate(context.Background(), second.RefreshToken)
	require.NoError(t, err)

	f.clock.advance(5 * time.Second)
	_, err = f.svc.Rotate(context.Background(), first.RefreshToken)
	require.ErrorIs(t, err, common.ErrTokenReuseDetected)
	assert.True(t, f.record(t, third.RefreshToken).Revoked)
}

func TestRotate_InactiveUserAfterRevoke(t *testing.T) {
	m := repomanager.NewMemoryRepositoryManager()
	u, err := m.Users(nil).Create(context.Background(), &models.User{UserName: "temp", IsActive: false})
	require.NoError(t, err)

	svc := NewTokenService(nil, m, newIssuer(t), testConfig(), discardLogger())
	svc.now = (&fakeClock{t: start}).now

	pair, err := svc.IssueInitial(context.Background(), u)
	require.NoError(t, err)

	_, err = svc.Rotate(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, common.ErrUserNotFound)

	rec, err := m.RefreshTokens(nil).FindByDigest(context.Background(), cryptox.Digest(pair.RefreshToken))
	require.NoError(t, err)
	assert.True(t, rec.Revoked)
}

func TestRotate_StoreErrorIsNotInvalidToken(t *testing.T) {
	m := repomanager.NewMemoryRepositoryManager()
	tokens := &failingTokens{Repository: refreshtokens.NewMemoryRepository(), findErr: context.DeadlineExceeded}
	svc := NewTokenService(nil, &tokenStoreManager{MemoryRepositoryManager: m, repo: tokens}, newIssuer(t), testConfig(), discardLogger())

	_, err := svc.Rotate(context.Background(), "whatever")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, common.ErrInvalidToken)
}

func TestRotate_IssuerError(t *testing.T) {
	f := newFixture(t)
	pair := f.issue(t, "jeff.wang")
	f.svc.issuer = failingIssuer{}

	_, err := f.svc.Rotate(context.Background(), pair.RefreshToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error issuing access token")
}

type failingIssuer struct{}

func (failingIssuer) Issue(*models.User, time.Time) (string, error) { return "", errors.New("hsm offline") }
func (failingIssuer) Validity() time.Duration                       { return time.Hour }

// Scenario from the product description, driven by a simulated clock.
func TestRotate_JeffWangScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.issue(t, "jeff.wang")
	assert.Equal(t, "orders.read orders.write", first.Scope)

	second, err := f.svc.Rotate(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.True(t, f.record(t, first.RefreshToken).Revoked)

	claims, err := f.issuer.Parse(second.AccessToken, f.clock.now())
	require.NoError(t, err)
	assert.Equal(t, "jeff.wang", claims.Subject)

	f.clock.advance(61 * time.Second)
	_, err = f.svc.Rotate(ctx, first.RefreshToken)
	require.ErrorIs(t, err, common.ErrTokenReuseDetected)

	assert.True(t, f.record(t, second.RefreshToken).Revoked)
	_, err = f.svc.Rotate(ctx, second.RefreshToken)
	require.ErrorIs(t, err, common.ErrTokenReuseDetected)
}

// barrierTokens holds every FindByDigest until n callers have read.
type barrierTokens struct {
	refreshtokens.Repository
	wg *sync.WaitGroup
}

func (b *barrierTokens) FindByDigest(ctx context.Context, digest string) (*models.RefreshToken, error) {
	t, err := b.Repository.FindByDigest(ctx, digest)
	b.wg.Done()
	b.wg.Wait()
	return t, err
}

func TestRotate_ConcurrentExactlyOneWins(t *testing.T) {
	m := repomanager.NewMemoryRepositoryManager()
	_, err := SeedDemoUsers(context.Background(), nil, m, start)
	require.NoError(t, err)

	plain := NewTokenService(nil, m, newIssuer(t), testConfig(), discardLogger())
	pair, err := plain.Issue(context.Background(), common.GrantTypeWindowsIdentity, "jeff.wang")
	require.NoError(t, err)

	var barrier sync.WaitGroup
	barrier.Add(2)
	racing := &tokenStoreManager{
		MemoryRepositoryManager: m,
		repo:                    &barrierTokens{Repository: m.RefreshTokens(nil), wg: &barrier},
	}
	svc := NewTokenService(nil, racing, newIssuer(t), testConfig(), discardLogger())

	var (
		wg      sync.WaitGroup
		results [2]error
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Rotate(context.Background(), pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, common.ErrConcurrentModification):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 2, m.RefreshTokens(nil).(*refreshtokens.MemoryRepository).Len())
}

// flakyUsers fails GetByID while err is set.
type flakyUsers struct {
	users.Repository
	err error
}

func (u *flakyUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u.err != nil {
		return nil, u.err
	}
	return u.Repository.GetByID(ctx, id)
}

// partialManager serves tokens from repo and users through a flakyUsers.
type partialManager struct {
	*repomanager.MemoryRepositoryManager
	repo refreshtokens.Repository
	dir  *flakyUsers
}

func (m *partialManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.repo }

func (m *partialManager) Users(dbx.DBTX) users.Repository { return m.dir }

func newPartialFixture(t *testing.T) (*TokenService, *fakeClock, *failingTokens, *flakyUsers) {
	t.Helper()
	m := repomanager.NewMemoryRepositoryManager()
	_, err := SeedDemoUsers(context.Background(), nil, m, start)
	require.NoError(t, err)

	tokens := &failingTokens{Repository: refreshtokens.NewMemoryRepository()}
	dir := &flakyUsers{Repository: m.Users(nil)}
	clock := &fakeClock{t: start}
	svc := NewTokenService(nil, &partialManager{MemoryRepositoryManager: m, repo: tokens, dir: dir}, newIssuer(t), testConfig(), discardLogger())
	svc.now = clock.now
	return svc, clock, tokens, dir
}

func TestRotate_SuccessorStoreError(t *testing.T) {
	svc, _, tokens, _ := newPartialFixture(t)

	pair, err := svc.Issue(context.Background(), common.GrantTypeWindowsIdentity, "jeff.wang")
	require.NoError(t, err)

	tokens.createErr = errors.New("constraint")
	_, err = svc.Rotate(context.Background(), pair.RefreshToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error storing refresh token")
	assert.NotErrorIs(t, err, common.ErrTokenReuseDetected)
}

func TestRotate_RetryAfterFailedSuccessorInsert(t *testing.T) {
	svc, clock, tokens, _ := newPartialFixture(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, common.GrantTypeWindowsIdentity, "jeff.wang")
	require.NoError(t, err)
	other, err := svc.Issue(ctx, common.GrantTypeWindowsIdentity, "jeff.wang")
	require.NoError(t, err)

	tokens.createErr = errors.New("transient")
	_, err = svc.Rotate(ctx, pair.RefreshToken)
	require.Error(t, err)

	left, err := tokens.FindByDigest(ctx, cryptox.Digest(pair.RefreshToken))
	require.NoError(t, err)
	assert.True(t, left.Revoked)
	require.NotEmpty(t, left.ReplacedBy)

	tokens.createErr = nil
	clock.advance(5 * time.Second)

	next, err := svc.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)

	rec, err := tokens.FindByDigest(ctx, cryptox.Digest(next.RefreshToken))
	require.NoError(t, err)
	assert.False(t, rec.Revoked)

	untouched, err := tokens.FindByDigest(ctx, cryptox.Digest(other.RefreshToken))
	require.NoError(t, err)
	assert.False(t, untouched.Revoked, "other sessions survive an honest retry")
}

func TestRotate_RetryAfterFailedUserLookup(t *testing.T) {
	svc, clock, tokens, dir := newPartialFixture(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, common.GrantTypeWindowsIdentity, "jeff.wang")
	require.NoError(t, err)
	other, err := svc.Issue(ctx, common.GrantTypeWindowsIdentity, "jeff.wang")
	require.NoError(t, err)

	dir.err = context.DeadlineExceeded
	_, err = svc.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	dir.err = nil
	clock.advance(5 * time.Second)

	next, err := svc.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	untouched, err := tokens.FindByDigest(ctx, cryptox.Digest(other.RefreshToken))
	require.NoError(t, err)
	assert.False(t, untouched.Revoked)
}

func TestRotate_RetryAfterFailedInsertPastGraceIsReuse(t *testing.T) {
	svc, clock, tokens, _ := newPartialFixture(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, common.GrantTypeWindowsIdentity, "jeff.wang")
	require.NoError(t, err)

	tokens.createErr = errors.New("transient")
	_, err = svc.Rotate(ctx, pair.RefreshToken)
	require.Error(t, err)

	tokens.createErr = nil
	clock.advance(61 * time.Second)

	_, err = svc.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenReuseDetected)
}

// --- revoke all ---

func TestLogoutEverywhere(t *testing.T) {
	f := newFixture(t)
	a := f.issue(t, "jeff.wang")
	b := f.issue(t, "jeff.wang")
	c := f.issue(t, "alice.chen")

	n, err := f.svc.LogoutEverywhere(context.Background(), "CORP\\JEFF.WANG")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.True(t, f.record(t, a.RefreshToken).Revoked)
	assert.True(t, f.record(t, b.RefreshToken).Revoked)
	assert.False(t, f.record(t, c.RefreshToken).Revoked)

	n, err = f.svc.LogoutEverywhere(context.Background(), "jeff.wang")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.LogoutEverywhere(context.Background(), "nobody")
	require.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestRevokeAllForUser_Error(t *testing.T) {
	m := repomanager.NewMemoryRepositoryManager()
	svc := NewTokenService(nil, &tokenStoreManager{MemoryRepositoryManager: m, repo: brokenTokens{}}, newIssuer(t), testConfig(), discardLogger())

	_, err := svc.RevokeAllForUser(context.Background(), "u1")
	require.Error(t, err)
}

type brokenTokens struct{ refreshtokens.Repository }

func (brokenTokens) RevokeAllForUser(context.Context, string, time.Time) (int64, error) {
	return 0, errors.New("down")
}
