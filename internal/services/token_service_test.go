package services_test

import (
	"strings"
	"testing"
	"time"

	"mercado/internal/apperror"
	"mercado/internal/config"
	"mercado/internal/models"
	"mercado/internal/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWT = config.JWTConfig{
	Secret:   "test_jwt_secret",
	Expiry:   time.Hour,
	Issuer:   "marketplace-api",
	Audience: "marketplace-users",
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var issuedAt = time.Unix(1_700_000_000, 0)

func testUser() *models.User {
	return &models.User{ID: "user-1", Name: "Ana", Email: "ana@example.com", Role: models.RoleBuyer}
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := services.NewTokenService(testJWT, services.WithClock(fixedClock(issuedAt)))

	token, expires, err := svc.Issue(testUser())
	require.NoError(t, err)
	assert.True(t, issuedAt.Add(time.Hour).Equal(expires))

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, models.RoleBuyer, claims.Role)
	assert.Equal(t, "marketplace-api", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"marketplace-users"}, claims.Audience)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, issuedAt.Equal(claims.IssuedAt.Time))
}

func TestTokenService_UniqueTokenIDs(t *testing.T) {
	svc := services.NewTokenService(testJWT, services.WithClock(fixedClock(issuedAt)))
	a, _, err := svc.Issue(testUser())
	require.NoError(t, err)
	b, _, err := svc.Issue(testUser())
	require.NoError(t, err)

	ca, err := svc.Verify(a)
	require.NoError(t, err)
	cb, err := svc.Verify(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestTokenService_RejectsTamperedSignature(t *testing.T) {
	svc := services.NewTokenService(testJWT, services.WithClock(fixedClock(issuedAt)))
	token, _, err := svc.Issue(testUser())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	mid := len(sig) / 2
	if sig[mid] == 'A' {
		sig[mid] = 'B'
	} else {
		sig[mid] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = svc.Verify(tampered)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))
}

func TestTokenService_RejectsOtherSecret(t *testing.T) {
	other := testJWT
	other.Secret = "another-secret"
	token, _, err := services.NewTokenService(other, services.WithClock(fixedClock(issuedAt))).Issue(testUser())
	require.NoError(t, err)

	_, err = services.NewTokenService(testJWT, services.WithClock(fixedClock(issuedAt))).Verify(token)
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))
}

func TestTokenService_RejectsIssuerAndAudienceMismatch(t *testing.T) {
	verifier := services.NewTokenService(testJWT, services.WithClock(fixedClock(issuedAt)))

	wrongIssuer := testJWT
	wrongIssuer.Issuer = "someone-else"
	token, _, err := services.NewTokenService(wrongIssuer, services.WithClock(fixedClock(issuedAt))).Issue(testUser())
	require.NoError(t, err)
	_, err = verifier.Verify(token)
	assert.True(t, apperror.Is(err, apperror.KindAuthentication), "issuer mismatch must fail")

	wrongAudience := testJWT
	wrongAudience.Audience = "other-users"
	token, _, err = services.NewTokenService(wrongAudience, services.WithClock(fixedClock(issuedAt))).Issue(testUser())
	require.NoError(t, err)
	_, err = verifier.Verify(token)
	assert.True(t, apperror.Is(err, apperror.KindAuthentication), "audience mismatch must fail")
}

func TestTokenService_RejectsOtherAlgorithms(t *testing.T) {
	claims := services.Claims{
		Email: "ana@example.com",
		Role:  models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    testJWT.Issuer,
			Audience:  jwt.ClaimStrings{testJWT.Audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		},
	}
	verifier := services.NewTokenService(testJWT, services.WithClock(fixedClock(issuedAt)))

	hs384, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte(testJWT.Secret))
	require.NoError(t, err)
	_, err = verifier.Verify(hs384)
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = verifier.Verify(none)
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))
}

func TestTokenService_RequiresExpiry(t *testing.T) {
	claims := services.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "user-1",
			Issuer:   testJWT.Issuer,
			Audience: jwt.ClaimStrings{testJWT.Audience},
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWT.Secret))
	require.NoError(t, err)

	_, err = services.NewTokenService(testJWT).Verify(token)
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))
}

func TestTokenService_ExpiryBoundary(t *testing.T) {
	token, expires, err := services.NewTokenService(testJWT, services.WithClock(fixedClock(issuedAt))).Issue(testUser())
	require.NoError(t, err)

	tests := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{"at issue", issuedAt, true},
		{"one nanosecond before expiry", expires.Add(-time.Nanosecond), true},
		{"exactly at expiry", expires, false},
		{"after expiry", expires.Add(time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := services.NewTokenService(testJWT, services.WithClock(fixedClock(tt.at))).Verify(token)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindAuthentication))
			assert.Equal(t, "token expired", apperror.From(err).Message)
		})
	}
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	svc := services.NewTokenService(testJWT)
	for _, token := range []string{"", "abc", "a.b.c", "Bearer x"} {
		_, err := svc.Verify(token)
		assert.Truef(t, apperror.Is(err, apperror.KindAuthentication), "token %q", token)
	}
}
