package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
)

const testAudience = "https://api.catmat.shop/internal/maintenance/idempotency-cleanup"

type jwksFixture struct {
	key      *rsa.PrivateKey
	server   *httptest.Server
	requests atomic.Int32
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	f := &jwksFixture{key: key}
	jwk := jose.JSONWebKey{Key: &key.PublicKey, KeyID: "key1", Algorithm: "RS256", Use: "sig"}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *jwksFixture) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "key1"
	signed, err := token.SignedString(f.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   "https://accounts.google.com",
		"aud":   testAudience,
		"sub":   "scheduler",
		"email": "scheduler@catmat.iam.gserviceaccount.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func serveOIDC(v *OIDCValidator, token string) (*httptest.ResponseRecorder, ServiceIdentity) {
	var identity ServiceIdentity
	handler := v.RequireOIDC(testAudience, []string{"https://accounts.google.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ = ServiceIdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/idempotency-cleanup", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, identity
}

func TestJWKSCacheCachesKeys(t *testing.T) {
	fixture := newJWKSFixture(t)
	cache := NewJWKSCache(fixture.server.URL)

	for i := 0; i < 3; i++ {
		if _, err := cache.Key(context.Background(), "key1"); err != nil {
			t.Fatalf("Key: %v", err)
		}
	}
	if got := fixture.requests.Load(); got != 1 {
		t.Fatalf("expected a single jwks fetch, got %d", got)
	}
}

func TestJWKSCacheUnknownKid(t *testing.T) {
	fixture := newJWKSFixture(t)
	cache := NewJWKSCache(fixture.server.URL)

	if _, err := cache.Key(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown kid")
	}
}

func TestRequireOIDCAcceptsValidToken(t *testing.T) {
	fixture := newJWKSFixture(t)
	cache := NewJWKSCache(fixture.server.URL, WithJWKSHTTPClient(fixture.server.Client()))
	validator := NewOIDCValidator(cache, nil)

	rec, identity := serveOIDC(validator, fixture.sign(t, validClaims()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if identity.Subject != "scheduler" || identity.Issuer != "https://accounts.google.com" {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestRequireOIDCRejects(t *testing.T) {
	fixture := newJWKSFixture(t)
	validator := NewOIDCValidator(NewJWKSCache(fixture.server.URL), nil)

	wrongAudience := validClaims()
	wrongAudience["aud"] = "https://elsewhere"
	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "https://evil.example"
	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	cases := map[string]string{
		"missing":        "",
		"garbage":        "not-a-jwt",
		"wrong audience": fixture.sign(t, wrongAudience),
		"wrong issuer":   fixture.sign(t, wrongIssuer),
		"expired":        fixture.sign(t, expired),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			rec, _ := serveOIDC(validator, token)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRequireOIDCJWKSUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	fixture := newJWKSFixture(t)
	validator := NewOIDCValidator(NewJWKSCache(server.URL), nil)

	rec, _ := serveOIDC(validator, fixture.sign(t, validClaims()))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestParseMaxAge(t *testing.T) {
	if got := parseMaxAge("public, max-age=600, must-revalidate"); got != 10*time.Minute {
		t.Fatalf("unexpected max-age %s", got)
	}
	if got := parseMaxAge("no-cache"); got != 0 {
		t.Fatalf("expected zero, got %s", got)
	}
}
