// AngelaMos | 2026
// tokens.go

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/pocketree/internal/config"
	"github.com/carterperez-dev/pocketree/internal/core"
	"github.com/carterperez-dev/pocketree/internal/middleware"
)

const (
	claimRole    = "role"
	claimVersion = "ver"
)

// Signer issues and verifies ES256 access tokens.
type Signer struct {
	private  jwk.Key
	public   jwk.Key
	jwks     jwk.Set
	issuer   string
	audience string
	ttl      time.Duration
	clock    core.Clock
}

func NewSigner(cfg config.JWTConfig, clock core.Clock) (*Signer, error) {
	key, err := loadSigningKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	return newSigner(key, cfg, clock)
}

func newSigner(private jwk.Key, cfg config.JWTConfig, clock core.Clock) (*Signer, error) {
	if clock == nil {
		clock = core.SystemClock
	}

	private, err := prepareSigningKey(private)
	if err != nil {
		return nil, err
	}

	public, err := private.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	if err := public.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set key usage: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(public); err != nil {
		return nil, fmt.Errorf("build key set: %w", err)
	}

	return &Signer{
		private:  private,
		public:   public,
		jwks:     set,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.AccessTokenExpire,
		clock:    clock,
	}, nil
}

func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign returns an access token for the account and when it expires.
func (s *Signer) Sign(acct *Account) (string, time.Time, error) {
	now := s.clock()
	expires := now.Add(s.ttl)

	token, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		Subject(acct.ID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(expires).
		Claim(claimRole, acct.Role).
		Claim(claimVersion, acct.TokenVersion).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), s.private))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return string(signed), expires, nil
}

// Verify checks signature, issuer, audience and lifetime, then returns the
// principal the token names. It does not consult revocation state.
func (s *Signer) Verify(raw string) (*middleware.Principal, error) {
	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.ES256(), s.public),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithClock(jwt.ClockFunc(s.clock)),
	)
	if errors.Is(err, jwt.TokenExpiredError()) {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
	}
	if err != nil {
		return nil, fmt.Errorf("verify token: %w: %w", core.ErrTokenInvalid, err)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf("verify token: no subject: %w", core.ErrTokenInvalid)
	}

	var role string
	if err := token.Get(claimRole, &role); err != nil {
		return nil, fmt.Errorf("verify token: no role: %w", core.ErrTokenInvalid)
	}

	var version float64
	if err := token.Get(claimVersion, &version); err != nil {
		return nil, fmt.Errorf("verify token: no version: %w", core.ErrTokenInvalid)
	}

	jti, _ := token.JwtID()
	expires, _ := token.Expiration()

	return &middleware.Principal{
		UserID:       subject,
		Role:         role,
		TokenVersion: int(version),
		TokenID:      jti,
		ExpiresAt:    expires,
	}, nil
}

// JWKS serves the public verification key.
func (s *Signer) JWKS() http.HandlerFunc {
	body, err := json.Marshal(s.jwks)
	return func(w http.ResponseWriter, _ *http.Request) {
		if err != nil {
			core.InternalServerError(w, fmt.Errorf("encode jwks: %w", err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(body)
	}
}
