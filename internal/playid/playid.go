// Package playid verifies signed playback tokens. A play id is an HS256 JWT
// minted by the catalog backend that names exactly one episode or movie; the
// play server trusts it instead of carrying its own user authentication.
package playid

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Media type values carried in the token.
const (
	TypeSeries = "series"
	TypeMovie  = "movie"
)

// ErrInvalidToken is returned when a play id fails signature or claim
// validation.
var ErrInvalidToken = errors.New("invalid play id")

// Claims is the payload of a play id token.
type Claims struct {
	Type     string `json:"type"`
	SeriesID int64  `json:"series_id,omitempty"`
	Number   int    `json:"number,omitempty"`
	MovieID  int64  `json:"movie_id,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates play id tokens against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given HS256 secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a play id, returning its claims.
func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	switch claims.Type {
	case TypeSeries:
		if claims.SeriesID <= 0 || claims.Number <= 0 {
			return nil, fmt.Errorf("%w: incomplete series claims", ErrInvalidToken)
		}
	case TypeMovie:
		if claims.MovieID <= 0 {
			return nil, fmt.Errorf("%w: incomplete movie claims", ErrInvalidToken)
		}
	default:
		return nil, fmt.Errorf("%w: unknown media type %q", ErrInvalidToken, claims.Type)
	}

	return claims, nil
}

// Sign mints a play id for the given claims. It exists for tests and for the
// scan tooling; the production minting side lives in the catalog backend.
func Sign(secret string, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
