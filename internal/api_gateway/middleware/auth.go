package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ActorKey is the gin context key holding the authenticated shared.Actor
const ActorKey = "actor"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrTokenExpired = errors.New("token has expired")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the bearer token claims issued by the identity provider.
// The subject is the actor id.
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 bearer tokens and turns them into actors
type TokenVerifier struct {
	signingKey []byte
	issuer     string
}

func NewTokenVerifier(signingKey, issuer string) *TokenVerifier {
	return &TokenVerifier{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// Issue signs a token for the actor. The API never issues tokens itself; this
// exists for local tooling and tests.
func (v *TokenVerifier) Issue(actor shared.Actor, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(actor.Role),
		Name: actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(v.signingKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify parses the token and returns the actor it names
func (v *TokenVerifier) Verify(tokenString string) (shared.Actor, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return shared.Actor{}, ErrTokenExpired
		}
		return shared.Actor{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return shared.Actor{}, ErrInvalidToken
	}

	actor := shared.Actor{ID: claims.Subject, Name: claims.Name, Role: shared.Role(claims.Role)}
	if actor.ID == "" || !actor.Role.Valid() {
		return shared.Actor{}, ErrInvalidToken
	}
	return actor, nil
}

// Authenticate rejects requests without a valid bearer token and stores the
// resulting actor under ActorKey
func Authenticate(verifier *TokenVerifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var actor shared.Actor
			actor, err = verifier.Verify(token)
			if err == nil {
				c.Set(ActorKey, actor)
				c.Next()
				return
			}
		}

		logger.Warn("Rejected unauthenticated request",
			"path", c.Request.URL.Path,
			"error", err,
			"correlation_id", GetCorrelationID(c),
		)
		abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	}
}

// GetActor returns the authenticated actor, if Authenticate ran
func GetActor(c *gin.Context) (shared.Actor, bool) {
	value, exists := c.Get(ActorKey)
	if !exists {
		return shared.Actor{}, false
	}
	actor, ok := value.(shared.Actor)
	return actor, ok
}

func bearerToken(header string) (string, error) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
