package handler

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xenking/pickle-storefront/internal/domain/auth"
)

// Claims is the payload of an access token. The subject is the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens issued by the account service.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify parses a raw token into the caller identity.
func (a *Authenticator) Verify(raw string) (auth.Identity, error) {
	var claims Claims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return auth.Identity{}, errors.Wrap(auth.ErrUnauthenticated, err.Error())
	}
	if claims.Subject == "" {
		return auth.Identity{}, errors.Wrap(auth.ErrUnauthenticated, "missing subject")
	}

	id := auth.Identity{UserID: claims.Subject, Role: auth.RoleUser}
	switch auth.Role(claims.Role) {
	case "", auth.RoleUser:
	case auth.RoleAdmin:
		id.Role = auth.RoleAdmin
	default:
		return auth.Identity{}, errors.Wrapf(auth.ErrUnauthenticated, "unknown role %q", claims.Role)
	}
	return id, nil
}

func bearerToken(c echo.Context) (string, bool) {
	scheme, token, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (a *Authenticator) attach(c echo.Context, raw string) error {
	id, err := a.Verify(raw)
	if err != nil {
		zctx.From(c.Request().Context()).Debug("Rejected token", zap.Error(err))
		return auth.ErrUnauthenticated
	}
	ctx := auth.WithIdentity(c.Request().Context(), id)
	ctx = zctx.With(ctx, zap.String("user_id", id.UserID))
	c.SetRequest(c.Request().WithContext(ctx))
	return nil
}

// RequireUser rejects requests without a valid bearer token.
func (a *Authenticator) RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return auth.ErrUnauthenticated
			}
			if err := a.attach(c, raw); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// Optional attaches the identity when a token is present. A present but
// invalid token is still rejected.
func (a *Authenticator) Optional() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearerToken(c); ok {
				if err := a.attach(c, raw); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}

// RequireAdmin must run after RequireUser.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := identity(c).RequireAdmin(); err != nil {
				return err
			}
			return next(c)
		}
	}
}
