package serverutils

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const SessionIdKey = "session_id"

// SessionMiddleware resolves the browser session from a signed cookie and issues a
// new one when the cookie is missing, expired or tampered with.
func SessionMiddleware(cookieName, secret string, ttl time.Duration) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		sessionId, err := ParseSessionToken(ctx.Cookies(cookieName), secret)
		if err != nil {
			sessionId = uuid.NewString()
		}

		// Refresh on every request so active sessions keep sliding.
		token, err := IssueSessionToken(sessionId, secret, ttl)
		if err != nil {
			return err
		}
		ctx.Cookie(&fiber.Cookie{
			Name:     cookieName,
			Value:    token,
			Path:     "/",
			Expires:  time.Now().Add(ttl),
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})

		ctx.Locals(SessionIdKey, sessionId)
		return ctx.Next()
	}
}

func IssueSessionToken(sessionId, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		SessionIdKey: sessionId,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseSessionToken(tokenStr, secret string) (string, error) {
	if tokenStr == "" {
		return "", jwt.ErrTokenMalformed
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenInvalidClaims
	}
	sessionId, ok := claims[SessionIdKey].(string)
	if !ok || sessionId == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return sessionId, nil
}

// SessionId reads the id stored by SessionMiddleware.
func SessionId(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals(SessionIdKey).(string)
	return id
}
