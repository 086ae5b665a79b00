package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/petflowpe/facturacion/internal/application/dto"
	"github.com/petflowpe/facturacion/pkg/jwt"
)

// Locals keys para CallerID e IssuerID en Fiber.
const (
	LocalCallerID = "caller_id"
	LocalIssuerID = "issuer_id"
)

// AuthMiddleware valida el Bearer Token JWT y extrae CallerID e IssuerID a c.Locals.
// Todo acceso a comprobantes queda acotado al emisor del token.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		callerID, issuerID, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		c.Locals(LocalCallerID, callerID)
		c.Locals(LocalIssuerID, issuerID)
		return c.Next()
	}
}

// GetCallerID devuelve el CallerID del contexto (después del middleware de auth).
func GetCallerID(c *fiber.Ctx) string {
	v := c.Locals(LocalCallerID)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetIssuerID devuelve el IssuerID del contexto (después del middleware de auth).
func GetIssuerID(c *fiber.Ctx) string {
	v := c.Locals(LocalIssuerID)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
