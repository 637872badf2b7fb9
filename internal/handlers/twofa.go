package handlers

import (
	"bytes"
	"encoding/base64"
	"image/png"

	"github.com/gofiber/fiber/v2"
	"github.com/luminahost/backend/internal/database"
	"github.com/luminahost/backend/internal/middleware"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

type TwoFAHandler struct{}

func NewTwoFAHandler() *TwoFAHandler {
	return &TwoFAHandler{}
}

// Setup generates a new TOTP secret and QR code. The secret is stored but
// 2FA stays off until Verify confirms a valid code.
func (h *TwoFAHandler) Setup(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	if user.TwoFactorEnabled {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "2FA is already enabled",
		})
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "LuminaHost",
		AccountName: user.Email,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to generate 2FA secret",
		})
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to generate QR code",
		})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to encode QR code",
		})
	}

	database.DB.Model(user).Update("two_factor_secret", key.Secret())

	return c.JSON(fiber.Map{
		"success": true,
		"secret":  key.Secret(),
		"qr_code": "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

// Verify confirms the first TOTP code and turns 2FA on
func (h *TwoFAHandler) Verify(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if user.TwoFactorSecret == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Run 2FA setup first",
		})
	}

	if !totp.Validate(req.Code, user.TwoFactorSecret) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid 2FA code",
		})
	}

	database.DB.Model(user).Update("two_factor_enabled", true)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "2FA enabled",
	})
}

// Disable turns 2FA off after re-checking the password
func (h *TwoFAHandler) Disable(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Password is incorrect",
		})
	}

	database.DB.Model(user).Updates(map[string]interface{}{
		"two_factor_enabled": false,
		"two_factor_secret":  "",
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "2FA disabled",
	})
}
