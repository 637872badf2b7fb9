package handlers

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/luminahost/backend/internal/config"
	"github.com/luminahost/backend/internal/database"
	"github.com/luminahost/backend/internal/middleware"
	"github.com/luminahost/backend/internal/models"
	"github.com/luminahost/backend/internal/services"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxLoginAttempts   = 5
	loginBlockDuration = 15 * time.Minute
	codeLifetime       = 15 * time.Minute
	tempTokenLifetime  = 5 * time.Minute
)

// LoginAttempt tracks failed login attempts
type LoginAttempt struct {
	Count     int
	LastTry   time.Time
	BlockedAt *time.Time
}

var (
	loginAttempts = make(map[string]*LoginAttempt)
	attemptsMutex sync.RWMutex
)

// isIPBlocked checks if IP has too many failed attempts
func isIPBlocked(ip string) (bool, int) {
	attemptsMutex.RLock()
	attempt, exists := loginAttempts[ip]
	attemptsMutex.RUnlock()

	if !exists {
		return false, 0
	}

	if attempt.BlockedAt != nil {
		if time.Since(*attempt.BlockedAt) < loginBlockDuration {
			remaining := int(loginBlockDuration.Minutes() - time.Since(*attempt.BlockedAt).Minutes())
			return true, remaining
		}
		attemptsMutex.Lock()
		delete(loginAttempts, ip)
		attemptsMutex.Unlock()
		return false, 0
	}

	if time.Since(attempt.LastTry) > loginBlockDuration {
		attemptsMutex.Lock()
		delete(loginAttempts, ip)
		attemptsMutex.Unlock()
		return false, 0
	}

	return attempt.Count >= maxLoginAttempts, 0
}

// recordFailedAttempt records a failed login attempt
func recordFailedAttempt(ip string) int {
	attemptsMutex.Lock()
	defer attemptsMutex.Unlock()

	if _, exists := loginAttempts[ip]; !exists {
		loginAttempts[ip] = &LoginAttempt{Count: 0}
	}

	loginAttempts[ip].Count++
	loginAttempts[ip].LastTry = time.Now()

	if loginAttempts[ip].Count >= maxLoginAttempts {
		now := time.Now()
		loginAttempts[ip].BlockedAt = &now
	}

	return maxLoginAttempts - loginAttempts[ip].Count
}

// clearFailedAttempts clears failed attempts on successful login
func clearFailedAttempts(ip string) {
	attemptsMutex.Lock()
	defer attemptsMutex.Unlock()
	delete(loginAttempts, ip)
}

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// generateCode returns a 6-digit numeric code
func generateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "000000"
	}
	return fmt.Sprintf("%06d", n.Int64())
}

type AuthHandler struct {
	cfg    *config.Config
	outbox *services.Outbox
}

func NewAuthHandler(cfg *config.Config, outbox *services.Outbox) *AuthHandler {
	return &AuthHandler{cfg: cfg, outbox: outbox}
}

// RegisterRequest represents registration request body
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserInfo represents user info in responses
type UserInfo struct {
	ID               uint        `json:"id"`
	Username         string      `json:"username"`
	Email            string      `json:"email"`
	Balance          float64     `json:"balance"`
	Role             models.Role `json:"role"`
	Verified         bool        `json:"verified"`
	TwoFactorEnabled bool        `json:"two_factor_enabled"`
}

func userInfo(user *models.User) *UserInfo {
	return &UserInfo{
		ID:               user.ID,
		Username:         user.Username,
		Email:            user.Email,
		Balance:          user.Balance,
		Role:             user.Role,
		Verified:         user.Verified,
		TwoFactorEnabled: user.TwoFactorEnabled,
	}
}

// Register creates a new account and emails a verification code
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if len(req.Username) < 3 || len(req.Username) > 32 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Username must be 3-32 characters",
		})
	}
	if !strings.Contains(req.Email, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid email address",
		})
	}
	if len(req.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Password must be at least 8 characters",
		})
	}

	var count int64
	database.DB.Model(&models.User{}).
		Where("username = ? OR email = ?", req.Username, req.Email).
		Count(&count)
	if count > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Username or email already taken",
		})
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create account",
		})
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hash,
		Role:     models.RoleUser,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create account",
		})
	}

	h.sendCode(&user, "verify")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Account created. Check your email for the verification code.",
	})
}

// sendCode creates a single-use code row and queues the matching email
func (h *AuthHandler) sendCode(user *models.User, codeType string) {
	code := generateCode()
	database.DB.Create(&models.VerificationCode{
		UserID:    user.ID,
		Code:      code,
		Type:      codeType,
		ExpiresAt: time.Now().Add(codeLifetime),
	})

	if codeType == "verify" {
		h.outbox.Enqueue(services.VerificationMail(user.Email, code))
	} else {
		h.outbox.Enqueue(services.ResetMail(user.Email, code))
	}
}

// consumeCode validates and burns a single-use code
func consumeCode(userID uint, code, codeType string) bool {
	var vc models.VerificationCode
	err := database.DB.
		Where("user_id = ? AND code = ? AND type = ? AND used = false AND expires_at > ?",
			userID, code, codeType, time.Now()).
		Order("created_at DESC").
		First(&vc).Error
	if err != nil {
		return false
	}
	database.DB.Model(&vc).Update("used", true)
	return true
}

// VerifyEmail confirms an emailed verification code
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	var user models.User
	if err := database.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Account not found",
		})
	}

	if !consumeCode(user.ID, req.Code, "verify") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid or expired code",
		})
	}

	database.DB.Model(&user).Update("verified", true)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Email verified",
	})
}

// Login handles password login; 2FA accounts get a short-lived temp token
// for the second step
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	clientIP := c.IP()

	if blocked, remaining := isIPBlocked(clientIP); blocked {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success": false,
			"message": "Too many failed login attempts. Please try again in " + strconv.Itoa(remaining) + " minutes",
		})
	}

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Username and password are required",
		})
	}

	// Find user by username or email
	var user models.User
	if err := database.DB.
		Where("username = ? OR email = ?", req.Username, strings.ToLower(req.Username)).
		First(&user).Error; err != nil {
		remaining := recordFailedAttempt(clientIP)
		msg := "Invalid username or password"
		if remaining > 0 {
			msg += ". " + strconv.Itoa(remaining) + " attempts remaining"
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": msg,
		})
	}

	if user.Blocked {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Account is blocked",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		remaining := recordFailedAttempt(clientIP)
		msg := "Invalid username or password"
		if remaining > 0 {
			msg += ". " + strconv.Itoa(remaining) + " attempts remaining"
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": msg,
		})
	}

	clearFailedAttempts(clientIP)

	if user.TwoFactorEnabled {
		tempToken := models.TempToken{
			Token:     uuid.NewString(),
			UserID:    user.ID,
			ExpiresAt: time.Now().Add(tempTokenLifetime),
		}
		database.DB.Create(&tempToken)

		return c.JSON(fiber.Map{
			"success":      false,
			"requires_2fa": true,
			"temp_token":   tempToken.Token,
			"message":      "2FA code required",
		})
	}

	return h.issueSession(c, &user)
}

// Login2FA completes a 2FA login with the temp token plus a TOTP code
func (h *AuthHandler) Login2FA(c *fiber.Ctx) error {
	var req struct {
		TempToken string `json:"temp_token"`
		Code      string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	var tt models.TempToken
	if err := database.DB.
		Where("token = ? AND expires_at > ?", req.TempToken, time.Now()).
		First(&tt).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid or expired login session, start over",
		})
	}

	var user models.User
	if err := database.DB.First(&user, tt.UserID).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Account not found",
		})
	}

	if !totp.Validate(req.Code, user.TwoFactorSecret) {
		recordFailedAttempt(c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid 2FA code",
		})
	}

	database.DB.Delete(&tt)

	return h.issueSession(c, &user)
}

// issueSession signs a JWT and records the login
func (h *AuthHandler) issueSession(c *fiber.Ctx, user *models.User) error {
	token, err := middleware.GenerateToken(user, h.cfg)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to generate token",
		})
	}

	now := time.Now()
	database.DB.Model(user).Update("last_login", now)

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
		"user":    userInfo(user),
	})
}

// ForgotPassword emails a reset code; the response never reveals whether
// the account exists
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	var user models.User
	if err := database.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err == nil {
		h.sendCode(&user, "reset")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "If that email exists, a reset code was sent",
	})
}

// ResetPassword consumes a reset code and sets a new password
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Code     string `json:"code"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if len(req.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Password must be at least 8 characters",
		})
	}

	var user models.User
	if err := database.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid or expired code",
		})
	}

	if !consumeCode(user.ID, req.Code, "reset") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid or expired code",
		})
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update password",
		})
	}
	database.DB.Model(&user).Update("password", hash)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password updated",
	})
}

// UpdateProfile changes username and/or email, both kept unique
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	updates := map[string]interface{}{}

	if username := strings.TrimSpace(req.Username); username != "" && username != user.Username {
		if len(username) < 3 || len(username) > 32 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Username must be 3-32 characters",
			})
		}
		var count int64
		database.DB.Model(&models.User{}).
			Where("username = ? AND id != ?", username, user.ID).
			Count(&count)
		if count > 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Username already taken",
			})
		}
		updates["username"] = username
	}

	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		if !strings.Contains(email, "@") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid email address",
			})
		}
		var count int64
		database.DB.Model(&models.User{}).
			Where("email = ? AND id != ?", email, user.ID).
			Count(&count)
		if count > 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Email already taken",
			})
		}
		updates["email"] = email
	}

	if len(updates) > 0 {
		database.DB.Model(user).Updates(updates)
		database.DB.First(user, user.ID)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    userInfo(user),
	})
}

// Logout revokes the current token until it would have expired
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals("token").(string)
	expiry, _ := c.Locals("tokenExpiry").(time.Time)
	if token != "" {
		database.BlacklistToken(token, time.Until(expiry))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Me returns current user info
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    userInfo(user),
	})
}

// ChangePassword handles password change for logged-in users
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if len(req.NewPassword) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Password must be at least 8 characters",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Current password is incorrect",
		})
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update password",
		})
	}
	database.DB.Model(user).Update("password", hash)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password updated",
	})
}
