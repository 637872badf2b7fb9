package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/luminahost/backend/internal/config"
	"github.com/luminahost/backend/internal/database"
	"github.com/luminahost/backend/internal/middleware"
	"github.com/luminahost/backend/internal/models"
	"github.com/luminahost/backend/internal/services"
)

type OAuthHandler struct {
	cfg  *config.Config
	http *http.Client
}

func NewOAuthHandler(cfg *config.Config) *OAuthHandler {
	return &OAuthHandler{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// DiscordRedirect sends the browser to Discord's consent screen
func (h *OAuthHandler) DiscordRedirect(c *fiber.Ctx) error {
	if h.cfg.DiscordClientID == "" {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"success": false,
			"message": "Discord login is not configured",
		})
	}

	params := url.Values{}
	params.Set("client_id", h.cfg.DiscordClientID)
	params.Set("redirect_uri", h.cfg.DiscordRedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", "identify email")

	return c.Redirect("https://discord.com/oauth2/authorize?" + params.Encode())
}

type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

// DiscordCallback exchanges the code, then finds or creates the matching
// account and redirects back to the frontend with a session token
func (h *OAuthHandler) DiscordCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return c.Redirect(h.cfg.FrontendURL + "/login?error=oauth_cancelled")
	}

	accessToken, err := h.exchangeCode(code)
	if err != nil {
		return c.Redirect(h.cfg.FrontendURL + "/login?error=oauth_failed")
	}

	du, err := h.fetchUser(accessToken)
	if err != nil || du.Email == "" {
		return c.Redirect(h.cfg.FrontendURL + "/login?error=oauth_failed")
	}

	user, err := h.findOrCreateUser(du)
	if err != nil {
		return c.Redirect(h.cfg.FrontendURL + "/login?error=oauth_failed")
	}

	if user.Blocked {
		return c.Redirect(h.cfg.FrontendURL + "/login?error=blocked")
	}

	token, err := middleware.GenerateToken(user, h.cfg)
	if err != nil {
		return c.Redirect(h.cfg.FrontendURL + "/login?error=oauth_failed")
	}

	now := time.Now()
	database.DB.Model(user).Update("last_login", now)

	return c.Redirect(h.cfg.FrontendURL + "/oauth?token=" + url.QueryEscape(token))
}

func (h *OAuthHandler) exchangeCode(code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", h.cfg.DiscordClientID)
	form.Set("client_secret", h.cfg.DiscordClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", h.cfg.DiscordRedirectURI)

	resp, err := h.http.Post(
		"https://discord.com/api/oauth2/token",
		"application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		return "", fmt.Errorf("token exchange failed")
	}
	return tok.AccessToken, nil
}

func (h *OAuthHandler) fetchUser(accessToken string) (*discordUser, error) {
	req, err := http.NewRequest("GET", "https://discord.com/api/users/@me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var du discordUser
	if err := json.Unmarshal(body, &du); err != nil {
		return nil, err
	}
	return &du, nil
}

// findOrCreateUser links by discord id first, then by email, then registers
// a fresh verified account
func (h *OAuthHandler) findOrCreateUser(du *discordUser) (*models.User, error) {
	var user models.User

	if err := database.DB.Where("discord_id = ?", du.ID).First(&user).Error; err == nil {
		return &user, nil
	}

	email := strings.ToLower(du.Email)
	if err := database.DB.Where("email = ?", email).First(&user).Error; err == nil {
		database.DB.Model(&user).Update("discord_id", du.ID)
		user.DiscordID = &du.ID
		return &user, nil
	}

	// Username collisions get a discriminator suffix
	username := du.Username
	var count int64
	database.DB.Model(&models.User{}).Where("username = ?", username).Count(&count)
	if count > 0 {
		username = fmt.Sprintf("%s_%s", du.Username, du.ID[len(du.ID)-4:])
	}

	// OAuth accounts have no usable local password
	randomHash, err := HashPassword(services.GeneratePanelPassword())
	if err != nil {
		return nil, err
	}

	user = models.User{
		Username:  username,
		Email:     email,
		Password:  randomHash,
		Role:      models.RoleUser,
		Verified:  true,
		DiscordID: &du.ID,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
