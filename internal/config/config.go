package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// JWT
	JWTSecret      string
	JWTExpireHours int

	// API
	APIPort     int
	FrontendURL string

	// Game panel application API
	PanelURL string
	PanelKey string

	// Payment notifications
	PaymentSecret string

	// SMTP
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Discord OAuth2
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURI  string

	// Backups
	BackupDir  string
	BackupHour int
	FTPHost    string
	FTPPort    int
	FTPUser    string
	FTPPass    string
	FTPPath    string
}

// generateSecureSecret generates a cryptographically secure random secret
func generateSecureSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return hex.EncodeToString([]byte(os.Getenv("HOSTNAME") + string(rune(length))))
	}
	return hex.EncodeToString(bytes)
}

func Load() *Config {
	// .env is optional; deployments normally pass everything through the environment
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = generateSecureSecret(32)
		log.Println("WARNING: JWT_SECRET not set - generated random secret. Sessions will not persist across restarts.")
	}

	dbPassword := getEnv("DB_PASSWORD", "")
	if dbPassword == "" {
		log.Println("WARNING: DB_PASSWORD not set - this is insecure for production!")
		dbPassword = "changeme"
	}

	panelKey := getEnv("PANEL_API_KEY", "")
	if panelKey == "" {
		log.Println("WARNING: PANEL_API_KEY not set - provisioning against the panel will fail")
	}

	paymentSecret := getEnv("PAYMENT_SECRET", "")
	if paymentSecret == "" {
		log.Println("WARNING: PAYMENT_SECRET not set - top-up notifications will be rejected")
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "luminahost"),
		DBPassword: dbPassword,
		DBName:     getEnv("DB_NAME", "luminahost"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret:      jwtSecret,
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 168), // 7 days default

		APIPort:     getEnvInt("API_PORT", 8080),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		PanelURL: getEnv("PANEL_URL", "http://localhost:8000"),
		PanelKey: panelKey,

		PaymentSecret: paymentSecret,

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnv("SMTP_PORT", "587"),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", "noreply@localhost"),

		DiscordClientID:     getEnv("DISCORD_CLIENT_ID", ""),
		DiscordClientSecret: getEnv("DISCORD_CLIENT_SECRET", ""),
		DiscordRedirectURI:  getEnv("DISCORD_REDIRECT_URI", ""),

		BackupDir:  getEnv("BACKUP_DIR", "/var/backups/luminahost"),
		BackupHour: getEnvInt("BACKUP_HOUR", 2),
		FTPHost:    getEnv("BACKUP_FTP_HOST", ""),
		FTPPort:    getEnvInt("BACKUP_FTP_PORT", 21),
		FTPUser:    getEnv("BACKUP_FTP_USER", ""),
		FTPPass:    getEnv("BACKUP_FTP_PASS", ""),
		FTPPath:    getEnv("BACKUP_FTP_PATH", "/backups"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
