package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
}

type PaystackConfig struct {
	BaseURL   string
	SecretKey string
}

type BinanceConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
}

type CoinbaseConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
}

type PaddleConfig struct {
	BaseURL      string
	VendorID     string
	APIKey       string
	PublicKeyPEM string
}

type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

type Config struct {
	Env      string
	HTTPPort string

	// empty DatabaseURL selects the local file store
	DatabaseURL   string
	FileStorePath string

	JWTAccessSecret  string
	JWTRefreshSecret string
	AdminEmail       string
	AdminPassHash    string

	RateRPS int

	PublicBaseURL string
	RedirectURL   string

	Mpesa    MpesaConfig
	Paystack PaystackConfig
	Binance  BinanceConfig
	Coinbase CoinbaseConfig
	Paddle   PaddleConfig
	SMTP     SMTPConfig
}

func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:           get("APP_ENV", "dev"),
		HTTPPort:      get("HTTP_PORT", "8080"),
		DatabaseURL:   get("DATABASE_URL", ""),
		FileStorePath: get("FILE_STORE_PATH", "payments.local.json"),

		JWTAccessSecret:  get("JWT_ACCESS_SECRET", "changeme-access"),
		JWTRefreshSecret: get("JWT_REFRESH_SECRET", "changeme-refresh"),
		AdminEmail:       get("ADMIN_EMAIL", ""),
		AdminPassHash:    get("ADMIN_PASSWORD_HASH", ""),

		RateRPS: getInt("RATE_RPS", 100),

		PublicBaseURL: get("PUBLIC_BASE_URL", "http://localhost:8080"),
		RedirectURL:   get("CHECKOUT_REDIRECT_URL", ""),

		Mpesa: MpesaConfig{
			BaseURL:        get("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:    get("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret: get("MPESA_CONSUMER_SECRET", ""),
			Shortcode:      get("MPESA_SHORTCODE", ""),
			Passkey:        get("MPESA_PASSKEY", ""),
			CallbackURL:    get("MPESA_CALLBACK_URL", ""),
		},
		Paystack: PaystackConfig{
			BaseURL:   get("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			SecretKey: get("PAYSTACK_SECRET_KEY", ""),
		},
		Binance: BinanceConfig{
			BaseURL:   get("BINANCE_PAY_BASE_URL", "https://bpay.binanceapi.com"),
			APIKey:    get("BINANCE_PAY_KEY", ""),
			APISecret: get("BINANCE_PAY_SECRET", ""),
		},
		Coinbase: CoinbaseConfig{
			BaseURL:       get("COINBASE_BASE_URL", "https://api.commerce.coinbase.com"),
			APIKey:        get("COINBASE_API_KEY", ""),
			WebhookSecret: get("COINBASE_WEBHOOK_SECRET", ""),
		},
		Paddle: PaddleConfig{
			BaseURL:      get("PADDLE_BASE_URL", "https://vendors.paddle.com"),
			VendorID:     get("PADDLE_VENDOR_ID", ""),
			APIKey:       get("PADDLE_API_KEY", ""),
			PublicKeyPEM: get("PADDLE_PUBLIC_KEY", ""),
		},
		SMTP: SMTPConfig{
			Host: get("SMTP_HOST", ""),
			Port: get("SMTP_PORT", "587"),
			User: get("SMTP_USER", ""),
			Pass: get("SMTP_PASS", ""),
			From: get("SMTP_FROM", "no-reply@tradelearn.local"),
		},
	}
	return cfg
}

func get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
