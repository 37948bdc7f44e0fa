package config

import (
	"esn/src/types"
	"fmt"
	"os"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

// Env reads API_ENV at call time so values loaded from .env after process
// start are honored.
func Env() types.Environment {
	return types.Environment(os.Getenv("API_ENV"))
}

// AppHost is the public origin the browser is redirected back to after a
// payment attempt, e.g. https://eventsolutionnepal.com.np
func AppHost() string {
	return os.Getenv("APP_HOST")
}

func KhaltiBaseURL() string {
	base := os.Getenv("KHALTI_BASE_URL")
	if base == "" {
		base = "https://a.khalti.com/api/v2"
	}
	return base
}

func KhaltiSecretKey() string {
	return os.Getenv("KHALTI_SECRET_KEY")
}

func FonepayBaseURL() string {
	base := os.Getenv("FONEPAY_BASE_URL")
	if base == "" {
		base = "https://clientapi.fonepay.com"
	}
	return base
}

func FonepayMerchantCode() string {
	return os.Getenv("FONEPAY_MERCHANT_CODE")
}

func FonepaySecretKey() string {
	return os.Getenv("FONEPAY_SECRET_KEY")
}

// FonepaySandboxBypass enables the permissive verifier that treats
// verification failures as success. The flag is ignored outside dev
// environments, production always verifies strictly.
func FonepaySandboxBypass() bool {
	if Env() == types.Production {
		return false
	}
	return os.Getenv("FONEPAY_SANDBOX_BYPASS") == "true"
}
