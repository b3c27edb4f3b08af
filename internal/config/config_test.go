package config

import "testing"

func validLocal() Config {
	return Config{
		App:    AppConfig{Env: "local", Port: 8080, PublicBaseURL: "http://localhost:8080"},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callflow", SSLMode: ""},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Auth:   AuthConfig{JWTSecret: "secret"},
		Twilio: TwilioConfig{AccountSID: "AC123", AuthToken: "token"},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresHTTPSBaseURL(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.App.PublicBaseURL = "http://dialer.example.com"
	c.DB.SSLMode = "require"
	c.Auth.JWTIssuer = "callflow"
	c.Auth.JWTAudience = "dialer"
	c.SMTP = SMTPConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production with plain-http base url")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_AppliesTimeoutDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Twilio.RequestTimeout <= 0 {
		t.Fatalf("expected twilio timeout default")
	}
	if c.Transcribe.RequestTimeout <= 0 {
		t.Fatalf("expected transcribe timeout default")
	}
	if c.SMTP.SendTimeout <= 0 {
		t.Fatalf("expected smtp timeout default")
	}
}
