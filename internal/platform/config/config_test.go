package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_FIREBASE_PROJECT_ID": "paperloft-dev",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected read timeout %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "paperloft-dev" {
		t.Fatalf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "paperloft-dev" {
		t.Fatalf("expected pubsub project to default to firebase project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.OrderEventsTopic != "order-events" {
		t.Fatalf("unexpected topic %s", cfg.PubSub.OrderEventsTopic)
	}
	if cfg.RateLimits.OrderPlacementLimit != 10 || cfg.RateLimits.OrderPlacementWindow != time.Minute {
		t.Fatalf("unexpected rate limits %+v", cfg.RateLimits)
	}
	if cfg.Build.Version != "dev" || cfg.Build.Environment != "local" {
		t.Fatalf("unexpected build config %+v", cfg.Build)
	}
	if cfg.Idempotency.Header != "Idempotency-Key" || cfg.Idempotency.TTL != 24*time.Hour {
		t.Fatalf("unexpected idempotency config %+v", cfg.Idempotency)
	}
}

func TestLoadEnvMapOverrides(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_FIREBASE_PROJECT_ID":          "paperloft-prod",
			"API_FIRESTORE_PROJECT_ID":         "paperloft-data",
			"API_SERVER_PORT":                  "9090",
			"API_SERVER_READ_TIMEOUT":          "5s",
			"API_PUBSUB_ORDER_EVENTS_TOPIC":    "orders-out",
			"API_RATELIMIT_ORDER_PLACE_LIMIT":  "25",
			"API_RATELIMIT_ORDER_PLACE_WINDOW": "30s",
			"API_ENVIRONMENT":                  "Production",
			"API_BUILD_VERSION":                "1.4.0",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Firestore.ProjectID != "paperloft-data" {
		t.Fatalf("expected explicit firestore project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.OrderEventsTopic != "orders-out" {
		t.Fatalf("unexpected topic %s", cfg.PubSub.OrderEventsTopic)
	}
	if cfg.RateLimits.OrderPlacementLimit != 25 || cfg.RateLimits.OrderPlacementWindow != 30*time.Second {
		t.Fatalf("unexpected rate limits %+v", cfg.RateLimits)
	}
	if cfg.Build.Environment != "production" {
		t.Fatalf("expected environment lowercased, got %s", cfg.Build.Environment)
	}
	if cfg.Build.Version != "1.4.0" {
		t.Fatalf("unexpected version %s", cfg.Build.Version)
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "API_FIREBASE_PROJECT_ID=paperloft-local\nexport API_SERVER_PORT=7070\n# comment\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(envFile),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Firebase.ProjectID != "paperloft-local" {
		t.Fatalf("expected project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
	if cfg.Server.Port != "7070" {
		t.Fatalf("expected port from dotenv export, got %s", cfg.Server.Port)
	}
}

func TestLoadValidatesRequiredFields(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
	)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := verr.Fields()
	if len(fields) == 0 || fields[0] != "Firebase.ProjectID" {
		t.Fatalf("expected Firebase.ProjectID missing, got %v", fields)
	}
}

func TestLoadResolvesCredentialSecret(t *testing.T) {
	resolver := SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
		if ref != "secret://firebase_credentials" {
			t.Fatalf("unexpected ref %q", ref)
		}
		return `{"type":"service_account"}`, nil
	})

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
		WithEnvMap(map[string]string{
			"API_FIREBASE_PROJECT_ID":       "paperloft-dev",
			"API_FIREBASE_CREDENTIALS_JSON": "sm://firebase_credentials",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firebase.CredentialsJSON != `{"type":"service_account"}` {
		t.Fatalf("expected resolved secret, got %q", cfg.Firebase.CredentialsJSON)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	resolver := SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
		return "", errors.New("access denied")
	})

	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
		WithEnvMap(map[string]string{
			"API_FIREBASE_PROJECT_ID":       "paperloft-dev",
			"API_FIREBASE_CREDENTIALS_JSON": "secret://firebase_credentials",
		}),
	)
	if err == nil {
		t.Fatal("expected secret error")
	}

	var serr *SecretError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if serr.Ref != "secret://firebase_credentials" {
		t.Fatalf("unexpected ref %q", serr.Ref)
	}
}
