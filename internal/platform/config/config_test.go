package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "tavolo-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.PubSub.ProjectID != "tavolo-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.MailTopic != defaultMailTopic {
		t.Errorf("expected default mail topic %s, got %s", defaultMailTopic, cfg.PubSub.MailTopic)
	}
	if cfg.PubSub.PublishTimeout != defaultPublishTimeout {
		t.Errorf("unexpected default publish timeout: %s", cfg.PubSub.PublishTimeout)
	}
	if cfg.Build.Version != defaultBuildVersion || cfg.Build.CommitSHA != defaultCommitSHA {
		t.Errorf("unexpected default build info: %#v", cfg.Build)
	}
	if cfg.Build.Environment != "local" {
		t.Errorf("expected default environment local, got %s", cfg.Build.Environment)
	}
	if !cfg.Features.EnableNotifications {
		t.Errorf("expected notifications enabled by default")
	}
	if cfg.Gateway.SharedToken != "" {
		t.Errorf("expected no gateway token by default, got %q", cfg.Gateway.SharedToken)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":             "9090",
		"API_SERVER_READ_TIMEOUT":     "20s",
		"API_SERVER_WRITE_TIMEOUT":    "25s",
		"API_SERVER_IDLE_TIMEOUT":     "2m",
		"API_FIRESTORE_PROJECT_ID":    "tavolo-prod",
		"API_FIRESTORE_EMULATOR_HOST": "localhost:8200",
		"API_PUBSUB_PROJECT_ID":       "tavolo-msg",
		"API_PUBSUB_MAIL_TOPIC":       "mail-jobs-prod",
		"API_PUBSUB_PUBLISH_TIMEOUT":  "5s",
		"API_GATEWAY_SHARED_TOKEN":    "secret://gateway/token",
		"API_BUILD_VERSION":           "1.4.0",
		"API_BUILD_COMMIT_SHA":        "abc1234",
		"API_ENVIRONMENT":             "Prod",
		"API_FEATURE_NOTIFICATIONS":   "false",
	}

	resolver := SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
		if ref != "secret://gateway/token" {
			t.Fatalf("unexpected secret ref %s", ref)
		}
		return "resolved-token", nil
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 25*time.Second || cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected server timeouts: %#v", cfg.Server)
	}
	if cfg.Firestore.ProjectID != "tavolo-prod" || cfg.Firestore.EmulatorHost != "localhost:8200" {
		t.Errorf("unexpected firestore config: %#v", cfg.Firestore)
	}
	if cfg.PubSub.ProjectID != "tavolo-msg" || cfg.PubSub.MailTopic != "mail-jobs-prod" {
		t.Errorf("unexpected pubsub config: %#v", cfg.PubSub)
	}
	if cfg.PubSub.PublishTimeout != 5*time.Second {
		t.Errorf("unexpected publish timeout: %s", cfg.PubSub.PublishTimeout)
	}
	if cfg.Gateway.SharedToken != "resolved-token" {
		t.Errorf("expected resolved gateway token, got %q", cfg.Gateway.SharedToken)
	}
	if cfg.Build.Version != "1.4.0" || cfg.Build.CommitSHA != "abc1234" {
		t.Errorf("unexpected build info: %#v", cfg.Build)
	}
	if cfg.Build.Environment != "prod" {
		t.Errorf("expected lowercased environment, got %s", cfg.Build.Environment)
	}
	if cfg.Features.EnableNotifications {
		t.Errorf("expected notifications disabled")
	}
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT": "",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	fields := validation.Fields()
	want := map[string]bool{"Firestore.ProjectID": false, "PubSub.ProjectID": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected %s in validation fields %v", field, fields)
		}
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "tavolo-dev",
		"API_GATEWAY_SHARED_TOKEN": "sm://gateway/token",
	}

	resolver := SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
		return "", errors.New("permission denied")
	})

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err == nil {
		t.Fatalf("expected secret resolution error")
	}

	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://gateway/token" {
		t.Errorf("expected normalized sm:// ref, got %s", secretErr.Ref)
	}
}

func TestLoadRequiredSecretsMissing(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "tavolo-dev",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Gateway.SharedToken"),
	)
	if err == nil {
		t.Fatalf("expected missing secrets error")
	}

	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	names := missing.Names()
	if len(names) != 1 || names[0] != "Gateway.SharedToken" {
		t.Errorf("unexpected missing secret names %v", names)
	}
	redacted := missing.RedactedNames()
	if len(redacted) != 1 || redacted[0] == "Gateway.SharedToken" {
		t.Errorf("expected redacted identifier, got %v", redacted)
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "API_FIRESTORE_PROJECT_ID=tavolo-local\nexport API_SERVER_PORT=7070\n# comment\nAPI_PUBSUB_MAIL_TOPIC=\"mail-local\"\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envFile), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Firestore.ProjectID != "tavolo-local" {
		t.Errorf("expected project from env file, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from export line, got %s", cfg.Server.Port)
	}
	if cfg.PubSub.MailTopic != "mail-local" {
		t.Errorf("expected quoted value trimmed, got %s", cfg.PubSub.MailTopic)
	}
}

func TestEnvironmentValuesPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("SHARED=dotenv\nONLY_FILE=file\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	values, err := EnvironmentValues(
		WithEnvFile(envFile),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"SHARED": "explicit"}),
	)
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if values["SHARED"] != "explicit" {
		t.Errorf("expected explicit map to win, got %s", values["SHARED"])
	}
	if values["ONLY_FILE"] != "file" {
		t.Errorf("expected dotenv value preserved, got %s", values["ONLY_FILE"])
	}
}
