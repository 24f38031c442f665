// Package secrets reads API credentials from the OS keychain, with
// environment variables as a fallback for headless deployments.
package secrets

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups the engine's secrets in the OS keychain.
	KeyringService = "outreach-engine"
)

// ErrNotFound means neither the keychain nor the environment had the secret.
var ErrNotFound = errors.New("secret not found (set it in keychain or via env)")

// Known secrets and their environment fallbacks.
type Secret struct {
	Account string
	EnvVar  string
}

var (
	DirectoryAPIKey = Secret{Account: "directory-api-key", EnvVar: "DIRECTORY_API_KEY"}
	AnthropicAPIKey = Secret{Account: "anthropic-api-key", EnvVar: "ANTHROPIC_API_KEY"}
	TelegramToken   = Secret{Account: "telegram-bot-token", EnvVar: "TELEGRAM_BOT_TOKEN"}
)

// WithAccount overrides the keychain account name, keeping the env fallback.
func (s Secret) WithAccount(account string) Secret {
	if strings.TrimSpace(account) != "" {
		s.Account = strings.TrimSpace(account)
	}
	return s
}

// Get returns the secret from the keychain, then the environment.
func Get(s Secret) (string, error) {
	if strings.TrimSpace(s.Account) != "" {
		v, err := keyring.Get(KeyringService, s.Account)
		if err == nil && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	if s.EnvVar != "" {
		if v := strings.TrimSpace(os.Getenv(s.EnvVar)); v != "" {
			return v, nil
		}
	}
	return "", ErrNotFound
}

func Set(s Secret, value string) error {
	if strings.TrimSpace(s.Account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, s.Account, value)
}

func Delete(s Secret) error {
	if strings.TrimSpace(s.Account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, s.Account)
}

// Has reports whether the secret is available without returning it.
func Has(s Secret) bool {
	_, err := Get(s)
	return err == nil
}
