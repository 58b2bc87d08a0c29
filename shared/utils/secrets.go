package utils

import (
	"fmt"
	"os"
	"strings"
)

// secretsDir можно переопределить в тестах.
var secretsDir = "/run/secrets"

// ReadSecret читает секрет из файла в стандартном пути Docker Secrets.
func ReadSecret(secretName string) (string, error) {
	filePath := fmt.Sprintf("%s/%s", secretsDir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}

// ReadSecretOrEnv сначала пробует Docker Secret, затем переменную окружения envKey.
// Возвращает ошибку, только если пусто в обоих местах.
func ReadSecretOrEnv(secretName, envKey string) (string, error) {
	secret, fileErr := ReadSecret(secretName)
	if fileErr == nil {
		return secret, nil
	}
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secret %s is not set (env %s is empty): %w", secretName, envKey, fileErr)
}

// MaskSecret оставляет только последние 4 символа для логов.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
