// Package secrets resolves credential material from files, environment
// variables or inline configuration, in that order of precedence. File-based
// secrets are preferred so credentials stay out of shell history and configs.
package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Source describes where a secret may come from. The first populated source
// wins: File, then Env, then Value.
type Source struct {
	// Name appears in error messages.
	Name string
	// File points to a file holding the secret.
	File string
	// Env is the name of an environment variable holding the secret itself.
	Env string
	// Value is an inline secret from configuration or flags.
	Value string
}

// Load resolves and trims the secret. It errors when every source comes up
// empty, naming the source it tried so the operator knows what to set.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	if src.Env != "" {
		if secret := strings.TrimSpace(os.Getenv(src.Env)); secret != "" {
			return secret, nil
		}
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	return "", fmt.Errorf("%s is not configured", name)
}
