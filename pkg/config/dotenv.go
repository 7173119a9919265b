package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from the first .env file found in
// the working directory, its parents, or next to the executable. Variables
// already present in the environment take precedence.
func LoadDotEnv() (string, error) {
	envFiles := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		envFiles = append(envFiles,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, envFile := range envFiles {
		err := godotenv.Load(envFile)
		if err == nil {
			return envFile, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	// No .env file is fine; system env vars are used
	return "", nil
}
