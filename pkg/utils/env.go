package utils

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// LoadEnv loads the given .env files into the process environment and returns the
// resulting environment as a map. Missing files are skipped; variables already set
// in the environment win over file values.
func LoadEnv(files ...string) map[string]string {
	for _, file := range files {
		if file == "" {
			continue
		}
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			logrus.WithField("component", "utils").WithError(err).Warnf("could not load %s", file)
		}
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			env[key] = value
		}
	}

	return env
}

// ReadEnvFile parses a single .env file without touching the process environment
func ReadEnvFile(file string) (map[string]string, error) {
	return godotenv.Read(file)
}
