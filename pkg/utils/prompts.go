package utils

import (
	"fmt"
	"os"
	"strings"
)

// LoadPrompt reads a system prompt from an exact file path and trims surrounding whitespace.
// An empty file is an error.
func LoadPrompt(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt %s: %w", filePath, err)
	}

	prompt := strings.TrimSpace(string(content))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s is empty", filePath)
	}

	return prompt, nil
}

// LoadPromptWithFallback loads a prompt from filePath, returning fallback if the path is
// empty or the file cannot be used
func LoadPromptWithFallback(filePath, fallback string) string {
	if filePath == "" {
		return fallback
	}
	if content, err := LoadPrompt(filePath); err == nil {
		return content
	}
	return fallback
}
