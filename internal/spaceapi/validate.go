package spaceapi

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// MaxAPIKeyLength is the longest API key accepted after sanitizing
const MaxAPIKeyLength = 256

var (
	controlChars   = regexp.MustCompile(`[\x00-\x1F\x7F-\x9F]`)
	safeKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-=]+$`)
)

// SanitizeHostURL validates a SpaceAPI host URL and strips surrounding
// whitespace and trailing slashes.
func SanitizeHostURL(hostURL string) (string, error) {
	hostURL = strings.TrimSpace(hostURL)
	if hostURL == "" {
		return "", &ConfigError{Field: "host", Msg: "host URL cannot be empty"}
	}

	parsed, err := url.Parse(hostURL)
	if err != nil {
		return "", &ConfigError{Field: "host", Msg: fmt.Sprintf("invalid URL format: %v", err)}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		if parsed.Scheme != "" {
			return "", &ConfigError{Field: "host", Msg: fmt.Sprintf("URL scheme must be http or https, got: %s", parsed.Scheme)}
		}
		return "", &ConfigError{Field: "host", Msg: "URL must include a scheme (http:// or https://)"}
	}

	if parsed.Host == "" {
		return "", &ConfigError{Field: "host", Msg: "URL must include a valid domain"}
	}

	return strings.TrimRight(hostURL, "/"), nil
}

// SanitizeAPIKey validates an API key. A nil or blank key yields "" which
// means read-only mode. raw may be a string or *string; anything else is
// rejected, which covers keys decoded from loosely typed config files.
func SanitizeAPIKey(raw any, logger *zap.Logger) (string, error) {
	var apiKey string
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		apiKey = v
	case *string:
		if v == nil {
			return "", nil
		}
		apiKey = *v
	default:
		return "", &ConfigError{Field: "api_key", Msg: "API key must be a string"}
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", nil
	}

	sanitized := controlChars.ReplaceAllString(apiKey, "")

	if !safeKeyPattern.MatchString(sanitized) && logger != nil {
		logger.Warn("API key contains unusual characters. " +
			"Consider using a key generated with 'openssl rand -hex 32'")
	}

	if n := utf8.RuneCountInString(sanitized); n < 1 || n > MaxAPIKeyLength {
		return "", &ConfigError{
			Field: "api_key",
			Msg:   fmt.Sprintf("API key must be between 1 and %d characters", MaxAPIKeyLength),
		}
	}

	return sanitized, nil
}
