package validation

import (
	"fmt"
	"net/url"
)

// ValidateOrigin checks one configured CORS origin. "*" is accepted as the
// wildcard; anything else must be an http or https origin without a path.
func ValidateOrigin(origin string) error {
	if origin == "" {
		return fmt.Errorf("origin cannot be empty")
	}
	if origin == "*" {
		return nil
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}

	// Only allow http/https schemes
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("origin '%s' must have a hostname", origin)
	}

	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("origin '%s' must not contain a path", origin)
	}

	return nil
}
