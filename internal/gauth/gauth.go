// Package gauth builds Google API client options from a service account.
package gauth

import (
	"encoding/base64"
	"fmt"
	"os"

	"google.golang.org/api/option"
)

// Credentials points at a service account key, either as a file path or as
// base64 encoded JSON. The path wins when both are set.
type Credentials struct {
	Path   string
	Base64 string
}

func (c Credentials) Empty() bool { return c.Path == "" && c.Base64 == "" }

// ClientOptions returns the options needed to call a Google API with the
// given scopes.
func ClientOptions(c Credentials, scopes ...string) ([]option.ClientOption, error) {
	opts := []option.ClientOption{option.WithScopes(scopes...)}
	switch {
	case c.Path != "":
		if _, err := os.Stat(c.Path); err != nil {
			return nil, fmt.Errorf("service account json: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(c.Path))
	case c.Base64 != "":
		raw, err := base64.StdEncoding.DecodeString(c.Base64)
		if err != nil {
			return nil, fmt.Errorf("service account json: decode base64: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(raw))
	default:
		return nil, fmt.Errorf("service account json: no credentials configured")
	}
	return opts, nil
}
