package gcloud

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// ErrNotConfigured is returned when neither an API key nor a service account
// file is available.
var ErrNotConfigured = errors.New("google credentials not configured")

const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ClientOptions returns the options shared by every Google API client. An
// API key wins over a service account file, matching how the speech,
// translate and text-to-speech endpoints are usually provisioned.
func ClientOptions(ctx context.Context, apiKey, credPath string, scopes ...string) ([]option.ClientOption, error) {
	if key := strings.TrimSpace(apiKey); key != "" {
		return []option.ClientOption{option.WithAPIKey(key)}, nil
	}
	if strings.TrimSpace(credPath) == "" {
		return nil, ErrNotConfigured
	}

	creds, err := os.ReadFile(credPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	if len(scopes) == 0 {
		scopes = []string{CloudPlatformScope}
	}
	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: scopes})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	return []option.ClientOption{option.WithCredentials(config)}, nil
}
