package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore, in priority order
var cookieEnvVars = []string{"TWEETVAULT_COOKIE", "TWITTER_COOKIE"}

// EnvironmentStore implements CredentialStore over environment variables.
// It is read-only and only knows the default profile.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the default profile built from the environment
func (e *EnvironmentStore) Retrieve(profile string) (*Credential, error) {
	if profile != "" && profile != DefaultProfile {
		return nil, ErrCredentialsNotFound
	}

	cookie := envCookie()
	if cookie == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Credential{
		Profile:      DefaultProfile,
		Cookie:       cookie,
		UserAgent:    os.Getenv("TWEETVAULT_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

// List returns the default profile if the environment provides one
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve(DefaultProfile)
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment carries a cookie
func (e *EnvironmentStore) Exists(profile string) bool {
	return (profile == "" || profile == DefaultProfile) && envCookie() != ""
}

func envCookie() string {
	for _, name := range cookieEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
