// Package persist stores the named JSON documents tweetvault keeps between
// runs: the aggregate item state, the rate-limit state and the error-id set.
//
// A Backend is chosen by DSN so the same documents can live in plain files
// next to the downloads, in an embedded badger database or in Postgres.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Well-known document keys
const (
	KeyState     = "state"
	KeyRateLimit = "rate-limit-state"
	KeyErrorSet  = "error_tweets"

	// KeyStateCorrupt holds a state document that could not be decoded,
	// copied aside before it is first overwritten
	KeyStateCorrupt = "state.corrupt"
)

// ErrInvalidKey is returned for empty or path-like keys
var ErrInvalidKey = errors.New("persist: invalid key")

// Backend reads and writes whole documents by key.
// Read reports found=false, with a nil error, when the key was never written.
type Backend interface {
	Read(key string) (data []byte, found bool, err error)
	Write(key string, data []byte) error
	Close() error
}

// ReadJSON decodes the document stored under key into v
func ReadJSON(b Backend, key string, v interface{}) (bool, error) {
	data, found, err := b.Read(key)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// WriteJSON encodes v with indentation and stores it under key
func WriteJSON(b Backend, key string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.Write(key, data)
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Build returns the backend described by dsn.
//
//	""  or file://<dir>      JSON files (defaultDir when no path is given)
//	memory://                 process-local, for tests and dry runs
//	badger://<dir>            embedded badger database
//	postgres://...            table in a Postgres database
func Build(dsn, defaultDir string) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || dsn == "file" {
		return NewFileBackend(defaultDir), nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse state backend %q: %w", dsn, err)
	}

	switch scheme := strings.ToLower(parsed.Scheme); scheme {
	case "", "file":
		return NewFileBackend(dsnPath(parsed, defaultDir)), nil
	case "memory", "mem":
		return NewMemoryBackend(), nil
	case "badger":
		return NewBadgerBackend(BadgerOptions{Directory: dsnPath(parsed, filepath.Join(defaultDir, "badger"))})
	case "postgres", "postgresql":
		return NewPostgresBackend(dsn)
	default:
		return nil, fmt.Errorf("unsupported state backend scheme: %s", scheme)
	}
}

// dsnPath extracts a directory from file://dir, file:///abs/dir or a bare path
func dsnPath(u *url.URL, fallback string) string {
	path := u.Path
	if u.Host != "" {
		path = u.Host + path
	}
	if u.Scheme == "" {
		path = u.String()
	}
	if path == "" {
		return fallback
	}
	return filepath.FromSlash(path)
}
