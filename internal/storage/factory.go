package storage

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// DefaultDataFile returns the JSON data file used when no DSN is configured.
func DefaultDataFile() (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "schedsync.json"), nil
}

// BuildStoreFromDSN selects a backend by DSN scheme: memory://, file://path
// (or a bare path) and postgres://.
func BuildStoreFromDSN(dsn string) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		path, err := DefaultDataFile()
		if err != nil {
			return nil, err
		}
		return NewFileStore(path), nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing data dsn: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "", "file":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return NewFileStore(path), nil
	case "memory", "mem":
		return NewMemoryStore(), nil
	case "postgres", "postgresql":
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported data backend scheme: %s", parsed.Scheme)
	}
}

func dsnPath(parsed *url.URL, raw string) (string, error) {
	if parsed.Scheme == "" {
		return raw, nil
	}
	path := parsed.Path
	if path == "" {
		path = parsed.Opaque
	}
	if parsed.Host != "" && parsed.Host != "localhost" {
		// file://relative/path parses the first segment as host.
		path = parsed.Host + path
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: file dsn without path", ErrInvalidRecord)
	}
	return path, nil
}
