// Package tokens stores per-user OAuth2 access tokens for the remote calendar.
// Tokens are obtained elsewhere and imported; nothing here refreshes them.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/oauth2"
)

var (
	// ErrNoToken is returned when no token was imported for the user.
	ErrNoToken = errors.New("no token stored")
	// ErrExpired is returned when the stored token is no longer valid.
	ErrExpired = errors.New("token expired")
	// ErrInvalidUser is returned for user ids unusable as file names.
	ErrInvalidUser = errors.New("invalid user id")
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9@._-]+$`)

// FileStore keeps one oauth2.Token JSON file per user under dir.
type FileStore struct {
	dir string
}

// NewFileStore returns a token store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the token directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(userID string) (string, error) {
	if !userIDPattern.MatchString(userID) || userID == "." || userID == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidUser, userID)
	}
	return filepath.Join(s.dir, userID+".json"), nil
}

// Load returns the stored token for userID without checking its validity.
func (s *FileStore) Load(userID string) (*oauth2.Token, error) {
	path, err := s.path(userID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNoToken)
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (re-import to replace %s): %w", path, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNoToken)
	}
	return &tok, nil
}

// AccessToken returns a currently valid access token for userID.
func (s *FileStore) AccessToken(_ context.Context, userID string) (string, error) {
	tok, err := s.Load(userID)
	if err != nil {
		return "", err
	}
	if !tok.Valid() {
		return "", fmt.Errorf("user %s: %w", userID, ErrExpired)
	}
	return tok.AccessToken, nil
}

// Save persists tok for userID.
func (s *FileStore) Save(userID string, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return errors.New("token has no access_token")
	}
	path, err := s.path(userID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving token file: %w", err)
	}
	return nil
}

// Import reads an oauth2.Token JSON document from file and stores it for userID.
func (s *FileStore) Import(userID, file string) (*oauth2.Token, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parsing token JSON: %w", err)
	}
	if err := s.Save(userID, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Delete removes the stored token. A missing token is not an error.
func (s *FileStore) Delete(userID string) error {
	path, err := s.path(userID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
