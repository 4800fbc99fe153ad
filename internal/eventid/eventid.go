// Package eventid generates client-side event identifiers for remote calendars.
//
// Identifiers are drawn from the base32hex alphabet the provider accepts for
// event ids. Uniqueness is checked against locally known (calendar, event)
// pairs only; an id created on the provider by another client is not visible
// here and surfaces later as a conflict on insert.
package eventid

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

const (
	// Alphabet is the set of characters allowed in generated ids.
	Alphabet = "abcdefghijklmnopqrstuv0123456789"
	// MinLength and MaxLength bound the generated id length (inclusive).
	MinLength = 30
	MaxLength = 100
	// DefaultMaxAttempts caps regeneration after collisions.
	DefaultMaxAttempts = 1000
)

// ErrExhausted is returned when no unused id was found within the attempt cap.
var ErrExhausted = errors.New("event id generation exhausted")

// Exister reports whether an event id is already in use for a calendar.
type Exister interface {
	ExistsByRemoteKey(ctx context.Context, calendarID, eventID string) (bool, error)
}

// Generator produces event ids that do not collide with stored schedules.
type Generator struct {
	store       Exister
	maxAttempts int
	random      io.Reader
}

// NewGenerator returns a Generator checking candidates against store.
// maxAttempts <= 0 selects DefaultMaxAttempts.
func NewGenerator(store Exister, maxAttempts int) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Generator{store: store, maxAttempts: maxAttempts, random: rand.Reader}
}

// Generate returns an id unused within calendarID.
func (g *Generator) Generate(ctx context.Context, calendarID string) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate, err := g.candidate()
		if err != nil {
			return "", err
		}
		exists, err := g.store.ExistsByRemoteKey(ctx, calendarID, candidate)
		if err != nil {
			return "", fmt.Errorf("checking event id: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts for calendar %s", ErrExhausted, g.maxAttempts, calendarID)
}

func (g *Generator) candidate() (string, error) {
	span, err := rand.Int(g.random, big.NewInt(MaxLength-MinLength+1))
	if err != nil {
		return "", fmt.Errorf("reading randomness: %w", err)
	}
	length := MinLength + int(span.Int64())
	size := big.NewInt(int64(len(Alphabet)))
	id := make([]byte, length)
	for i := range id {
		n, err := rand.Int(g.random, size)
		if err != nil {
			return "", fmt.Errorf("reading randomness: %w", err)
		}
		id[i] = Alphabet[n.Int64()]
	}
	return string(id), nil
}
