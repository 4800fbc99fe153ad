package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Tiliavir/schedsync/internal/calsync"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", &calsync.Error{Op: "create", Kind: calsync.ErrInvalidInput}, 1},
		{"not found", &calsync.Error{Op: "delete", Kind: calsync.ErrNotFound}, 1},
		{"usage", fmt.Errorf("%w: bad flag", errUsage), 1},
		{"remote", &calsync.Error{Op: "create", Kind: calsync.ErrRemoteAPI, Err: errors.New("500")}, 2},
		{"auth", &calsync.Error{Op: "reconcile", Kind: calsync.ErrAuth}, 2},
		{"plain", errors.New("disk full"), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode = %d, want %d", got, tt.want)
			}
		})
	}
}
