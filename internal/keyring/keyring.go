package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	service   = "roomservice-agent"
	staffUser = "staff-token"
)

var (
	// ErrNotFound is returned when no token is stored in the keyring
	ErrNotFound = errors.New("staff token not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// StaffToken retrieves the staff access token from the OS keyring.
func StaffToken() (string, error) {
	token, err := keyring.Get(service, staffUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return token, nil
}

// SetStaffToken stores the staff access token in the OS keyring.
func SetStaffToken(token string) error {
	if token == "" {
		return errors.New("staff token cannot be empty")
	}
	if err := keyring.Set(service, staffUser, token); err != nil {
		return fmt.Errorf("failed to store staff token in keyring: %w", err)
	}
	return nil
}

func DeleteStaffToken() error {
	err := keyring.Delete(service, staffUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete staff token from keyring: %w", err)
	}
	return nil
}

// ResolveStaffToken prefers the configured token and falls back to the keyring.
func ResolveStaffToken(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return StaffToken()
}
