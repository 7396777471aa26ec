package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Identity is the registered consumer this machine acts as. The file is
// written at registration time and removed at unregistration; its absence
// simply means "not registered" and is never an error for the sync layer.
type Identity struct {
	ConsumerUUID string    `json:"consumerUuid"`
	Name         string    `json:"name"`
	Owner        string    `json:"owner,omitempty"`
	RegisteredAt time.Time `json:"registeredAt,omitempty"`
}

// New creates an identity with a freshly generated consumer UUID.
func New(name, owner string) *Identity {
	return &Identity{
		ConsumerUUID: uuid.NewString(),
		Name:         name,
		Owner:        owner,
		RegisteredAt: time.Now().UTC(),
	}
}

// Valid reports whether the identity carries a well-formed consumer UUID.
func (i *Identity) Valid() bool {
	if i == nil || i.ConsumerUUID == "" {
		return false
	}
	_, err := uuid.Parse(i.ConsumerUUID)
	return err == nil
}

// Load reads the identity file at path. A missing file returns (nil, nil):
// the machine is not registered.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read identity %s: %w", path, err)
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("failed to parse identity %s: %w", path, err)
	}
	return &id, nil
}

// Save writes the identity file, creating its directory if needed.
func (i *Identity) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create identity directory: %w", err)
	}
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write identity %s: %w", path, err)
	}
	return nil
}

// Delete removes the identity file. Deleting an absent file is a no-op.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove identity %s: %w", path, err)
	}
	return nil
}
