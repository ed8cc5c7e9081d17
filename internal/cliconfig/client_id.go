package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ClientIDFileName is the file in the state directory holding the installation id.
const ClientIDFileName = "client_id"

// LoadClientID fills cfg.ClientID from the state directory if it is not already
// set, creating a new random id on first use.
func LoadClientID(cfg *Config) error {
	if cfg.ClientID != "" {
		return nil
	}
	if cfg.StateDir == "" {
		return fmt.Errorf("client-id is required (or state-dir)")
	}

	path := filepath.Join(cfg.StateDir, ClientIDFileName)
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		id := strings.TrimSpace(string(b))
		if _, perr := uuid.Parse(id); perr != nil {
			return fmt.Errorf("read client id: %s: %w", path, perr)
		}
		cfg.ClientID = id
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("read client id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("write client id: %w", err)
	}
	cfg.ClientID = id
	return nil
}
