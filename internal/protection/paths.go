package protection

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "dpsecret"

// DefaultUserKeyStore is the per-user key file used by the "file" backend
func DefaultUserKeyStore() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, appName, "user.db"), nil
}

// DefaultMachineKeyStore is the machine-wide key file
func DefaultMachineKeyStore() string {
	return filepath.Join(defaultMachineDir(appName), "machine.db")
}
