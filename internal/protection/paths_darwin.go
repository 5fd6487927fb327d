//go:build darwin

package protection

import "path/filepath"

func defaultMachineDir(appName string) string {
	return filepath.Join("/Library/Application Support", appName)
}
