//go:build !windows && !darwin

package protection

import "path/filepath"

func defaultMachineDir(appName string) string {
	return filepath.Join("/var/lib", appName)
}
