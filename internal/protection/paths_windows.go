//go:build windows

package protection

import (
	"os"
	"path/filepath"
)

func defaultMachineDir(appName string) string {
	programData := os.Getenv("PROGRAMDATA")
	if programData == "" {
		programData = `C:\ProgramData`
	}
	return filepath.Join(programData, appName)
}
