//go:build windows

package config

import (
	"errors"
	"fmt"
	"os"
)

// openConfigFile opens the config file. Windows has no O_NOFOLLOW.
func openConfigFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("config: failed to open file: %w", err)
	}
	return f, nil
}

// checkFileAccess on Windows is a no-op; ACLs govern access.
func checkFileAccess(_ os.FileInfo) error {
	return nil
}
