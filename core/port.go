package core

import (
	"os"
	"path/filepath"
)

const (
	// DefaultHost is the only interface the server binds.
	DefaultHost = "127.0.0.1"
	// DefaultPort is tried first; an ephemeral port is used when it is taken.
	DefaultPort = 7891
	// PortFileName is written to the temp dir with the bound port.
	PortFileName = "wingman.port"
)

// PortFilePath returns where a running server publishes its port.
func PortFilePath() string {
	return filepath.Join(os.TempDir(), PortFileName)
}
