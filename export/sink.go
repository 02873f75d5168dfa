package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes documents into Dir, creating it when missing. Only the base
// name of the filename is used.
type FileSink struct {
	Dir string
}

func (s FileSink) Deliver(filename string, data []byte) error {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("invalid output name %q", filename)
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}
