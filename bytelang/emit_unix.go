//go:build unix

package bytelang

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile fsyncs f via the raw syscall, avoiding the extra stat os.Sync
// does internally on some platforms.
func syncFile(f *os.File) error {
	return unix.Fsync(int(f.Fd()))
}
