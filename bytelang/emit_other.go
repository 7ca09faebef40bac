//go:build !unix

package bytelang

import "os"

// syncFile falls back to the standard library on platforms without the
// unix fsync syscall (Windows).
func syncFile(f *os.File) error {
	return f.Sync()
}
