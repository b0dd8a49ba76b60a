//go:build !unix

package lock

import "os"

// processAlive treats any findable process as alive. On platforms without
// signal 0 this errs toward refusing to reclaim a lock.
func processAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
