package launcher

import "os"

// Windows has no SIGTERM to deliver; the child is killed.
func terminate(p *os.Process) error {
	return p.Kill()
}
