package embedhttp

import "syscall"

// reuseAddrControl sets SO_REUSEADDR on the listening socket before
// bind, used when Config.ReuseAddress is set so a restarted server can
// rebind a recently-closed endpoint immediately.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
