package transport

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// peerUID reads the connecting process's effective UID off the Unix
// socket using SO_PEERCRED, rejecting any connection from a different
// user per spec.md §5's security note ("only the invoking user's
// processes may attach"). Adapted from hauntty's BSD-oriented
// LOCAL_PEERCRED/Xucred check to the Linux SO_PEERCRED ucred struct —
// both exposed through golang.org/x/sys/unix.
func peerUID(conn *net.UnixConn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("transport: syscall conn: %w", err)
	}

	var uid int
	var credErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		cred, err := unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
		if err != nil {
			credErr = err
			return
		}
		uid = int(cred.Uid)
	})
	if ctrlErr != nil {
		return 0, fmt.Errorf("transport: control: %w", ctrlErr)
	}
	if credErr != nil {
		return 0, fmt.Errorf("transport: getsockopt peercred: %w", credErr)
	}
	return uid, nil
}

func verifyPeerIsSelf(conn *net.UnixConn) error {
	uid, err := peerUID(conn)
	if err != nil {
		return err
	}
	if uid != os.Getuid() {
		return fmt.Errorf("transport: rejected connection from uid %d", uid)
	}
	return nil
}
