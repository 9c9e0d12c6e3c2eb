//go:build linux || darwin

package server

import (
	"net"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestListen_ReuseAddr(t *testing.T) {
	ln, err := listen("127.0.0.1:0", 10)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()

	raw, err := ln.(syscall.Conn).SyscallConn()
	if err != nil {
		t.Fatal(err)
	}
	var opt int
	var optErr error
	raw.Control(func(fd uintptr) {
		opt, optErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR)
	})
	if optErr != nil {
		t.Fatal(optErr)
	}
	if opt == 0 {
		t.Error("SO_REUSEADDR not set on listening socket")
	}

	// Server side closes first so the port is left in TIME_WAIT.
	client, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	conn, err := ln.Accept()
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()
	client.SetReadDeadline(time.Now().Add(time.Second))
	client.Read(make([]byte, 1))
	client.Close()
	ln.Close()

	again, err := listen(addr, 10)
	if err != nil {
		t.Fatalf("rebinding %s right after close: %v", addr, err)
	}
	again.Close()
}

func TestListen_BadAddress(t *testing.T) {
	if _, err := listen("127.0.0.1:notaport", 10); err == nil {
		t.Error("expected error for bad port")
	}
}
