//go:build !linux && !darwin

package server

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// listen falls back to the standard listener. The backlog cannot be set here
// and the platform default applies.
func listen(addr string, _ int) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "server: listening socket")
	}
	return ln, nil
}
