// Package resilience classifies infrastructure failures and retries transient ones.
package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// ConnectivityError reports that a backing store could not be reached. It is
// fatal to the operation in progress.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return "connectivity: " + e.Op + ": " + e.Err.Error()
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// connectivityPatterns catch wrapped errors that lost their type on the way up.
var connectivityPatterns = []string{
	"connection refused",
	"connection reset by peer",
	"broken pipe",
	"no such host",
	"temporary failure in name resolution",
	"i/o timeout",
	"tls handshake timeout",
	"server closed the connection unexpectedly",
	"failed to connect",
}

// IsConnectivity reports whether err (or anything it wraps) is a network or
// connection-establishment failure.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}

	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range connectivityPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// AsConnectivity wraps err in a ConnectivityError when it classifies as one,
// otherwise returns it unchanged.
func AsConnectivity(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return err
	}
	if IsConnectivity(err) {
		return &ConnectivityError{Op: op, Err: err}
	}
	return err
}
