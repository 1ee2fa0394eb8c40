package utils

import (
	"io"
)

// CloserWrapper runs OnClose after the wrapped reader is closed.
type CloserWrapper struct {
	io.ReadCloser
	OnClose func()
}

func (c *CloserWrapper) Close() error {
	defer c.OnClose()
	return c.ReadCloser.Close()
}
