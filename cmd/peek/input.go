package main

import (
	"bufio"
	"io"
)

// lineInput buffers r once so the connection prompt and the chat loop share read-ahead.
func lineInput(r io.Reader) io.Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return br
	}
	return bufio.NewReader(r)
}
