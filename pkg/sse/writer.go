package sse

import (
	"bufio"
	"fmt"
)

// WriteData writes one payload line followed by the blank separator line and
// flushes w.
func WriteData(w *bufio.Writer, payload string) error {
	if _, err := fmt.Fprintf(w, "%s%s\n\n", DataPrefix, payload); err != nil {
		return err
	}
	return w.Flush()
}

// WriteDone writes the sentinel line and flushes w.
func WriteDone(w *bufio.Writer) error {
	return WriteData(w, DoneSentinel)
}
