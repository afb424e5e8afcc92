package ux

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// HexDumper writes direction tagged hex dumps of raw frames. It implements
// diag.Tracer. A nil writer discards everything.
type HexDumper struct {
	mu sync.Mutex
	w  io.Writer
}

func NewHexDumper(w io.Writer) *HexDumper {
	return &HexDumper{w: w}
}

func (d *HexDumper) Trace(out bool, data []byte) {
	if d == nil || d.w == nil {
		return
	}
	dir := "<< device"
	if out {
		dir = ">> device"
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "%s (%d bytes)\n%s", dir, len(data), hex.Dump(data))
}
