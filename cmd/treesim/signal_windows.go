//go:build windows

package main

import (
	"os"
	"os/signal"
)

// notifySignals relays the signals that abort a running refinement.
// Only Ctrl+C exists on Windows.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
