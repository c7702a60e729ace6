// Package poller drives the periodic snapshot loop: fetch a frame, write
// it into the dated tree, keep an archive copy when the period calls for
// one, and never let a single failed cycle take the loop down.
package poller
