// Package readers defines the sources that push TPMS readings into lantern.
package readers

// Reader is an interface that provides standard methods for the various
// reading sources
type Reader interface {
	StartReader() error
	StopReader() error
	ReaderName() string
}
