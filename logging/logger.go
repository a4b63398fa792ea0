package logging

import (
	"io"
	"os"

	gnarkLogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
)

var log = newLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

func newLogger(sink io.Writer) zerolog.Logger {
	return zerolog.New(sink).With().Timestamp().Str("service", "district-prover").Logger()
}

func Logger() *zerolog.Logger {
	return &log
}

// SetJSONOutput switches to machine-readable logs and repoints gnark's
// internal logger at the same sink, so constraint compilation and proving
// progress end up in the service log stream.
func SetJSONOutput() {
	log = newLogger(os.Stdout)
	gnarkLogger.Set(log)
}
