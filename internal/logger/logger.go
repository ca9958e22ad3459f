package logger

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
)

const flags = log.Ldate | log.Ltime | log.Lshortfile

// Info and Error discard output until Init or InitStdout is called.
var (
	Info  = log.New(io.Discard, "INFO: ", flags)
	Error = log.New(io.Discard, "ERROR: ", flags)
)

// DefaultFile is the log file name used when Options.File is empty.
const DefaultFile = "opsboard.log"

// Options says where the server logs go.
type Options struct {
	Dir  string // created if missing
	File string // name inside Dir
}

// Path is the log file Init writes to.
func (o Options) Path() string {
	name := o.File
	if name == "" {
		name = DefaultFile
	}
	return filepath.Join(o.Dir, name)
}

// Init sends both loggers to stdout and the log file, appending to it.
// Error lines also go to stderr so they stand out under a supervisor.
func Init(opts Options) (io.Closer, error) {
	if opts.Dir == "" {
		return nil, errors.New("log directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(opts.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}

	Info.SetOutput(io.MultiWriter(os.Stdout, f))
	Error.SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}

// InitStdout is for one-shot CLI commands: no log file.
func InitStdout() {
	Info.SetOutput(os.Stdout)
	Error.SetOutput(os.Stderr)
}

// Discard silences both loggers again.
func Discard() {
	Info.SetOutput(io.Discard)
	Error.SetOutput(io.Discard)
}
