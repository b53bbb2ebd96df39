package expand

import (
	"log/slog"

	"github.com/nvandessel/split-nlogo/internal/naming"
	"github.com/nvandessel/split-nlogo/internal/nlogo"
)

// DocumentWriter is a RunSink that writes each run as a setup document
// named by Policy.
type DocumentWriter struct {
	Policy naming.Policy
	Logger *slog.Logger
}

// Emit writes run to its file. Errors from the file system are returned
// unwrapped so the caller sees the *fs.PathError.
func (w *DocumentWriter) Emit(run RunInstance) error {
	path := w.Policy.RunFilePath(run.Experiment, run.Number, run.Width)
	if err := nlogo.WriteRunFile(path, run.Document); err != nil {
		return err
	}
	if w.Logger != nil {
		w.Logger.Debug("wrote run", "experiment", run.Experiment, "run", run.Number, "path", path)
	}
	return nil
}

// MultiSink emits each run to every sink in order, stopping at the first
// error.
type MultiSink []RunSink

// Emit implements RunSink.
func (m MultiSink) Emit(run RunInstance) error {
	for _, s := range m {
		if err := s.Emit(run); err != nil {
			return err
		}
	}
	return nil
}
