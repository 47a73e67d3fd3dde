// Package telemetry holds the process-wide loggers every other package logs
// through, split into an info and error handle, backed by logrus.
package telemetry

import (
	"os"

	"github.com/sirupsen/logrus"
)

var (
	// InfoLog is used for informational and warning events.
	InfoLog *logrus.Entry
	// ErrorLog is used for error and fatal events.
	ErrorLog *logrus.Entry

	base = logrus.New()
)

func init() {
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(logrus.InfoLevel)
	InfoLog = base.WithField("module", "csopesy")
	ErrorLog = InfoLog
}

// Init configures the shared loggers for a given module name and level.
// level is any name logrus.ParseLevel accepts ("debug", "info", "warn",
// "error", ...; case-insensitive); anything it rejects falls back to "info".
func Init(moduleName string, level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
	entry := base.WithField("module", moduleName)
	InfoLog = entry
	ErrorLog = entry
}

// For scopes a logger to a sub-component without changing the global level,
// e.g. telemetry.For("scheduler").WithFields(logrus.Fields{"tick": tick}).Info("tick advanced").
func For(component string) *logrus.Entry {
	return InfoLog.WithField("component", component)
}
