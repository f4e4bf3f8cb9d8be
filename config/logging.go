package config

import (
	"io"

	logging "gopkg.in/op/go-logging.v1"
)

const logFormat = `%{time:2006-01-02 15:04:05.000} %{level:.4s} [%{module}] %{message}`

// SetupLogging installs a single formatted backend writing to w for every
// module logger, filtered at level.
func SetupLogging(w io.Writer, level string) error {
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return err
	}
	backend := logging.NewLogBackend(w, "", 0)
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(logFormat))
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(lvl, "")
	logging.SetBackend(leveled)
	return nil
}
