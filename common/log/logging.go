package log

import (
	stdlog "log"
	"log/syslog"
	"os"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("")

var leveledBackend logging.LeveledBackend

var syslogFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.6s} ▶ %{message}`,
)
var stderrFormat = logging.MustStringFormatter(
	`%{color}bootstrapd ▶ %{level:.6s} %{message}%{color:reset}`,
)

func SetupLogging(prefix string, defaultLogLevel logging.Level, trySyslog bool) *logging.Logger {
	var backend logging.Backend
	if trySyslog {
		var err error
		backend, err = logging.NewSyslogBackendPriority(prefix, syslog.LOG_NOTICE)
		if err == nil {
			logging.SetFormatter(syslogFormat)
			//	direct panic output to syslog as well
			if syslogBackend, ok := backend.(*logging.SyslogBackend); ok {
				stdlog.SetOutput(syslogBackend.Writer)
			}
		} else {
			backend = nil
		}
	}
	if backend == nil {
		backend = logging.NewLogBackend(os.Stderr, prefix, 0)
		logging.SetFormatter(stderrFormat)
	}
	leveledBackend = logging.AddModuleLevel(backend)
	level := defaultLogLevel
	if env := os.Getenv("BOOTSTRAP_LOG_LEVEL"); env != "" {
		if parsed, err := logging.LogLevel(env); err == nil {
			level = parsed
		}
	}
	leveledBackend.SetLevel(level, "")

	logging.SetBackend(leveledBackend)
	return log
}

// SetLevel applies a named level ("DEBUG", "INFO", ...) to the active
// backend, overriding whatever SetupLogging chose.
func SetLevel(name string) (err error) {
	level, err := logging.LogLevel(name)
	if err != nil {
		return
	}
	leveledBackend.SetLevel(level, "")
	return
}
