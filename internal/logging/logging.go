package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Config sends the process logger to dest, tagging every entry with prefix.
func Config(dest, prefix string) {
	f, err := os.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening file: %v", err)
	}
	log.SetOutput(f)
	log.SetReportCaller(true)
	log.SetFormatter(&prefixFormatter{
		prefix: prefix,
		inner: &log.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		},
	})
}

// SetVerbose switches between debug and info level.
func SetVerbose(verbose bool) {
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

type prefixFormatter struct {
	prefix string
	inner  log.Formatter
}

func (f *prefixFormatter) Format(entry *log.Entry) ([]byte, error) {
	line, err := f.inner.Format(entry)
	if err != nil {
		return nil, err
	}
	return append([]byte(f.prefix), line...), nil
}
