// Package enginelog centralizes the three severity loggers the teacher's
// core.go opens inline (info_log.txt, error_log.txt, warn_log.txt) into a
// single struct every subsystem is handed at startup, instead of each
// component opening its own files.
package enginelog

import (
	"log"
	"os"
)

type Logger struct {
	Info  *log.Logger
	Error *log.Logger
	Warn  *log.Logger

	files []*os.File
}

// New opens (or appends to) info_log.txt, error_log.txt and warn_log.txt in
// dir, matching the teacher's flag combination (O_APPEND|O_CREATE|O_WRONLY)
// and prefix/flag conventions.
func New(dir string) (*Logger, error) {
	open := func(name string) (*os.File, error) {
		return os.OpenFile(dir+"/"+name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	}

	infoFile, err := open("info_log.txt")
	if err != nil {
		return nil, err
	}
	errorFile, err := open("error_log.txt")
	if err != nil {
		infoFile.Close()
		return nil, err
	}
	warnFile, err := open("warn_log.txt")
	if err != nil {
		infoFile.Close()
		errorFile.Close()
		return nil, err
	}

	return &Logger{
		Info:  log.New(infoFile, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile),
		Error: log.New(errorFile, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile),
		Warn:  log.New(warnFile, "WARNING: ", log.Ldate|log.Ltime|log.Lshortfile),
		files: []*os.File{infoFile, errorFile, warnFile},
	}, nil
}

func (l *Logger) Close() {
	for _, f := range l.files {
		f.Close()
	}
}
