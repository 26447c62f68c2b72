package main

import (
	"fmt"
	"io"
	"time"
)

// logger is a small leveled writer modeled on the original tool's own
// hand-rolled logger: three levels (quiet, normal, verbose), each message
// timestamped, with quiet suppressing everything but errors.
type logger struct {
	w     io.Writer
	level logLevel
}

func newLogger(w io.Writer, level logLevel) *logger {
	return &logger{w: w, level: level}
}

func (l *logger) stamp() string {
	return time.Now().Format("15:04:05")
}

func (l *logger) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(l.w, "[%s] error: %s\n", l.stamp(), fmt.Sprintf(format, args...))
}

func (l *logger) Infof(format string, args ...interface{}) {
	if l.level == levelQuiet {
		return
	}
	fmt.Fprintf(l.w, "[%s] %s\n", l.stamp(), fmt.Sprintf(format, args...))
}

func (l *logger) Debugf(format string, args ...interface{}) {
	if l.level != levelVerbose {
		return
	}
	fmt.Fprintf(l.w, "[%s] debug: %s\n", l.stamp(), fmt.Sprintf(format, args...))
}
