package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

func newLogger(debug bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "upnpctl: logger: %v\n", err)
		os.Exit(2)
	}
	return logger
}
