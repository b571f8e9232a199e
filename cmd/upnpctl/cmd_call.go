package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/seattlerb/upnp/pkg/soap"
)

func runCall(args []string) {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if fs.NArg() < 3 {
		fatal(fmt.Errorf("call needs <control-url> <service-type-urn> <action> [name=value ...]"))
	}

	endpoint := fs.Arg(0)
	serviceType := fs.Arg(1)
	action := fs.Arg(2)

	var in []soap.Param
	for _, pair := range fs.Args()[3:] {
		name, value, found := strings.Cut(pair, "=")
		if !found {
			fatal(fmt.Errorf("argument %q is not name=value", pair))
		}
		in = append(in, soap.Param{Name: name, Value: value})
	}

	logger := newLogger(*debug)
	defer logger.Sync()

	client := soap.NewClient(logger)
	out, err := client.Call(context.Background(), endpoint, serviceType, action, in)
	if err != nil {
		var upnpErr *soap.Error
		if errors.As(err, &upnpErr) {
			fmt.Fprintf(os.Stderr, "upnpctl: fault %d: %s\n", upnpErr.Code, upnpErr.Description)
			os.Exit(2)
		}
		fatal(err)
	}

	for _, p := range out {
		fmt.Printf("%s = %s\n", p.Name, p.Value)
	}
}
