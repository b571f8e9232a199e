// Command upnpctl is a small UPnP control point: it searches the
// network over SSDP, fetches and prints description documents, and
// invokes SOAP actions on remote services.
package main

import (
	"fmt"
	"os"

	"github.com/seattlerb/upnp/internal/version"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: upnpctl <command> [flags]

commands:
  search     discover devices and services over SSDP
  describe   fetch and print a device description (with -scpd, its SCPDs too)
  call       invoke a SOAP action on a remote service
  version    print version information
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "search":
		runSearch(os.Args[2:])
	case "describe":
		runDescribe(os.Args[2:])
	case "call":
		runCall(os.Args[2:])
	case "version":
		fmt.Println(version.Info())
	default:
		fmt.Fprintf(os.Stderr, "upnpctl: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "upnpctl: %v\n", err)
	os.Exit(2)
}
