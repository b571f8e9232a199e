package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seattlerb/upnp/internal/registry"
	"github.com/seattlerb/upnp/internal/store"
	"github.com/seattlerb/upnp/pkg/ssdp"
)

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	target := fs.String("target", "", "search target (default: ssdp:all)")
	deviceType := fs.String("device", "", "device type shorthand, e.g. MediaServer.1")
	serviceType := fs.String("service", "", "service type shorthand, e.g. ContentDirectory.1")
	root := fs.Bool("root", false, "search for root devices only")
	timeout := fs.Duration("timeout", 3*time.Second, "how long to wait for responses")
	dbPath := fs.String("db", "", "record results in this advertisement cache")
	debug := fs.Bool("debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	var targets []string
	switch {
	case *root:
		targets = append(targets, ssdp.TargetRoot)
	case *deviceType != "":
		targets = append(targets, ssdp.DeviceTarget(*deviceType))
	case *serviceType != "":
		targets = append(targets, ssdp.ServiceTarget(*serviceType))
	case *target != "":
		targets = append(targets, *target)
	}

	logger := newLogger(*debug)
	defer logger.Sync()

	ctx := context.Background()
	found, err := ssdp.SearchFor(ctx, ssdp.Config{}, *timeout, logger, targets...)
	if err != nil {
		fatal(err)
	}

	var reg *registry.Registry
	if *dbPath != "" {
		db, err := store.New(*dbPath)
		if err != nil {
			fatal(err)
		}
		defer db.Close()
		if reg, err = registry.New(ctx, db, logger); err != nil {
			fatal(err)
		}
	}

	seen := make(map[string]bool)
	for _, adv := range found {
		if reg != nil {
			if err := reg.Observe(ctx, adv); err != nil {
				logger.Warn("advertisement not recorded", zap.Error(err))
			}
		}
		switch a := adv.(type) {
		case *ssdp.Response:
			if seen[a.Name] {
				continue
			}
			seen[a.Name] = true
			fmt.Printf("%s\n  ST: %s\n  LOCATION: %s\n  SERVER: %s\n", a.Name, a.Target, a.Location, a.Server)
		case *ssdp.Notification:
			if !a.Alive() || seen[a.Name] {
				continue
			}
			seen[a.Name] = true
			fmt.Printf("%s\n  NT: %s\n  LOCATION: %s\n  SERVER: %s\n", a.Name, a.Type, a.Location, a.Server)
		}
	}
	fmt.Printf("%d unique advertisements\n", len(seen))
}
