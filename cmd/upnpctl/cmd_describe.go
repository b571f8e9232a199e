package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/seattlerb/upnp/pkg/description"
)

func runDescribe(args []string) {
	fs := flag.NewFlagSet("describe", flag.ExitOnError)
	scpd := fs.Bool("scpd", false, "also fetch and summarize each service's SCPD")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if fs.NArg() != 1 {
		fatal(fmt.Errorf("describe needs exactly one LOCATION URL"))
	}
	location := fs.Arg(0)

	client := &http.Client{Timeout: 10 * time.Second}
	root, err := fetchRoot(client, location)
	if err != nil {
		fatal(err)
	}

	printDevice(client, location, &root.Device, "", *scpd)
}

func fetchRoot(client *http.Client, location string) (*description.Root, error) {
	resp, err := client.Get(location)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", location, resp.Status)
	}
	return description.DecodeRoot(resp.Body)
}

func printDevice(client *http.Client, location string, d *description.Device, indent string, withSCPD bool) {
	fmt.Printf("%s%s (%s)\n", indent, d.FriendlyName, d.DeviceType)
	fmt.Printf("%s  UDN: %s\n", indent, d.UDN)
	if d.Manufacturer != "" {
		fmt.Printf("%s  manufacturer: %s\n", indent, d.Manufacturer)
	}
	if d.ModelName != "" {
		fmt.Printf("%s  model: %s %s\n", indent, d.ModelName, d.ModelNumber)
	}

	for i := range d.Services {
		svc := &d.Services[i]
		fmt.Printf("%s  service %s\n", indent, svc.ServiceType)
		control, err := description.ResolveURL(location, svc.ControlURL)
		if err == nil {
			fmt.Printf("%s    control: %s\n", indent, control)
		}
		if !withSCPD {
			continue
		}
		scpdURL, err := description.ResolveURL(location, svc.SCPDURL)
		if err != nil {
			fmt.Printf("%s    scpd: %v\n", indent, err)
			continue
		}
		printSCPD(client, scpdURL, indent+"    ")
	}

	for i := range d.Devices {
		printDevice(client, location, &d.Devices[i], indent+"  ", withSCPD)
	}
}

func printSCPD(client *http.Client, scpdURL, indent string) {
	resp, err := client.Get(scpdURL)
	if err != nil {
		fmt.Printf("%sscpd: %v\n", indent, err)
		return
	}
	defer resp.Body.Close()

	scpd, err := description.DecodeSCPD(resp.Body)
	if err != nil {
		fmt.Printf("%sscpd: %v\n", indent, err)
		return
	}
	for i := range scpd.Actions {
		a := &scpd.Actions[i]
		fmt.Printf("%s%s(", indent, a.Name)
		for j := range a.Arguments {
			arg := &a.Arguments[j]
			if j > 0 {
				fmt.Print(", ")
			}
			fmt.Printf("%s %s", arg.Direction, arg.Name)
		}
		fmt.Println(")")
	}
}
