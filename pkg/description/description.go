// Package description emits and parses the two XML documents UPnP 1.0
// requires of a device: the device description and each service's
// SCPD. Document shapes follow the UPnP device/service schemas; field
// order is fixed so two emissions of the same tree are byte-identical.
package description

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Schema namespaces for the two document kinds.
const (
	DeviceNamespace  = "urn:schemas-upnp-org:device-1-0"
	ServiceNamespace = "urn:schemas-upnp-org:service-1-0"
)

// Header is prepended to every emitted document.
const Header = "<?xml version=\"1.0\"?>\n"

// ErrBadDocument reports a document that is not a valid UPnP description.
var ErrBadDocument = errors.New("description: invalid document")

// identRe guards identifiers that end up inside SOAP messages; anything
// outside \w would allow markup injection.
var identRe = regexp.MustCompile(`\A\w*\z`)

// SpecVersion is the fixed <specVersion> block.
type SpecVersion struct {
	Major int `xml:"major"`
	Minor int `xml:"minor"`
}

// Root is the device description document.
type Root struct {
	XMLName     xml.Name    `xml:"urn:schemas-upnp-org:device-1-0 root"`
	SpecVersion SpecVersion `xml:"specVersion"`
	Device      Device      `xml:"device"`
}

// Device describes one device in the tree. Optional descriptive fields
// are omitted when empty, never rendered as empty elements.
type Device struct {
	DeviceType       string `xml:"deviceType"`
	UDN              string `xml:"UDN"`
	FriendlyName     string `xml:"friendlyName"`
	Manufacturer     string `xml:"manufacturer"`
	ManufacturerURL  string `xml:"manufacturerURL,omitempty"`
	ModelDescription string `xml:"modelDescription,omitempty"`
	ModelName        string `xml:"modelName"`
	ModelNumber      string `xml:"modelNumber,omitempty"`
	ModelURL         string `xml:"modelURL,omitempty"`
	SerialNumber     string `xml:"serialNumber,omitempty"`
	UPC              string `xml:"UPC,omitempty"`

	Services []ServiceRef `xml:"serviceList>service"`
	Devices  []Device     `xml:"deviceList>device"`
}

// ServiceRef is a <service> entry inside a device's serviceList.
type ServiceRef struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	SCPDURL     string `xml:"SCPDURL"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
}

// EncodeRoot renders the device description document.
func EncodeRoot(root *Root) ([]byte, error) {
	root.SpecVersion = SpecVersion{Major: 1, Minor: 0}
	body, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("description: encode root: %w", err)
	}
	return append([]byte(Header), body...), nil
}

// DecodeRoot parses a device description, validating the namespace and
// the spec version.
func DecodeRoot(r io.Reader) (*Root, error) {
	var root Root
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("description: decode root: %w", err)
	}
	if root.XMLName.Space != DeviceNamespace {
		return nil, fmt.Errorf("%w: namespace %q", ErrBadDocument, root.XMLName.Space)
	}
	if err := checkVersion(root.SpecVersion); err != nil {
		return nil, err
	}
	trimDevice(&root.Device)
	return &root, nil
}

func checkVersion(v SpecVersion) error {
	if v.Major != 1 || v.Minor != 0 {
		return fmt.Errorf("%w: spec version %d.%d", ErrBadDocument, v.Major, v.Minor)
	}
	return nil
}

// trimDevice strips the leading/trailing whitespace tolerated in
// remote documents, recursively.
func trimDevice(d *Device) {
	fields := []*string{
		&d.DeviceType, &d.UDN, &d.FriendlyName, &d.Manufacturer,
		&d.ManufacturerURL, &d.ModelDescription, &d.ModelName,
		&d.ModelNumber, &d.ModelURL, &d.SerialNumber, &d.UPC,
	}
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
	for i := range d.Services {
		s := &d.Services[i]
		s.ServiceType = strings.TrimSpace(s.ServiceType)
		s.ServiceID = strings.TrimSpace(s.ServiceID)
		s.SCPDURL = strings.TrimSpace(s.SCPDURL)
		s.ControlURL = strings.TrimSpace(s.ControlURL)
		s.EventSubURL = strings.TrimSpace(s.EventSubURL)
	}
	for i := range d.Devices {
		trimDevice(&d.Devices[i])
	}
}
