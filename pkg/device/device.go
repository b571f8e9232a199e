// Package device holds the hierarchical UPnP device model: a root
// device, its nested sub-devices, and their services, together with
// validation, description-document generation, SSDP roster
// construction, and on-disk identity persistence.
package device

import (
	"errors"
	"fmt"
	"strings"

	"github.com/seattlerb/upnp/pkg/description"
	"github.com/seattlerb/upnp/pkg/ssdp"
	"github.com/seattlerb/upnp/pkg/uuidgen"
)

// Error kinds surfaced by the model.
var (
	ErrValidation       = errors.New("device: validation failed")
	ErrUnknownType      = errors.New("device: unknown device type")
	ErrUnknownServiceID = errors.New("device: no service id registered")
	ErrFrozen           = errors.New("device: tree is frozen after run")
)

// Device is one node in the tree. Exactly one device in a tree has no
// parent; that node is the root and owns the whole sub-tree. Parent
// links are lookup-only back-references.
type Device struct {
	Type         string
	FriendlyName string

	// Required descriptive fields.
	Manufacturer string
	ModelName    string

	// Optional descriptive fields, omitted from the description when empty.
	ManufacturerURL  string
	ModelDescription string
	ModelNumber      string
	ModelURL         string
	SerialNumber     string
	UPC              string

	// Name is the hyphenated v1 UUID identifying this device. It is
	// generated once and preserved by persistence.
	Name string

	parent      *Device
	subDevices  []*Device
	subServices []*Service

	// Root-only runtime state.
	gen    *uuidgen.Generator
	class  *Class
	frozen bool
}

// New builds a fresh root device with a newly generated UUID.
func New(gen *uuidgen.Generator, deviceType, friendlyName string) *Device {
	return &Device{
		Type:         deviceType,
		FriendlyName: friendlyName,
		Name:         gen.Next().String(),
		gen:          gen,
	}
}

// UDN returns the uuid:-prefixed unique device name.
func (d *Device) UDN() string {
	return "uuid:" + d.Name
}

// TypeURN returns the schema URN for the device type.
func (d *Device) TypeURN() string {
	return "urn:schemas-upnp-org:device:" + d.Type + ":1"
}

// Root walks parent links to the tree's root.
func (d *Device) Root() *Device {
	r := d
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Parent returns the containing device, or nil for the root.
func (d *Device) Parent() *Device {
	return d.parent
}

// SubDevices returns the ordered child devices.
func (d *Device) SubDevices() []*Device {
	return d.subDevices
}

// Services returns the ordered services of this device.
func (d *Device) Services() []*Service {
	return d.subServices
}

// Path is the HTTP path prefix for this device: "/" joined with the
// types of the device and every ancestor up to the root, root last.
func (d *Device) Path() string {
	var parts []string
	for dev := d; dev != nil; dev = dev.parent {
		parts = append(parts, dev.Type)
	}
	return "/" + strings.Join(parts, "/")
}

// AddDevice adds a sub-device, idempotently on (type, friendly name):
// when a matching child already exists the mutator runs against it and
// no new device is created.
func (d *Device) AddDevice(deviceType, friendlyName string, fn func(*Device) error) (*Device, error) {
	root := d.Root()
	if root.frozen {
		return nil, ErrFrozen
	}

	for _, child := range d.subDevices {
		if child.Type == deviceType && child.FriendlyName == friendlyName {
			if fn != nil {
				if err := fn(child); err != nil {
					return nil, err
				}
			}
			return child, nil
		}
	}

	if root.gen == nil {
		return nil, fmt.Errorf("device: %s has no UUID generator", root.FriendlyName)
	}
	child := &Device{
		Type:         deviceType,
		FriendlyName: friendlyName,
		Name:         root.gen.Next().String(),
		parent:       d,
	}
	if fn != nil {
		if err := fn(child); err != nil {
			return nil, err
		}
	}
	d.subDevices = append(d.subDevices, child)
	return child, nil
}

// AddService adds a service of the given type, idempotently. The
// service id comes from the root device's class catalog; a type the
// catalog does not know is fatal.
func (d *Device) AddService(serviceType string) (*Service, error) {
	root := d.Root()
	if root.frozen {
		return nil, ErrFrozen
	}

	for _, svc := range d.subServices {
		if svc.Type == serviceType {
			return svc, nil
		}
	}

	if root.class == nil {
		return nil, fmt.Errorf("%w for %s: device has no class", ErrUnknownServiceID, serviceType)
	}
	id, ok := root.class.ServiceIDs[serviceType]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrUnknownServiceID, serviceType)
	}
	svc := &Service{Type: serviceType, ID: id, device: d}
	d.subServices = append(d.subServices, svc)
	return svc, nil
}

// AddServiceWithID adds a service with an explicit service id,
// bypassing the class catalog. Idempotent on type.
func (d *Device) AddServiceWithID(serviceType, serviceID string) (*Service, error) {
	if d.Root().frozen {
		return nil, ErrFrozen
	}
	for _, svc := range d.subServices {
		if svc.Type == serviceType {
			return svc, nil
		}
	}
	svc := &Service{Type: serviceType, ID: serviceID, device: d}
	d.subServices = append(d.subServices, svc)
	return svc, nil
}

// Freeze marks the tree structurally immutable. Run-time entry points
// call this before advertising begins.
func (d *Device) Freeze() {
	d.Root().frozen = true
}

// Validate recursively asserts the invariants every description and
// advertisement depends on: non-empty identity and required
// descriptive fields, and a service id on every service.
func (d *Device) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: device %q has no name", ErrValidation, d.FriendlyName)
	}
	if d.FriendlyName == "" {
		return fmt.Errorf("%w: device %s missing friendly name", ErrValidation, d.Type)
	}
	if d.Manufacturer == "" {
		return fmt.Errorf("%w: device %q missing manufacturer", ErrValidation, d.FriendlyName)
	}
	if d.ModelName == "" {
		return fmt.Errorf("%w: device %q missing model name", ErrValidation, d.FriendlyName)
	}
	for _, svc := range d.subServices {
		if svc.ID == "" {
			return fmt.Errorf("%w for %s", ErrUnknownServiceID, svc.Type)
		}
	}
	for _, child := range d.subDevices {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Description renders the device description document for the tree
// rooted at this device. Validation failures abort the rendering.
func (d *Device) Description() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return description.EncodeRoot(&description.Root{Device: d.docDevice()})
}

func (d *Device) docDevice() description.Device {
	doc := description.Device{
		DeviceType:       d.TypeURN(),
		UDN:              d.UDN(),
		FriendlyName:     d.FriendlyName,
		Manufacturer:     d.Manufacturer,
		ManufacturerURL:  d.ManufacturerURL,
		ModelDescription: d.ModelDescription,
		ModelName:        d.ModelName,
		ModelNumber:      d.ModelNumber,
		ModelURL:         d.ModelURL,
		SerialNumber:     d.SerialNumber,
		UPC:              d.UPC,
	}
	for _, svc := range d.subServices {
		doc.Services = append(doc.Services, svc.Ref())
	}
	for _, child := range d.subDevices {
		doc.Devices = append(doc.Devices, child.docDevice())
	}
	return doc
}

// Advertisements builds the SSDP roster in announcement order:
// upnp:rootdevice, then for each device its UUID, its type URN, and
// its services' type URNs, walking the tree in declared order.
func (d *Device) Advertisements() []ssdp.Target {
	root := d.Root()
	targets := []ssdp.Target{{
		NT:  ssdp.TargetRoot,
		USN: root.UDN() + "::" + ssdp.TargetRoot,
	}}
	root.appendTargets(&targets, root.UDN())
	return targets
}

func (d *Device) appendTargets(targets *[]ssdp.Target, rootName string) {
	*targets = append(*targets,
		ssdp.Target{NT: d.UDN(), USN: d.UDN()},
		ssdp.Target{NT: d.TypeURN(), USN: rootName + "::" + d.TypeURN()},
	)
	for _, svc := range d.subServices {
		*targets = append(*targets, ssdp.Target{
			NT:  svc.TypeURN(),
			USN: rootName + "::" + svc.TypeURN(),
		})
	}
	for _, child := range d.subDevices {
		child.appendTargets(targets, rootName)
	}
}
