package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// recordVersion tags the on-disk schema. Unknown versions are
// rejected, never guessed at.
const recordVersion = 1

// ErrNotCached reports that no record exists for a (type, friendly
// name) pair.
var ErrNotCached = errors.New("device: not cached")

// IsNotCached reports whether err means the device has never been
// persisted.
func IsNotCached(err error) bool {
	return errors.Is(err, ErrNotCached)
}

// record is the persisted form of one device: identity and the
// descriptive fields only. Runtime state — handlers, sockets, servers —
// is deliberately excluded; loading reconstructs a server-less tree.
type record struct {
	Version int `json:"version,omitempty"`

	Type         string `json:"type"`
	FriendlyName string `json:"friendly_name"`
	Name         string `json:"name"`

	Manufacturer     string `json:"manufacturer,omitempty"`
	ManufacturerURL  string `json:"manufacturer_url,omitempty"`
	ModelDescription string `json:"model_description,omitempty"`
	ModelName        string `json:"model_name,omitempty"`
	ModelNumber      string `json:"model_number,omitempty"`
	ModelURL         string `json:"model_url,omitempty"`
	SerialNumber     string `json:"serial_number,omitempty"`
	UPC              string `json:"upc,omitempty"`

	SubDevices  []record        `json:"sub_devices,omitempty"`
	SubServices []serviceRecord `json:"sub_services,omitempty"`
}

type serviceRecord struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// CachePath returns the record location for a (type, friendly name)
// pair under the cache directory.
func CachePath(dir, deviceType, friendlyName string) string {
	return filepath.Join(dir, deviceType, friendlyName)
}

// Dump persists the tree rooted at d. Only the root of a tree may be
// dumped; the record lands at <dir>/<type>/<friendly name>.
func (d *Device) Dump(dir string) error {
	if d.parent != nil {
		return fmt.Errorf("device: only the root device can be dumped")
	}

	rec := d.toRecord()
	rec.Version = recordVersion
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("device: encode record: %w", err)
	}

	path := CachePath(dir, d.Type, d.FriendlyName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("device: create cache dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("device: write record: %w", err)
	}
	return nil
}

// Load revives a persisted tree. The result has identity and
// descriptive fields but no handlers; run Setup hooks to reattach
// behavior.
func Load(dir, deviceType, friendlyName string) (*Device, error) {
	path := CachePath(dir, deviceType, friendlyName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotCached, deviceType, friendlyName)
		}
		return nil, fmt.Errorf("device: read record: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("device: decode record %s: %w", path, err)
	}
	if rec.Version != recordVersion {
		return nil, fmt.Errorf("device: record %s has unknown version %d", path, rec.Version)
	}

	return rec.toDevice(nil), nil
}

func (d *Device) toRecord() record {
	rec := record{
		Type:             d.Type,
		FriendlyName:     d.FriendlyName,
		Name:             d.Name,
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
		rec.SubServices = append(rec.SubServices, serviceRecord{Type: svc.Type, ID: svc.ID})
	}
	for _, child := range d.subDevices {
		rec.SubDevices = append(rec.SubDevices, child.toRecord())
	}
	return rec
}

func (rec *record) toDevice(parent *Device) *Device {
	d := &Device{
		Type:             rec.Type,
		FriendlyName:     rec.FriendlyName,
		Name:             rec.Name,
		Manufacturer:     rec.Manufacturer,
		ManufacturerURL:  rec.ManufacturerURL,
		ModelDescription: rec.ModelDescription,
		ModelName:        rec.ModelName,
		ModelNumber:      rec.ModelNumber,
		ModelURL:         rec.ModelURL,
		SerialNumber:     rec.SerialNumber,
		UPC:              rec.UPC,
		parent:           parent,
	}
	for _, sr := range rec.SubServices {
		d.subServices = append(d.subServices, &Service{Type: sr.Type, ID: sr.ID, device: d})
	}
	for i := range rec.SubDevices {
		d.subDevices = append(d.subDevices, rec.SubDevices[i].toDevice(d))
	}
	return d
}
