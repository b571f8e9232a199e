package device

import (
	"strings"
	"testing"

	"github.com/seattlerb/upnp/pkg/soap"
	"github.com/seattlerb/upnp/pkg/uuidgen"
)

func testGen() *uuidgen.Generator {
	return uuidgen.NewWithNode([6]byte{0xf6, 0x6b, 0xad, 0x1e, 0x3f, 0x3a})
}

// buildTestDevice assembles the canonical test tree: TestDevice with
// one TestService exposing TestAction(in TestInput, out TestOutput).
func buildTestDevice(t *testing.T) *Device {
	t.Helper()

	d := New(testGen(), "TestDevice", "test")
	d.Manufacturer = "M"
	d.ModelName = "X"

	svc, err := d.AddServiceWithID("TestService", ServiceID("seattlerb.org", "TestService"))
	if err != nil {
		t.Fatalf("AddServiceWithID() error = %v", err)
	}
	if err := svc.AddVariable(StateVariable{Name: "TestInVar", DataType: "string"}); err != nil {
		t.Fatalf("AddVariable() error = %v", err)
	}
	if err := svc.AddVariable(StateVariable{Name: "TestOutVar", DataType: "string"}); err != nil {
		t.Fatalf("AddVariable() error = %v", err)
	}
	err = svc.AddAction("TestAction",
		func(ctx *soap.Context, in []any) ([]any, error) {
			return []any{in[0].(string)}, nil
		},
		Argument{Direction: soap.In, Name: "TestInput", RelatedStateVariable: "TestInVar"},
		Argument{Direction: soap.Out, Name: "TestOutput", RelatedStateVariable: "TestOutVar"},
	)
	if err != nil {
		t.Fatalf("AddAction() error = %v", err)
	}
	return d
}

func TestNewDeviceHasName(t *testing.T) {
	d := New(testGen(), "TestDevice", "test")
	if d.Name == "" {
		t.Fatal("New() device has empty Name")
	}
	if !strings.HasPrefix(d.UDN(), "uuid:") {
		t.Errorf("UDN() = %q, want uuid: prefix", d.UDN())
	}
}

func TestTypeURNs(t *testing.T) {
	d := buildTestDevice(t)
	if got := d.TypeURN(); got != "urn:schemas-upnp-org:device:TestDevice:1" {
		t.Errorf("TypeURN() = %q", got)
	}
	svc := d.Services()[0]
	if got := svc.TypeURN(); got != "urn:schemas-upnp-org:service:TestService:1" {
		t.Errorf("service TypeURN() = %q", got)
	}
}

func TestServiceID(t *testing.T) {
	got := ServiceID("seattlerb.org", "TestService")
	if got != "urn:seattlerb-org:serviceId:TestService" {
		t.Errorf("ServiceID() = %q", got)
	}
}

func TestServiceURLs(t *testing.T) {
	d := buildTestDevice(t)
	svc := d.Services()[0]

	if got := svc.SCPDURL(); got != "/TestDevice/TestService" {
		t.Errorf("SCPDURL() = %q, want /TestDevice/TestService", got)
	}
	if got := svc.ControlURL(); got != "/TestDevice/TestService/control" {
		t.Errorf("ControlURL() = %q", got)
	}
	if got := svc.EventSubURL(); got != "/TestDevice/TestService/event_sub" {
		t.Errorf("EventSubURL() = %q", got)
	}
}

func TestAddDeviceIdempotent(t *testing.T) {
	d := buildTestDevice(t)

	var calls int
	child1, err := d.AddDevice("SubDevice", "sub", func(c *Device) error {
		calls++
		c.Manufacturer = "M"
		c.ModelName = "Y"
		return nil
	})
	if err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	child2, err := d.AddDevice("SubDevice", "sub", func(c *Device) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("AddDevice() second error = %v", err)
	}

	if child1 != child2 {
		t.Error("AddDevice() created a duplicate for the same (type, friendly name)")
	}
	if len(d.SubDevices()) != 1 {
		t.Errorf("SubDevices() = %d, want 1", len(d.SubDevices()))
	}
	if calls != 2 {
		t.Errorf("mutator ran %d times, want 2", calls)
	}
	if child1.Parent() != d {
		t.Error("child Parent() != parent device")
	}
	if child1.Root() != d {
		t.Error("child Root() != root device")
	}
}

func TestAddServiceIdempotent(t *testing.T) {
	d := buildTestDevice(t)
	svc1 := d.Services()[0]
	svc2, err := d.AddServiceWithID("TestService", "urn:other:serviceId:X")
	if err != nil {
		t.Fatalf("AddServiceWithID() error = %v", err)
	}
	if svc1 != svc2 {
		t.Error("AddServiceWithID() duplicated a service type")
	}
	if svc2.ID != ServiceID("seattlerb.org", "TestService") {
		t.Errorf("existing service id overwritten: %q", svc2.ID)
	}
}

func TestSubDevicePath(t *testing.T) {
	d := buildTestDevice(t)
	child, err := d.AddDevice("SubDevice", "sub", func(c *Device) error {
		c.Manufacturer = "M"
		c.ModelName = "Y"
		return nil
	})
	if err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}

	// The path lists the device's type first, the root's last.
	if got := child.Path(); got != "/SubDevice/TestDevice" {
		t.Errorf("Path() = %q, want /SubDevice/TestDevice", got)
	}
}

func TestValidateMissingFields(t *testing.T) {
	gen := testGen()

	d := New(gen, "TestDevice", "test")
	d.ModelName = "X"
	if err := d.Validate(); err == nil {
		t.Error("Validate() without manufacturer expected error")
	}

	d = New(gen, "TestDevice", "test")
	d.Manufacturer = "M"
	if err := d.Validate(); err == nil {
		t.Error("Validate() without model name expected error")
	}

	// Validation recurses into sub-devices.
	d = buildTestDevice(t)
	if _, err := d.AddDevice("SubDevice", "sub", nil); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	if err := d.Validate(); err == nil {
		t.Error("Validate() with invalid sub-device expected error")
	}
}

func TestDescriptionContainsServiceURLs(t *testing.T) {
	d := buildTestDevice(t)
	out, err := d.Description()
	if err != nil {
		t.Fatalf("Description() error = %v", err)
	}
	text := string(out)

	for _, want := range []string{
		"<SCPDURL>/TestDevice/TestService</SCPDURL>",
		"<controlURL>/TestDevice/TestService/control</controlURL>",
		"<eventSubURL>/TestDevice/TestService/event_sub</eventSubURL>",
		"<serviceId>urn:seattlerb-org:serviceId:TestService</serviceId>",
		"<UDN>uuid:" + d.Name + "</UDN>",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Description() missing %q", want)
		}
	}
}

func TestDescriptionDeterministic(t *testing.T) {
	d := buildTestDevice(t)
	a, err := d.Description()
	if err != nil {
		t.Fatalf("Description() error = %v", err)
	}
	b, err := d.Description()
	if err != nil {
		t.Fatalf("Description() second error = %v", err)
	}
	if string(a) != string(b) {
		t.Error("two descriptions of the same tree differ")
	}
}

func TestDescriptionFailsValidation(t *testing.T) {
	d := New(testGen(), "TestDevice", "test")
	if _, err := d.Description(); err == nil {
		t.Fatal("Description() of invalid device expected error")
	}
}

func TestAdvertisementsOrder(t *testing.T) {
	d := buildTestDevice(t)
	targets := d.Advertisements()

	want := []string{
		"upnp:rootdevice",
		d.UDN(),
		"urn:schemas-upnp-org:device:TestDevice:1",
		"urn:schemas-upnp-org:service:TestService:1",
	}
	if len(targets) != len(want) {
		t.Fatalf("Advertisements() = %d targets, want %d", len(targets), len(want))
	}
	for i, nt := range want {
		if targets[i].NT != nt {
			t.Errorf("target[%d].NT = %q, want %q", i, targets[i].NT, nt)
		}
	}
}

func TestAdvertisementUSNRules(t *testing.T) {
	d := buildTestDevice(t)
	targets := d.Advertisements()

	// uuid NT carries its own name as USN.
	if targets[1].USN != d.UDN() {
		t.Errorf("uuid target USN = %q, want %q", targets[1].USN, d.UDN())
	}
	// Every other NT is rooted at the root device's name.
	wantRoot := d.UDN() + "::upnp:rootdevice"
	if targets[0].USN != wantRoot {
		t.Errorf("root target USN = %q, want %q", targets[0].USN, wantRoot)
	}
	wantSvc := d.UDN() + "::urn:schemas-upnp-org:service:TestService:1"
	if targets[3].USN != wantSvc {
		t.Errorf("service target USN = %q, want %q", targets[3].USN, wantSvc)
	}
}

func TestFreezeBlocksMutation(t *testing.T) {
	d := buildTestDevice(t)
	d.Freeze()

	if _, err := d.AddDevice("SubDevice", "sub", nil); err != ErrFrozen {
		t.Errorf("AddDevice() after Freeze = %v, want ErrFrozen", err)
	}
	if _, err := d.AddServiceWithID("Other", "urn:x:serviceId:Y"); err != ErrFrozen {
		t.Errorf("AddServiceWithID() after Freeze = %v, want ErrFrozen", err)
	}
}

func TestSCPDEmission(t *testing.T) {
	d := buildTestDevice(t)
	svc := d.Services()[0]

	out, err := svc.SCPD()
	if err != nil {
		t.Fatalf("SCPD() error = %v", err)
	}
	text := string(out)
	for _, want := range []string{
		"<name>TestAction</name>",
		"<direction>in</direction>",
		"<relatedStateVariable>TestInVar</relatedStateVariable>",
		`<stateVariable sendEvents="no">`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("SCPD() missing %q", want)
		}
	}
}

func TestRouterFromService(t *testing.T) {
	d := buildTestDevice(t)
	svc := d.Services()[0]

	r, err := svc.Router(testLogger())
	if err != nil {
		t.Fatalf("Router() error = %v", err)
	}
	actions := r.Actions()
	if len(actions) != 1 || actions[0] != "TestAction" {
		t.Errorf("Router().Actions() = %v, want [TestAction]", actions)
	}
	if r.ServiceType() != svc.TypeURN() {
		t.Errorf("Router().ServiceType() = %q, want %q", r.ServiceType(), svc.TypeURN())
	}
}

func TestActionRejectsUnknownVariable(t *testing.T) {
	d := buildTestDevice(t)
	svc := d.Services()[0]

	err := svc.AddAction("Broken",
		func(ctx *soap.Context, in []any) ([]any, error) { return nil, nil },
		Argument{Direction: soap.In, Name: "X", RelatedStateVariable: "NoSuchVar"},
	)
	if err == nil {
		t.Fatal("AddAction() with unknown variable expected error")
	}
}
