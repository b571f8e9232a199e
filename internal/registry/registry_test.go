package registry

import (
	"context"
	"testing"
	"time"

	"github.com/seattlerb/upnp/internal/testutil"
	"github.com/seattlerb/upnp/pkg/ssdp"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(context.Background(), testutil.NewStore(t), testutil.Logger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func aliveNotification(usn, nt string, maxAge int) *ssdp.Notification {
	return &ssdp.Notification{
		Date:     time.Now(),
		Host:     ssdp.DefaultGroup,
		Port:     ssdp.DefaultPort,
		Location: "http://192.0.2.5:8080/description",
		MaxAge:   maxAge,
		Type:     nt,
		SubType:  ssdp.SubTypeAlive,
		Server:   "linux UPnP/1.0 demo/1",
		Name:     usn,
	}
}

func TestObserveAliveAndQuery(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	n := aliveNotification("uuid:a::upnp:rootdevice", "upnp:rootdevice", 120)
	if err := r.Observe(ctx, n); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	got, err := r.ByTarget(ctx, "upnp:rootdevice")
	if err != nil {
		t.Fatalf("ByTarget() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ByTarget() = %d entries, want 1", len(got))
	}
	e := got[0]
	if e.USN != "uuid:a::upnp:rootdevice" {
		t.Errorf("USN = %q", e.USN)
	}
	if e.Location != "http://192.0.2.5:8080/description" {
		t.Errorf("Location = %q", e.Location)
	}
	if e.Expires.IsZero() {
		t.Error("Expires unset for max-age advertisement")
	}
}

func TestObserveUpsertsByUSN(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	if err := r.Observe(ctx, aliveNotification("uuid:a", "uuid:a", 120)); err != nil {
		t.Fatal(err)
	}
	updated := aliveNotification("uuid:a", "uuid:a", 120)
	updated.Location = "http://192.0.2.9:9090/description"
	if err := r.Observe(ctx, updated); err != nil {
		t.Fatal(err)
	}

	got, err := r.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("All() = %d entries, want 1 after upsert", len(got))
	}
	if got[0].Location != "http://192.0.2.9:9090/description" {
		t.Errorf("Location = %q, want updated value", got[0].Location)
	}
}

func TestObserveByebyeRemoves(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	if err := r.Observe(ctx, aliveNotification("uuid:a", "uuid:a", 120)); err != nil {
		t.Fatal(err)
	}
	bye := &ssdp.Notification{
		Date:    time.Now(),
		Type:    "uuid:a",
		SubType: ssdp.SubTypeByebye,
		Name:    "uuid:a",
	}
	if err := r.Observe(ctx, bye); err != nil {
		t.Fatalf("Observe(byebye) error = %v", err)
	}

	got, err := r.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("All() = %d entries after byebye, want 0", len(got))
	}
}

func TestObserveResponse(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	resp := &ssdp.Response{
		Date:     time.Now(),
		MaxAge:   120,
		Location: "http://192.0.2.5:8080/description",
		Server:   "linux UPnP/1.0 demo/1",
		Target:   "urn:schemas-upnp-org:device:TestDevice:1",
		Name:     "uuid:b::urn:schemas-upnp-org:device:TestDevice:1",
		Ext:      true,
	}
	if err := r.Observe(ctx, resp); err != nil {
		t.Fatalf("Observe(response) error = %v", err)
	}

	got, err := r.ByTarget(ctx, "urn:schemas-upnp-org:device:TestDevice:1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("ByTarget() = %d entries, want 1", len(got))
	}
}

func TestSearchesIgnored(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	if err := r.Observe(ctx, &ssdp.Search{Date: time.Now(), Target: "ssdp:all", WaitTime: 2}); err != nil {
		t.Fatalf("Observe(search) error = %v", err)
	}
	got, err := r.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("All() = %d entries after search, want 0", len(got))
	}
}

func TestExpiredEntriesFilteredAndPruned(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	stale := aliveNotification("uuid:old", "uuid:old", 1)
	stale.Date = time.Now().Add(-time.Hour)
	if err := r.Observe(ctx, stale); err != nil {
		t.Fatal(err)
	}
	if err := r.Observe(ctx, aliveNotification("uuid:new", "uuid:new", 3600)); err != nil {
		t.Fatal(err)
	}

	got, err := r.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].USN != "uuid:new" {
		t.Errorf("All() = %+v, want only uuid:new", got)
	}

	n, err := r.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
}

func TestConsumeDrainsChannel(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	ch := make(chan ssdp.Advertisement, 2)
	ch <- aliveNotification("uuid:a", "uuid:a", 120)
	ch <- aliveNotification("uuid:b", "uuid:b", 120)
	close(ch)

	r.Consume(ctx, ch)

	got, err := r.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("All() = %d entries after Consume, want 2", len(got))
	}
}

func TestNoMaxAgeNeverExpires(t *testing.T) {
	e := Entry{USN: "uuid:x"}
	if e.Expired(time.Now().Add(24 * time.Hour)) {
		t.Error("entry without expiry reports Expired()")
	}
}
