package daemon

import (
	"fmt"
	"testing"

	"github.com/portreeve/bootstrapd/common/handle"
	"github.com/portreeve/bootstrapd/common/wire"
)

func testPort(t *testing.T) handle.Port {
	t.Helper()
	a, b, err := handle.NewPair()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a
}

func TestCreateAndLookup(t *testing.T) {
	reg := NewRegistry()
	port := testPort(t)
	if status := reg.Create("com.example.display", port); status != wire.StatusOK {
		t.Fatalf("create: %v", status)
	}
	got, found := reg.Lookup("com.example.display")
	if !found {
		t.Fatal("name not found")
	}
	if got.FD() != port.FD() {
		t.Fatalf("lookup returned fd %d, want %d", got.FD(), port.FD())
	}
}

func TestCreateUniqueness(t *testing.T) {
	reg := NewRegistry()
	if status := reg.Create("svc", testPort(t)); status != wire.StatusOK {
		t.Fatalf("first create: %v", status)
	}
	if status := reg.Create("svc", testPort(t)); status != wire.ErrNameInUse {
		t.Fatalf("second create: %v, want name in use", status)
	}
}

func TestLookupUnknown(t *testing.T) {
	reg := NewRegistry()
	if _, found := reg.Lookup("nonexistent"); found {
		t.Fatal("unknown name resolved")
	}
}

func TestCapacity(t *testing.T) {
	reg := NewRegistry()
	port := testPort(t)
	for i := 0; i < MaxServices; i++ {
		name := fmt.Sprintf("svc.%d", i)
		if status := reg.Create(name, port); status != wire.StatusOK {
			t.Fatalf("create %d: %v", i, status)
		}
	}
	if status := reg.Create("svc.overflow", port); status != wire.ErrNoMemory {
		t.Fatalf("overflow create: %v, want no memory", status)
	}
	//	the first 64 stay resolvable
	for i := 0; i < MaxServices; i++ {
		if _, found := reg.Lookup(fmt.Sprintf("svc.%d", i)); !found {
			t.Fatalf("svc.%d lost after overflow", i)
		}
	}
	if reg.Len() != MaxServices {
		t.Fatalf("len %d", reg.Len())
	}
}
