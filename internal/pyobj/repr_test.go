package pyobj

import (
	"strings"
	"testing"

	"github.com/relistan/pymemtools/internal/environment"
	"github.com/relistan/pymemtools/internal/snapshot"
)

func TestTraversalReprInt(t *testing.T) {
	const typeAddr = snapshot.Address(0x9000)
	const objAddr = snapshot.Address(0x1000)

	data := make([]byte, 24+4)
	putU64(data, 0, 1)
	putU64(data, 8, uint64(typeAddr))
	putU64(data, 16, 1)
	data[24] = 7

	r := snapshot.NewReader([]*snapshot.Region{
		{Base: objAddr, Size: int64(len(data)), Host: data},
		{Base: typeAddr, Size: 8, Host: make([]byte, 8)},
	})
	tr := snapshot.NewTypedReader(r)

	env := environment.New(environment.PyVersion310)
	env.TypeAddrs["int"] = typeAddr

	trav := NewTraversal(tr, env, DefaultLimits())
	got := trav.Repr(objAddr)
	if !strings.HasPrefix(got, "7@") {
		t.Fatalf("Repr() = %q, want prefix '7@'", got)
	}
}

func TestTraversalReprNull(t *testing.T) {
	env := environment.New(environment.PyVersion310)
	tr := newTR(0x1000, make([]byte, 8))
	trav := NewTraversal(tr, env, DefaultLimits())
	if got := trav.Repr(snapshot.Null); got != "NULL" {
		t.Fatalf("Repr(null) = %q, want NULL", got)
	}
}
