package pyobj

import (
	"testing"

	"github.com/relistan/pymemtools/internal/environment"
	"github.com/relistan/pymemtools/internal/snapshot"
)

func TestInvalidReasonAndReferentsForInt(t *testing.T) {
	const typeAddr = snapshot.Address(0x9000)
	const objAddr = snapshot.Address(0x1000)

	// pyLongHeader310: PyVarObjectHeader (refcnt8+type8+size8=24) + 1 digit (4 bytes, padded to 8 for alignment isn't modeled; GetArray reads tightly packed uint32).
	data := make([]byte, 24+4)
	putU64(data, 0, 1)
	putU64(data, 8, uint64(typeAddr))
	putU64(data, 16, 1) // ob_size = 1 digit, positive
	// digit value 42 as uint32 LE at offset 24
	data[24] = 42

	r := snapshot.NewReader([]*snapshot.Region{
		{Base: objAddr, Size: int64(len(data)), Host: data},
		{Base: typeAddr, Size: 8, Host: make([]byte, 8)},
	})
	tr := snapshot.NewTypedReader(r)

	env := environment.New(environment.PyVersion310)
	env.TypeAddrs["int"] = typeAddr

	if reason := InvalidReason(tr, env, objAddr, snapshot.Null); reason != "" {
		t.Fatalf("InvalidReason = %q, want empty", reason)
	}

	refs, err := DirectReferents(tr, env, objAddr)
	if err != nil {
		t.Fatalf("DirectReferents: %v", err)
	}
	if len(refs) != 1 || refs[0] != typeAddr {
		t.Fatalf("DirectReferents = %v, want [%s]", refs, typeAddr)
	}
}

func TestInvalidReasonNullObject(t *testing.T) {
	env := environment.New(environment.PyVersion310)
	tr := newTR(0x1000, make([]byte, 8))
	if reason := InvalidReason(tr, env, snapshot.Null, snapshot.Null); reason != "null_obj_ptr" {
		t.Fatalf("InvalidReason(null) = %q, want null_obj_ptr", reason)
	}
}
