package pyobj

import "github.com/relistan/pymemtools/internal/snapshot"

// PyCell holds exactly one indirect reference, used to share a closed-
// over local variable between a function and its nested closures.
type pyCellHeader struct {
	PyObjectHeader
	Ref snapshot.Address
}

type PyCell struct {
	Addr snapshot.Address
	Ref  snapshot.Address
}

func ReadCell(tr *snapshot.TypedReader, addr snapshot.Address) (*PyCell, error) {
	h, err := snapshot.Get[pyCellHeader](tr, addr)
	if err != nil {
		return nil, err
	}
	return &PyCell{Addr: addr, Ref: h.Ref}, nil
}

// InvalidReasonCell has no structural constraint beyond the header: Ref
// is legitimately allowed to be null (an unbound closure variable).
func InvalidReasonCell(*PyCell) string { return "" }
