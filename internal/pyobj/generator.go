package pyobj

import (
	"fmt"

	"github.com/relistan/pymemtools/internal/snapshot"
)

// generatorKind distinguishes the three objects that share PyGenObject's
// layout: a plain generator, a coroutine (created from `async def`), and
// an async generator (created from `async def` with `yield`).
type generatorKind int

const (
	genPlain generatorKind = iota
	genCoroutine
	genAsyncGenerator
)

// pyGenHeader mirrors PyGenObject/PyCoroObject/PyAsyncGenObject, which
// share an identical prefix and differ only in trailing
// coroutine/asyncgen-specific fields this decoder does not need (origin
// tracking, finalizer hooks).
type pyGenHeader struct {
	PyObjectHeader
	Frame       snapshot.Address // PyInterpreterFrame (3.14) or PyFrameObject (3.10)
	Code        snapshot.Address
	Name        snapshot.Address
	QualName    snapshot.Address
	Running     int32
	Pad         int32
}

type Generator struct {
	Addr     snapshot.Address
	Kind     generatorKind
	Frame    snapshot.Address
	Code     snapshot.Address
	Name     snapshot.Address
	QualName snapshot.Address
	Running  bool
}

func readGenerator(tr *snapshot.TypedReader, addr snapshot.Address, kind generatorKind) (*Generator, error) {
	h, err := snapshot.Get[pyGenHeader](tr, addr)
	if err != nil {
		return nil, err
	}
	return &Generator{
		Addr: addr, Kind: kind, Frame: h.Frame, Code: h.Code,
		Name: h.Name, QualName: h.QualName, Running: h.Running != 0,
	}, nil
}

func ReadGenerator(tr *snapshot.TypedReader, addr snapshot.Address) (*Generator, error) {
	return readGenerator(tr, addr, genPlain)
}

func ReadCoroutine(tr *snapshot.TypedReader, addr snapshot.Address) (*Generator, error) {
	return readGenerator(tr, addr, genCoroutine)
}

// ReadAsyncGenerator decodes a PyAsyncGenObject.
//
// Dispatch ordering note: the async generator check runs after
// generator/coroutine and before the asyncio Future family, mirroring
// an ordering the original implementation's own authors flagged as
// possibly wrong (without changing it). This decoder preserves that
// same order rather than resolving the ambiguity, since the job here is
// to decode what CPython actually laid out, not to second-guess it.
func ReadAsyncGenerator(tr *snapshot.TypedReader, addr snapshot.Address) (*Generator, error) {
	return readGenerator(tr, addr, genAsyncGenerator)
}

// InvalidReasonGenerator has no constraint beyond header bounds; Frame
// may legitimately be null for a completed/cleared generator.
func InvalidReasonGenerator(*Generator) string { return "" }

func (g *Generator) Repr(name string, frameRepr string, where string) string {
	switch g.Kind {
	case genCoroutine:
		if where == "" {
			return fmt.Sprintf("<coroutine object %s>", name)
		}
		return fmt.Sprintf("<coroutine object %s %s>", name, where)
	case genAsyncGenerator:
		return fmt.Sprintf("<async_generator object %s>", name)
	default:
		return fmt.Sprintf("<generator object %s>", name)
	}
}
