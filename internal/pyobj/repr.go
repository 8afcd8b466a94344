package pyobj

import (
	"fmt"
	"strings"

	"github.com/relistan/pymemtools/internal/environment"
	"github.com/relistan/pymemtools/internal/snapshot"
)

// Limits bounds a repr traversal so it always terminates and always
// produces output a terminal can hold, regardless of how large or
// cyclic the live object graph is. Defaults match the reference
// implementation's: unlimited depth and entry count unless the caller
// asks otherwise, a generous but finite string/bytes truncation length,
// and addresses shown only where they disambiguate (see showAddress).
type Limits struct {
	MaxRecursionDepth int  // -1 = unlimited
	MaxEntries        int  // -1 = unlimited, per container
	MaxStringLength   int  // 0 = library default (0x400)
	FrameOmitBack     bool // not read: frame reprs never include the f_back chain
	FrameOmitLocals   bool // drops the line field from a frame's repr; frame reprs never include locals
	BytesAsHex        bool // render bytes as bytes.fromhex(...) instead of escaped literal
	ShowAllAddresses  bool // always print "@0x...", on nested values as well as the root
	IsShort           bool // read only by coroutine reprs, which then show (running)/(suspended)
}

// DefaultLimits matches the reference implementation's constructor
// defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxRecursionDepth: -1,
		MaxEntries:        -1,
		MaxStringLength:   0x400,
	}
}

// Traversal is C7: a single depth-first repr walk over the object graph,
// tracking which objects are currently being rendered (to break cycles)
// and how deep the walk has gone (to enforce MaxRecursionDepth).
type Traversal struct {
	tr  *snapshot.TypedReader
	env *environment.Environment
	lim Limits

	// inProgress is keyed by host pointer, not mapped address, matching
	// the reference implementation's cycle_guard — so that a cycle is
	// detected by true object identity, not by whichever mapped address
	// happened to be used to reach it.
	inProgress map[snapshot.Address]bool
	depth      int
}

// NewTraversal starts a repr walk against env/tr with lim as the bounds.
func NewTraversal(tr *snapshot.TypedReader, env *environment.Environment, lim Limits) *Traversal {
	if lim.MaxStringLength == 0 {
		lim.MaxStringLength = DefaultLimits().MaxStringLength
	}
	return &Traversal{tr: tr, env: env, lim: lim, inProgress: make(map[snapshot.Address]bool)}
}

// showAddress reports whether the current repr should be annotated with
// its own address: always, if the caller asked for it, or whenever the
// walk is not nested inside another object's repr (a bare top-level
// repr is otherwise ambiguous about what it refers to).
func (t *Traversal) showAddress() bool {
	return t.lim.ShowAllAddresses || len(t.inProgress) == 0
}

// cycleGuard marks addr as in-progress for the duration of fn, keyed by
// its host identity; if addr is already in progress (a cycle), it
// returns "..." immediately without calling fn.
func (t *Traversal) cycleGuard(addr snapshot.Address, fn func() string) string {
	host, ok := t.tr.MappedToHost(addr)
	key := addr
	if ok {
		key = host
	}
	if t.inProgress[key] {
		return "..."
	}
	t.inProgress[key] = true
	defer delete(t.inProgress, key)
	t.depth++
	defer func() { t.depth-- }()

	if t.lim.MaxRecursionDepth >= 0 && t.depth > t.lim.MaxRecursionDepth {
		return "..."
	}
	return fn()
}

// Repr is C7's entry point: render addr's value, recursing into
// referents as needed, truncating per Limits, and never panicking —
// a validation failure becomes inline text ("<invalid object @addr:
// tag>") and a read failure becomes "<unreadable ...>", not a returned
// error, since a broken object is exactly the case this
// formatter exists to describe rather than fail on.
func (t *Traversal) Repr(addr snapshot.Address) string {
	if addr.IsNull() {
		return "NULL"
	}
	reason := InvalidReason(t.tr, t.env, addr, snapshot.Null)
	if reason != "" {
		return fmt.Sprintf("<invalid object @%s: %s>", addr, reason)
	}

	h, err := snapshot.Get[PyObjectHeader](t.tr, addr)
	if err != nil {
		return fmt.Sprintf("<unreadable @%s>", addr)
	}
	kind := KindOf(t.tr, t.env, h.Type)

	if kind == KindNone {
		return "None"
	}

	body := t.cycleGuard(addr, func() string { return t.reprBody(addr, kind) })

	if !t.showAddress() {
		return body
	}
	return fmt.Sprintf("%s@%s", body, addr)
}

func (t *Traversal) reprBody(addr snapshot.Address, kind Kind) string {
	switch kind {
	case KindType:
		ty, err := ReadType(t.tr, addr)
		if err != nil {
			return "<unreadable type>"
		}
		name, err := ty.Name(t.tr)
		if err != nil {
			name = "?"
		}
		return ty.Repr(name)

	case KindInt:
		l, err := ReadLong(t.tr, t.env, addr)
		if err != nil {
			return "<unreadable int>"
		}
		return l.Repr()

	case KindBool:
		l, err := ReadLong(t.tr, t.env, addr)
		if err != nil {
			return "<unreadable bool>"
		}
		b := &PyBool{Long: l}
		return b.Repr()

	case KindFloat:
		f, err := snapshot.Get[PyFloat](t.tr, addr)
		if err != nil {
			return "<unreadable float>"
		}
		return f.Repr()

	case KindBytes:
		b, err := ReadBytes(t.tr, addr)
		if err != nil {
			return "<unreadable bytes>"
		}
		if t.lim.BytesAsHex {
			return reprBytesHex(b.Data, t.lim.MaxStringLength)
		}
		return b.Repr(t.lim.MaxStringLength)

	case KindStr:
		s, err := ReadString(t.tr, addr)
		if err != nil {
			return "<unreadable str>"
		}
		return s.Repr(t.lim.MaxStringLength)

	case KindTuple:
		return t.reprSequence(addr, "(", ")", true)

	case KindList:
		return t.reprSequence(addr, "[", "]", false)

	case KindSet, KindFrozenSet:
		return t.reprSet(addr, kind == KindFrozenSet)

	case KindDict:
		d, err := ReadDict(t.tr, addr)
		if err != nil {
			return "<unreadable dict>"
		}
		items := d.Items
		if t.lim.MaxEntries >= 0 && len(items) > t.lim.MaxEntries {
			items = items[:t.lim.MaxEntries]
		}
		return ReprDict(items, func(a snapshot.Address) string { return t.Repr(a) }, func(a snapshot.Address) string { return t.Repr(a) })

	case KindCode:
		c, err := ReadCode(t.tr, t.env, addr)
		if err != nil {
			return "<unreadable code>"
		}
		name := t.cstr(c.Name)
		filename := t.cstr(c.Filename)
		return c.Repr(filename, name)

	case KindCell:
		c, err := ReadCell(t.tr, addr)
		if err != nil {
			return "<unreadable cell>"
		}
		if c.Ref.IsNull() {
			return "<cell [empty]>"
		}
		return fmt.Sprintf("<cell at %s: %s object>", addr, t.Repr(c.Ref))

	case KindFrame:
		return t.reprFrame(addr)

	case KindGenerator:
		return t.reprGenerator(addr, genPlain)

	case KindCoroutine:
		return t.reprGenerator(addr, genCoroutine)

	case KindAsyncGenerator:
		return t.reprGenerator(addr, genAsyncGenerator)

	case KindFuture:
		f, err := ReadFuture(t.tr, addr)
		if err != nil {
			return "<unreadable future>"
		}
		return f.Repr("Future")

	case KindTask:
		tk, err := ReadTask(t.tr, addr)
		if err != nil {
			return "<unreadable task>"
		}
		return tk.PyFuture.Repr("Task")

	case KindGatheringFuture:
		g, err := ReadGatheringFuture(t.tr, addr)
		if err != nil {
			return "<unreadable gathering future>"
		}
		return g.PyFuture.Repr("_GatheringFuture")

	case KindInstance:
		return t.reprInstance(addr)

	default:
		return fmt.Sprintf("<object @%s>", addr)
	}
}

func (t *Traversal) cstr(addr snapshot.Address) string {
	if addr.IsNull() {
		return "?"
	}
	s, err := t.tr.GetCString(addr)
	if err != nil {
		return "?"
	}
	return s
}

// reprBytesHex renders bytes.fromhex('...') form, truncating with a
// trailing "<N more bytes>" marker past maxLen — matching the original's
// bytes_as_hex display mode used for binary payloads where an escaped
// literal would be unreadable.
func reprBytesHex(data []byte, maxLen int) string {
	shown := data
	truncated := 0
	if maxLen > 0 && len(data) > maxLen {
		shown = data[:maxLen]
		truncated = len(data) - maxLen
	}
	var sb strings.Builder
	sb.WriteString("bytes.fromhex('")
	for _, b := range shown {
		fmt.Fprintf(&sb, "%02x", b)
	}
	sb.WriteString("')")
	if truncated > 0 {
		fmt.Fprintf(&sb, " <%d more bytes>", truncated)
	}
	return sb.String()
}

// reprSequence renders a tuple or list on a single line, elements
// separated by ", ", with a trailing ", ..." when MaxEntries cut the
// list short. There is no multi-line or depth-indented form.
func (t *Traversal) reprSequence(addr snapshot.Address, open, close string, isTuple bool) string {
	var items []snapshot.Address
	if isTuple {
		tu, err := ReadTuple(t.tr, addr)
		if err != nil {
			return "<unreadable tuple>"
		}
		items = tu.Items
	} else {
		l, err := ReadList(t.tr, addr)
		if err != nil {
			return "<unreadable list>"
		}
		items = l.Items
	}

	truncated := false
	if t.lim.MaxEntries >= 0 && len(items) > t.lim.MaxEntries {
		items = items[:t.lim.MaxEntries]
		truncated = true
	}

	if len(items) == 0 {
		if isTuple {
			return "()"
		}
		return "[]"
	}

	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = t.Repr(it)
	}
	body := strings.Join(parts, ", ")
	if isTuple && len(items) == 1 {
		body += ","
	}
	if truncated {
		body += ", ..."
	}
	return open + body + close
}

func (t *Traversal) reprSet(addr snapshot.Address, frozen bool) string {
	s, err := ReadSet(t.tr, addr)
	if err != nil {
		return "<unreadable set>"
	}
	members := s.Members
	truncated := false
	if t.lim.MaxEntries >= 0 && len(members) > t.lim.MaxEntries {
		members = members[:t.lim.MaxEntries]
		truncated = true
	}
	if len(members) == 0 {
		if frozen {
			return "frozenset()"
		}
		return "set()"
	}
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = t.Repr(m)
	}
	body := strings.Join(parts, ", ")
	if truncated {
		body += ", ..."
	}
	if frozen {
		return "frozenset({" + body + "})"
	}
	return "{" + body + "}"
}

func (t *Traversal) reprFrame(addr snapshot.Address) string {
	f, err := ReadFrame(t.tr, t.env, addr)
	if err != nil {
		return "<unreadable frame>"
	}
	name := "?"
	if !f.Code.IsNull() {
		if c, err := ReadCode(t.tr, t.env, f.Code); err == nil {
			name = t.cstr(c.Name)
		}
	}
	if t.lim.FrameOmitLocals {
		return fmt.Sprintf("<frame at %s, in %s>", addr, name)
	}
	return f.Repr(name, 0)
}

func (t *Traversal) reprGenerator(addr snapshot.Address, kind generatorKind) string {
	g, err := readGeneratorByKindKind(t.tr, addr, kindForGenerator(kind))
	if err != nil {
		return "<unreadable generator>"
	}
	name := t.cstr(g.QualName)
	if name == "?" {
		name = t.cstr(g.Name)
	}
	if t.lim.IsShort && kind == genCoroutine {
		where := "(running)"
		if !g.Running {
			where = "(suspended)"
		}
		return g.Repr(name, "", where)
	}
	frameRepr := ""
	if !g.Frame.IsNull() {
		frameRepr = "attached"
	}
	return g.Repr(name, frameRepr, "")
}

func kindForGenerator(k generatorKind) Kind {
	switch k {
	case genCoroutine:
		return KindCoroutine
	case genAsyncGenerator:
		return KindAsyncGenerator
	default:
		return KindGenerator
	}
}

// reprInstance renders a user-defined-class instance. Per the reference
// implementation, the instance's own __dict__ is only expanded at the
// traversal root (depth 1, i.e. the very first cycleGuard frame) — a
// nested instance reference shows only its class name and address, to
// keep deeply-linked object graphs from producing unbounded output.
func (t *Traversal) reprInstance(addr snapshot.Address) string {
	h, err := snapshot.Get[PyObjectHeader](t.tr, addr)
	if err != nil {
		return "<unreadable instance>"
	}
	className := "?"
	if ty, err := ReadType(t.tr, h.Type); err == nil {
		if n, err := ty.Name(t.tr); err == nil {
			className = n
		}
	}

	if t.depth > 1 {
		return fmt.Sprintf("<%s instance>", className)
	}

	dictAddr, err := instanceDictAddr(t.tr, addr, h.Type)
	if err != nil || dictAddr.IsNull() {
		return fmt.Sprintf("<%s instance>", className)
	}
	d, err := ReadDict(t.tr, dictAddr)
	if err != nil {
		return fmt.Sprintf("<%s instance>", className)
	}
	body := ReprDict(d.Items, func(a snapshot.Address) string { return t.Repr(a) }, func(a snapshot.Address) string { return t.Repr(a) })
	return fmt.Sprintf("<%s instance %s>", className, body)
}
