package value

import "github.com/google/uuid"

// ObjKind tags the concrete type behind an Obj interface value, the way
// the VM's dispatch code needs to branch on "what kind of heap object is
// this" without a full Go type switch at every call site.
type ObjKind uint8

const (
	ObjString ObjKind = iota + 1
	ObjFunction
	ObjClosure
	ObjUpvalue
	ObjClass
	ObjInstance
	ObjBoundMethod
	ObjNative
	ObjList
)

func (k ObjKind) String() string {
	switch k {
	case ObjString:
		return "string"
	case ObjFunction:
		return "function"
	case ObjClosure:
		return "closure"
	case ObjUpvalue:
		return "upvalue"
	case ObjClass:
		return "class"
	case ObjInstance:
		return "instance"
	case ObjBoundMethod:
		return "bound method"
	case ObjNative:
		return "native"
	case ObjList:
		return "list"
	default:
		return "unknown"
	}
}

// Obj is implemented by every heap-allocated object. Object identity for
// language-level equality is Go pointer identity of the concrete type
// behind this interface (two *ObjString with equal content are only
// "the same object" because interning guarantees there is only ever one
// such pointer for a given content, per spec invariant).
type Obj interface {
	Kind() ObjKind
	header() *Header
}

// Header carries the bookkeeping every heap object needs for the garbage
// collector: whether it has been reached during the current mark phase,
// and the intrusive "all objects" list pointer used by sweep. ID is an
// opaque debug handle (Design Note §9's "heap_id ... rather than a raw
// pointer"); it is never consulted by language semantics, only by the
// disassembler and debugger when printing object identity.
type Header struct {
	Marked bool
	Next   Obj
	ID     uuid.UUID
}

func (h *Header) header() *Header { return h }

func newHeader() Header {
	return Header{ID: uuid.New()}
}

// ObjectID returns o's debug identity handle, for tools that need to
// refer to a heap object stably across a run (the debugger's trace
// output and the disassembler's constant dump both use this rather than
// a raw Go pointer, which would change between GC compactions in a
// collector that ever grew one).
func ObjectID(o Obj) uuid.UUID {
	return o.header().ID
}

// ObjStringVal is a heap-allocated, immutable string. Every ObjStringVal
// reachable from the VM is present in the intern table (see pkg/value
// Table and GC.Intern); two strings with equal content are always the
// same *ObjStringVal.
type ObjStringVal struct {
	Header
	Chars string
	Hash  uint32
}

func (*ObjStringVal) Kind() ObjKind { return ObjString }

// ObjFunctionVal is a compiled function: its arity, how many variables it
// captures from enclosing scopes, an optional name (nil for the implicit
// top-level script function), and the bytecode chunk that implements it.
// Chunk is declared as an opaque interface{} here to avoid an import
// cycle with pkg/chunk; the vm and compiler packages type-assert it to
// *chunk.Chunk.
type ObjFunctionVal struct {
	Header
	Arity        int
	UpvalueCount int
	Name         *ObjStringVal
	Chunk        interface{}
}

func (*ObjFunctionVal) Kind() ObjKind { return ObjFunction }

// ObjUpvalueVal represents a single captured variable. While IsOpen is
// true, it refers to a live operand-stack slot (the stack index is
// stored in Slot; the VM resolves it against its own stack each time).
// Once closed, the value has been copied into Closed and the upvalue owns
// it outright.
type ObjUpvalueVal struct {
	Header
	Slot   int // stack index, meaningful only while open
	Closed Value
	IsOpen bool
	Next   *ObjUpvalueVal // open-upvalues list, sorted by descending Slot
}

func (*ObjUpvalueVal) Kind() ObjKind { return ObjUpvalue }

// ObjClosureVal pairs a compiled function with the upvalues it captured
// at creation time. The Upvalues slice has exactly Function.UpvalueCount
// entries, bound once at construction and never rebound.
type ObjClosureVal struct {
	Header
	Function *ObjFunctionVal
	Upvalues []*ObjUpvalueVal
}

func (*ObjClosureVal) Kind() ObjKind { return ObjClosure }

// ObjClassVal is a class: a name and a method table mapping method name
// to Closure. Inheritance is implemented by copying the superclass's
// method table into the subclass's at OP_INHERIT time (spec §4.4); a
// ObjClassVal retains no back-pointer to any superclass.
type ObjClassVal struct {
	Header
	Name    *ObjStringVal
	Methods *Table
}

func (*ObjClassVal) Kind() ObjKind { return ObjClass }

// ObjInstanceVal is an instance of a class: a class reference plus a
// field table. Unlike Methods, Fields may hold any Value, including
// callables, which is what lets OP_GET_PROPERTY / OP_INVOKE treat a field
// as shadowing a method of the same name.
type ObjInstanceVal struct {
	Header
	Class  *ObjClassVal
	Fields *Table
}

func (*ObjInstanceVal) Kind() ObjKind { return ObjInstance }

// ObjBoundMethodVal pairs a receiver with the closure looked up on it,
// produced by OP_GET_PROPERTY / OP_GET_SUPER when the name resolves to a
// method rather than a field.
type ObjBoundMethodVal struct {
	Header
	Receiver Value
	Method   *ObjClosureVal
}

func (*ObjBoundMethodVal) Kind() ObjKind { return ObjBoundMethod }

// NativeFn is a built-in function's Go implementation: given the
// argument count and a slice of exactly that many arguments, it returns
// either a result Value or a runtime error.
type NativeFn func(argc int, args []Value) (Value, error)

// ObjNativeVal wraps a Go native function so it can live in a Value and
// be called through the ordinary call protocol.
type ObjNativeVal struct {
	Header
	Name string
	Fn   NativeFn
}

func (*ObjNativeVal) Kind() ObjKind { return ObjNative }

// ObjListVal is a growable vector of Values, the backing store for list
// literals and the list natives (append/delete/length).
type ObjListVal struct {
	Header
	Items []Value
}

func (*ObjListVal) Kind() ObjKind { return ObjList }
