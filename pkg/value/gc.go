package value

import "github.com/dustin/go-humanize"

// RootProvider is implemented by the VM. The GC calls MarkRoots at the
// start of every collection; the VM is responsible for calling gc.Mark
// (or gc.MarkValue) on every Value and Obj that is a collection root per
// spec §4.8: every operand-stack slot, every active frame's closure,
// every open upvalue, every globals entry, and the cached "init" string.
type RootProvider interface {
	MarkRoots(gc *GC)
}

// GrowthFactor is applied to bytes_allocated to pick the next collection
// threshold, per spec §4.8's recommendation.
const GrowthFactor = 2

// InitialGCThreshold is next_gc's starting value before any collection
// has run. A program that allocates less than this in total never
// triggers a collection.
const InitialGCThreshold = 1 << 20

// GC owns every heap-allocated object, the intrusive all-objects list,
// the weak string intern table, and the allocation/threshold counters
// that decide when to collect. It is driven by the VM (RootProvider)
// but owns the mark/sweep mechanics itself.
type GC struct {
	objects   Obj
	strings   *Table // weak: sweep removes unmarked keys first
	roots     RootProvider
	gray      []Obj
	bytes     int64
	nextGC    int64
	Verbose   bool // when true, Collect logs a human-readable summary
	logf      func(format string, args ...interface{})
	collected int
}

// NewGC constructs a GC. roots is typically the VM itself, which vm.New
// passes in when it constructs its GC.
func NewGC(roots RootProvider, logf func(string, ...interface{})) *GC {
	return &GC{
		strings: NewTable(),
		roots:   roots,
		nextGC:  InitialGCThreshold,
		logf:    logf,
	}
}

// BytesAllocated reports the live allocation counter (testable property
// support / diagnostics).
func (gc *GC) BytesAllocated() int64 { return gc.bytes }

// register links a freshly allocated object into the intrusive
// all-objects list and accounts for its size, triggering a collection if
// the threshold has been crossed (spec §4.8 "Allocation trigger").
func (gc *GC) register(o Obj, size int64) {
	h := o.header()
	h.Next = gc.objects
	gc.objects = o
	gc.bytes += size
	if gc.bytes >= gc.nextGC {
		gc.Collect()
	}
}

// Intern returns the canonical ObjStringVal for chars, allocating and
// registering a new one only if an equal-content string isn't already
// interned. This is the single chokepoint spec §4.6 requires: every
// String reachable anywhere in the VM went through here.
func (gc *GC) Intern(chars string) *ObjStringVal {
	hash := HashString(chars)
	if existing := gc.strings.FindString(chars, hash); existing != nil {
		return existing
	}
	s := &ObjStringVal{Header: newHeader(), Chars: chars, Hash: hash}
	gc.register(s, int64(len(chars))+32)
	gc.strings.Set(s, Bool(true))
	return s
}

func (gc *GC) NewFunction(name *ObjStringVal, arity, upvalueCount int) *ObjFunctionVal {
	f := &ObjFunctionVal{Header: newHeader(), Name: name, Arity: arity, UpvalueCount: upvalueCount}
	gc.register(f, 64)
	return f
}

func (gc *GC) NewClosure(fn *ObjFunctionVal) *ObjClosureVal {
	c := &ObjClosureVal{Header: newHeader(), Function: fn, Upvalues: make([]*ObjUpvalueVal, fn.UpvalueCount)}
	gc.register(c, int64(16*fn.UpvalueCount)+32)
	return c
}

func (gc *GC) NewUpvalue(slot int) *ObjUpvalueVal {
	u := &ObjUpvalueVal{Header: newHeader(), Slot: slot, IsOpen: true}
	gc.register(u, 32)
	return u
}

func (gc *GC) NewClass(name *ObjStringVal) *ObjClassVal {
	c := &ObjClassVal{Header: newHeader(), Name: name, Methods: NewTable()}
	gc.register(c, 48)
	return c
}

func (gc *GC) NewInstance(class *ObjClassVal) *ObjInstanceVal {
	i := &ObjInstanceVal{Header: newHeader(), Class: class, Fields: NewTable()}
	gc.register(i, 48)
	return i
}

func (gc *GC) NewBoundMethod(receiver Value, method *ObjClosureVal) *ObjBoundMethodVal {
	b := &ObjBoundMethodVal{Header: newHeader(), Receiver: receiver, Method: method}
	gc.register(b, 40)
	return b
}

func (gc *GC) NewNative(name string, fn NativeFn) *ObjNativeVal {
	n := &ObjNativeVal{Header: newHeader(), Name: name, Fn: fn}
	gc.register(n, 32)
	return n
}

func (gc *GC) NewList(items []Value) *ObjListVal {
	l := &ObjListVal{Header: newHeader(), Items: items}
	gc.register(l, int64(16*len(items))+24)
	return l
}

// Mark grays an object: if it is already marked (black or gray), this is
// a no-op, which is what makes the tri-color algorithm terminate on
// cyclic structures. Otherwise the object is marked and pushed onto the
// gray worklist for blackening.
func (gc *GC) Mark(o Obj) {
	if o == nil {
		return
	}
	h := o.header()
	if h.Marked {
		return
	}
	h.Marked = true
	gc.gray = append(gc.gray, o)
}

// MarkValue marks v's object if v is an Obj-typed Value; nil, bool, and
// number values carry no heap references and are ignored.
func (gc *GC) MarkValue(v Value) {
	if v.Type == TypeObj {
		gc.Mark(v.AsObj())
	}
}

// MarkTable marks every key and value in t. Used for globals, method
// tables, and field tables, none of which are ever swept directly (they
// are reachable through their owning root/object) but whose contents
// must still be traced.
func (gc *GC) MarkTable(t *Table) {
	if t == nil {
		return
	}
	t.Each(func(key *ObjStringVal, val Value) {
		gc.Mark(key)
		gc.MarkValue(val)
	})
}

// WriteBarrier must be called before storing value into a field that
// lives inside container (method table insert, field set, upvalue
// close, constant append to a chunk already reachable from a live
// closure). If container is black (already fully marked and blackened
// this cycle) and value is white, the barrier re-grays value so a
// collection in progress doesn't miss a reference created after marking
// swept past it. Mid-mutation collections never happen in this
// single-threaded VM (spec §5), so in practice this matters only for
// keeping the contract documented and ready if that ever changes.
func (gc *GC) WriteBarrier(container Obj, value Value) {
	if container == nil || !container.header().Marked {
		return
	}
	gc.MarkValue(value)
}

// Collect runs one full mark/sweep cycle: mark roots, blacken the gray
// worklist, remove unmarked string keys from the intern table, then free
// every unmarked object.
func (gc *GC) Collect() {
	before := gc.bytes
	gc.gray = gc.gray[:0]
	if gc.roots != nil {
		gc.roots.MarkRoots(gc)
	}
	for len(gc.gray) > 0 {
		o := gc.gray[len(gc.gray)-1]
		gc.gray = gc.gray[:len(gc.gray)-1]
		gc.blacken(o)
	}
	gc.sweepStrings()
	freed := gc.sweep()
	gc.nextGC = gc.bytes * GrowthFactor
	if gc.nextGC < InitialGCThreshold {
		gc.nextGC = InitialGCThreshold
	}
	gc.collected++
	if gc.Verbose && gc.logf != nil {
		gc.logf("gc: collected %d objects, %s -> %s, next at %s",
			freed, humanize.Bytes(uint64(before)), humanize.Bytes(uint64(gc.bytes)), humanize.Bytes(uint64(gc.nextGC)))
	}
}

// blacken marks every object reachable from o one level deep, per the
// per-type marking rules in spec §4.8.
func (gc *GC) blacken(o Obj) {
	switch obj := o.(type) {
	case *ObjStringVal:
		// leaf: no outgoing references
	case *ObjFunctionVal:
		gc.Mark(obj.Name)
		if c, ok := obj.Chunk.(ConstantMarker); ok {
			c.MarkConstants(gc)
		}
	case *ObjClosureVal:
		gc.Mark(obj.Function)
		for _, uv := range obj.Upvalues {
			gc.Mark(uv)
		}
	case *ObjUpvalueVal:
		if !obj.IsOpen {
			gc.MarkValue(obj.Closed)
		}
	case *ObjClassVal:
		gc.Mark(obj.Name)
		gc.MarkTable(obj.Methods)
	case *ObjInstanceVal:
		gc.Mark(obj.Class)
		gc.MarkTable(obj.Fields)
	case *ObjBoundMethodVal:
		gc.MarkValue(obj.Receiver)
		gc.Mark(obj.Method)
	case *ObjNativeVal:
		// leaf
	case *ObjListVal:
		for _, v := range obj.Items {
			gc.MarkValue(v)
		}
	}
}

// ConstantMarker lets pkg/chunk.Chunk mark its own constants pool without
// pkg/value importing pkg/chunk (which would be a cycle, since Chunk
// constants are themselves Values). The compiler/vm wire the concrete
// *chunk.Chunk in as ObjFunctionVal.Chunk; chunk.Chunk implements this
// interface.
type ConstantMarker interface {
	MarkConstants(gc *GC)
}

// sweepStrings drops any intern-table entry whose key is unmarked,
// because the intern table holds only weak references (spec §4.8
// "Sweep ... removes any unmarked String keys from the intern table
// first").
func (gc *GC) sweepStrings() {
	live := NewTable()
	gc.strings.Each(func(key *ObjStringVal, val Value) {
		if key.Marked {
			live.Set(key, val)
		}
	})
	gc.strings = live
}

// sweep frees every unmarked object from the intrusive all-objects list
// and clears the mark bit on every surviving object for the next cycle.
// Returns the number of objects freed.
func (gc *GC) sweep() int {
	var freed int
	var prev Obj
	node := gc.objects
	for node != nil {
		h := node.header()
		next := h.Next
		if h.Marked {
			h.Marked = false
			prev = node
		} else {
			freed++
			gc.bytes -= objSize(node)
			if prev == nil {
				gc.objects = next
			} else {
				prev.header().Next = next
			}
		}
		node = next
	}
	return freed
}

// objSize returns the same nominal accounting size register() used at
// allocation time, so bytes_allocated stays consistent across the
// lifetime of an object.
func objSize(o Obj) int64 {
	switch v := o.(type) {
	case *ObjStringVal:
		return int64(len(v.Chars)) + 32
	case *ObjFunctionVal:
		return 64
	case *ObjClosureVal:
		return int64(16*len(v.Upvalues)) + 32
	case *ObjUpvalueVal:
		return 32
	case *ObjClassVal:
		return 48
	case *ObjInstanceVal:
		return 48
	case *ObjBoundMethodVal:
		return 40
	case *ObjNativeVal:
		return 32
	case *ObjListVal:
		return int64(16*len(v.Items)) + 24
	default:
		return 0
	}
}
