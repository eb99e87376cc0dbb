// Package jsrt is a minimal script runtime whose every value lives in a
// pluggable heap. It models what an embedded engine asks of its allocator:
// fixed runtime and context blocks, strings, objects with property tables
// that grow by reallocation, and short-lived call frames.
package jsrt

import (
	"encoding/binary"
	"math"
	"strconv"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/pavanmanishd/stackarena"
)

// Heap is the malloc table the runtime draws memory from.
type Heap interface {
	Malloc(size int) stackarena.Ptr
	Free(p stackarena.Ptr)
	Realloc(p stackarena.Ptr, size int) stackarena.Ptr
	UsableSize(p stackarena.Ptr) int
	Bytes(p stackarena.Ptr) []byte
}

// CFunction is a host function callable from the runtime.
type CFunction func(ctx *Context, this Value, args []Value) (Value, error)

const (
	runtimeBlockSize = 2048 // atom table and class registry
	contextBlockSize = 1024 // intrinsics
	stringPrefix     = 8    // length prefix of string blocks
	minProperties    = 4
)

// objectBlock is the heap layout of objects, arrays and functions.
type objectBlock struct {
	props uint64 // property table, 0 while empty
	count uint32
	cap   uint32
	fn    uint32 // function index + 1
	_     uint32
}

// property is one slot of a property table. Array elements have no key.
type property struct {
	key  uint64
	kind uint32
	_    uint32
	bits uint64
}

var (
	objectSize   = int(unsafe.Sizeof(objectBlock{}))
	propertySize = int(unsafe.Sizeof(property{}))
)

type function struct {
	name string
	fn   CFunction
}

// Runtime owns the heap and the registry of host functions.
type Runtime struct {
	heap  Heap
	block stackarena.Ptr
	funcs []function
}

// NewRuntime reserves the runtime's own block from h.
func NewRuntime(h Heap) (*Runtime, error) {
	rt := &Runtime{heap: h}
	p := h.Malloc(runtimeBlockSize)
	if p == stackarena.Nil {
		return nil, rt.oom("runtime", runtimeBlockSize)
	}
	clear(h.Bytes(p))
	rt.block = p
	return rt, nil
}

// Free releases the runtime block. Contexts must be freed first.
func (rt *Runtime) Free() {
	rt.heap.Free(rt.block)
	rt.block = stackarena.Nil
	rt.funcs = nil
}

func (rt *Runtime) oom(what string, size int) error {
	if h, ok := rt.heap.(interface{ Err() error }); ok && h.Err() != nil {
		return errors.Mark(errors.Wrapf(h.Err(), "jsrt: %s (%d bytes)", what, size), ErrOutOfMemory)
	}
	return errors.Wrapf(ErrOutOfMemory, "%s (%d bytes)", what, size)
}

type owned struct {
	p      stackarena.Ptr
	object bool
}

// Context is an evaluation context with its own global object. It owns
// every value created through it until Free.
type Context struct {
	rt     *Runtime
	block  stackarena.Ptr
	global Value
	owned  []owned
}

// NewContext reserves a context block and its global object.
func (rt *Runtime) NewContext() (*Context, error) {
	p := rt.heap.Malloc(contextBlockSize)
	if p == stackarena.Nil {
		return nil, rt.oom("context", contextBlockSize)
	}
	clear(rt.heap.Bytes(p))
	ctx := &Context{rt: rt, block: p}
	global, err := ctx.newObject(Object, 0)
	if err != nil {
		rt.heap.Free(p)
		return nil, err
	}
	ctx.global = global
	return ctx, nil
}

// Free releases every block the context owns, newest first, then the
// context block itself.
func (ctx *Context) Free() {
	h := ctx.rt.heap
	for i := len(ctx.owned) - 1; i >= 0; i-- {
		o := ctx.owned[i]
		if o.object {
			h.Free(stackarena.Ptr(ctx.object(o.p).props))
		}
		h.Free(o.p)
	}
	ctx.owned = nil
	h.Free(ctx.block)
	ctx.block = stackarena.Nil
}

// Global returns the global object.
func (ctx *Context) Global() Value {
	return ctx.global
}

// NewObject creates an empty object.
func (ctx *Context) NewObject() (Value, error) {
	return ctx.newObject(Object, 0)
}

// NewArray creates an empty array.
func (ctx *Context) NewArray() (Value, error) {
	return ctx.newObject(Array, 0)
}

// NewFunction registers fn and returns a function object calling it.
func (ctx *Context) NewFunction(name string, fn CFunction) (Value, error) {
	ctx.rt.funcs = append(ctx.rt.funcs, function{name: name, fn: fn})
	return ctx.newObject(Function, uint32(len(ctx.rt.funcs)))
}

// NewString copies s into the heap.
func (ctx *Context) NewString(s string) (Value, error) {
	p, err := ctx.newString(s)
	if err != nil {
		return UndefinedValue, err
	}
	return Value{kind: String, bits: uint64(p)}, nil
}

func (ctx *Context) newString(s string) (stackarena.Ptr, error) {
	h := ctx.rt.heap
	p := h.Malloc(stringPrefix + len(s))
	if p == stackarena.Nil {
		return stackarena.Nil, ctx.rt.oom("string", stringPrefix+len(s))
	}
	b := h.Bytes(p)
	binary.LittleEndian.PutUint64(b, uint64(len(s)))
	copy(b[stringPrefix:], s)
	ctx.owned = append(ctx.owned, owned{p: p})
	return p, nil
}

func (ctx *Context) stringBytes(p stackarena.Ptr) []byte {
	b := ctx.rt.heap.Bytes(p)
	n := binary.LittleEndian.Uint64(b)
	return b[stringPrefix : stringPrefix+int(n)]
}

func (ctx *Context) newObject(kind Kind, fn uint32) (Value, error) {
	p := ctx.rt.heap.Malloc(objectSize)
	if p == stackarena.Nil {
		return UndefinedValue, ctx.rt.oom(kind.String(), objectSize)
	}
	*ctx.object(p) = objectBlock{fn: fn}
	ctx.owned = append(ctx.owned, owned{p: p, object: true})
	return Value{kind: kind, bits: uint64(p)}, nil
}

func (ctx *Context) object(p stackarena.Ptr) *objectBlock {
	return stackarena.As[objectBlock](ctx.rt.heap.Bytes(p))
}

func (ctx *Context) properties(ob *objectBlock) []property {
	if ob.props == 0 {
		return nil
	}
	props := stackarena.AsSlice[property](ctx.rt.heap.Bytes(stackarena.Ptr(ob.props)))
	return props[:ob.count]
}

// reserve makes room for one more property, doubling the table through the
// heap's Realloc.
func (ctx *Context) reserve(ob *objectBlock) error {
	if ob.count < ob.cap {
		return nil
	}
	h := ctx.rt.heap
	size := max(minProperties, int(ob.cap)*2) * propertySize
	np := h.Realloc(stackarena.Ptr(ob.props), size)
	if np == stackarena.Nil {
		return ctx.rt.oom("property table", size)
	}
	ob.props = uint64(np)
	ob.cap = uint32(h.UsableSize(np) / propertySize)
	return nil
}

func (ctx *Context) append(obj Value, key stackarena.Ptr, v Value) error {
	ob := ctx.object(obj.ptr())
	if err := ctx.reserve(ob); err != nil {
		return err
	}
	ob.count++
	ctx.properties(ob)[ob.count-1] = property{key: uint64(key), kind: uint32(v.kind), bits: v.bits}
	return nil
}

func (ctx *Context) lookup(obj Value, key string) *property {
	props := ctx.properties(ctx.object(obj.ptr()))
	for i := range props {
		if props[i].key != 0 && string(ctx.stringBytes(stackarena.Ptr(props[i].key))) == key {
			return &props[i]
		}
	}
	return nil
}

// SetProperty sets obj[key] = v.
func (ctx *Context) SetProperty(obj Value, key string, v Value) error {
	if !obj.isObject() {
		return errors.Wrapf(ErrNotObject, "set %q on %v", key, obj.kind)
	}
	if prop := ctx.lookup(obj, key); prop != nil {
		prop.kind, prop.bits = uint32(v.kind), v.bits
		return nil
	}
	kp, err := ctx.newString(key)
	if err != nil {
		return err
	}
	return ctx.append(obj, kp, v)
}

// GetProperty returns obj[key], UndefinedValue when absent.
func (ctx *Context) GetProperty(obj Value, key string) (Value, error) {
	if !obj.isObject() {
		return UndefinedValue, errors.Wrapf(ErrNotObject, "get %q on %v", key, obj.kind)
	}
	if prop := ctx.lookup(obj, key); prop != nil {
		return Value{kind: Kind(prop.kind), bits: prop.bits}, nil
	}
	return UndefinedValue, nil
}

// Push appends v to the array arr.
func (ctx *Context) Push(arr Value, v Value) error {
	if arr.kind != Array {
		return errors.Wrapf(ErrNotObject, "push on %v", arr.kind)
	}
	return ctx.append(arr, stackarena.Nil, v)
}

// Len returns the number of elements of arr, 0 for non-arrays.
func (ctx *Context) Len(arr Value) int {
	if arr.kind != Array {
		return 0
	}
	return int(ctx.object(arr.ptr()).count)
}

// Index returns arr[i], UndefinedValue when out of range or not an array.
func (ctx *Context) Index(arr Value, i int) Value {
	if i < 0 || i >= ctx.Len(arr) {
		return UndefinedValue
	}
	prop := ctx.properties(ctx.object(arr.ptr()))[i]
	return Value{kind: Kind(prop.kind), bits: prop.bits}
}

// ToString converts v to a Go string.
func (ctx *Context) ToString(v Value) (string, error) {
	switch v.kind {
	case Undefined:
		return "undefined", nil
	case Bool:
		return strconv.FormatBool(v.bits != 0), nil
	case Number:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64), nil
	case String:
		return string(ctx.stringBytes(v.ptr())), nil
	case Array:
		return "[object Array]", nil
	case Function:
		return "function " + ctx.rt.funcs[ctx.object(v.ptr()).fn-1].name + "()", nil
	}
	return "[object Object]", nil
}

// Truthy reports whether v converts to true. Only undefined, false, zero,
// NaN and the empty string do not.
func (ctx *Context) Truthy(v Value) bool {
	switch v.kind {
	case Undefined:
		return false
	case Bool:
		return v.bits != 0
	case Number:
		f := v.Float()
		return f != 0 && !math.IsNaN(f)
	case String:
		return len(ctx.stringBytes(v.ptr())) > 0
	}
	return true
}

// Call invokes fn with the given receiver and arguments. The arguments are
// staged in a heap frame for the duration of the call.
func (ctx *Context) Call(fn Value, this Value, args ...Value) (Value, error) {
	if fn.kind != Function {
		return UndefinedValue, errors.Wrapf(ErrNotFunction, "call on %v", fn.kind)
	}
	h := ctx.rt.heap
	size := max(len(args), 1) * propertySize
	frame := h.Malloc(size)
	if frame == stackarena.Nil {
		return UndefinedValue, ctx.rt.oom("call frame", size)
	}
	defer h.Free(frame)

	slots := stackarena.AsSlice[property](h.Bytes(frame))
	for i, arg := range args {
		slots[i] = property{kind: uint32(arg.kind), bits: arg.bits}
	}
	staged := make([]Value, len(args))
	for i := range staged {
		staged[i] = Value{kind: Kind(slots[i].kind), bits: slots[i].bits}
	}
	f := ctx.rt.funcs[ctx.object(fn.ptr()).fn-1]
	ret, err := f.fn(ctx, this, staged)
	if err != nil {
		return UndefinedValue, errors.Wrapf(err, "in %s", f.name)
	}
	return ret, nil
}
