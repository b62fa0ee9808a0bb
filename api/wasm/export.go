// Package wasm defines the ABI between sqlcursor and catalog add-on guests.
//
// A guest exports its linear memory plus two functions:
//
//	alloc(size uint32) uint32
//	lookup(ptr, length uint32) uint64
//
// The host allocates a buffer with alloc, writes a JSON LookupRequest into it
// and calls lookup. The result packs the location of a JSON LookupResponse in
// guest memory: pointer in the high 32 bits, length in the low 32 bits.
//
// uint32 is used for pointers and lengths because WebAssembly uses a 32-bit
// linear memory model.
package wasm

const (
	ExportMemory = "memory"
	ExportAlloc  = "alloc"
	ExportLookup = "lookup"
)

// Op names a lookup operation.
type Op string

const (
	OpFunctionSignatures Op = "functionSignatures"
	OpColumnValues       Op = "columnValues"
)

// LookupRequest is written into guest memory before calling lookup.
type LookupRequest struct {
	Op Op `json:"op"`

	// Function name for OpFunctionSignatures.
	Name string `json:"name,omitempty"`

	// Column selection for OpColumnValues.
	Schema string `json:"schema,omitempty"`
	Table  string `json:"table,omitempty"`
	Column string `json:"column,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Signature is one function overload.
type Signature struct {
	Name    string   `json:"name"`
	Schema  string   `json:"schema,omitempty"`
	Args    []string `json:"args,omitempty"`
	Returns string   `json:"returns,omitempty"`
	Detail  string   `json:"detail,omitempty"`
}

// LookupResponse is returned by lookup. A non-empty Error fails the call.
type LookupResponse struct {
	Functions []Signature `json:"functions,omitempty"`
	Values    []string    `json:"values,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Pack combines a pointer and length into a lookup result.
func Pack(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// Unpack splits a lookup result into pointer and length.
func Unpack(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}
