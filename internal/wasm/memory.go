package wasm

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	abi "github.com/woxQAQ/sqlcursor/api/wasm"
)

// Memory reads and writes a guest's linear memory. Writes go through the
// guest's exported alloc so the host never overwrites guest data.
type Memory struct {
	module api.Module
	mem    api.Memory
	alloc  api.Function
}

// NewMemory creates a memory helper. It returns nil when the guest exports
// no memory.
func NewMemory(module api.Module) *Memory {
	mem := module.Memory()
	if mem == nil {
		return nil
	}
	return &Memory{
		module: module,
		mem:    mem,
		alloc:  module.ExportedFunction(abi.ExportAlloc),
	}
}

// ReadString reads a null-terminated string of at most maxLen bytes.
func (m *Memory) ReadString(ptr uint32, maxLen uint32) (string, bool) {
	buf, ok := m.mem.Read(ptr, maxLen)
	if !ok {
		return "", false
	}

	end := len(buf)
	for i, b := range buf {
		if b == 0 {
			end = i
			break
		}
	}

	return string(buf[:end]), true
}

// ReadBytes copies length bytes out of guest memory.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, bool) {
	buf, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, false
	}
	// Read returns a view that is invalidated when memory grows.
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, true
}

// WriteString writes s into a fresh guest allocation.
func (m *Memory) WriteString(ctx context.Context, s string) (uint32, uint32, error) {
	return m.WriteBytes(ctx, []byte(s))
}

// WriteBytes writes data into a fresh guest allocation and returns its
// pointer and length.
func (m *Memory) WriteBytes(ctx context.Context, data []byte) (uint32, uint32, error) {
	if m.alloc == nil {
		return 0, 0, &FunctionNotFoundError{ModuleName: m.module.Name(), FunctionName: abi.ExportAlloc}
	}
	size := uint32(len(data))
	res, err := m.alloc.Call(ctx, api.EncodeU32(size))
	if err != nil {
		return 0, 0, &MemoryAccessError{Operation: "alloc", Length: size, Err: err}
	}
	if len(res) != 1 {
		return 0, 0, &MemoryAccessError{Operation: "alloc", Length: size, Err: errBadResult}
	}
	ptr := api.DecodeU32(res[0])
	if !m.mem.Write(ptr, data) {
		return 0, 0, &MemoryAccessError{Operation: "write", Address: ptr, Length: size, Err: errOutOfRange}
	}
	return ptr, size, nil
}
