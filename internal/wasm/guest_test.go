package wasm

import "os"

// Hand-assembled guests for tests. Sections stay under 128 bytes so every
// size fits in a single LEB128 byte.

func section(id byte, content ...byte) []byte {
	return append([]byte{id, byte(len(content))}, content...)
}

func name(s string) []byte {
	return append([]byte{byte(len(s))}, s...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var wasmHeader = []byte{
	0x00, 0x61, 0x73, 0x6d, // Magic number: \0asm
	0x01, 0x00, 0x00, 0x00, // Version: 1
}

// emptyModule is a valid module with no exports.
func emptyModule() []byte {
	return wasmHeader
}

// memoryModule exports one page of memory and nothing else.
func memoryModule() []byte {
	return concat(
		wasmHeader,
		section(0x05, 0x01, 0x00, 0x01),
		section(0x07, concat([]byte{0x01}, name("memory"), []byte{0x02, 0x00})...),
	)
}

// cannedGuest exports memory, a bump allocator starting at 1024 and a
// lookup that ignores its input and returns response, stored at offset 16.
func cannedGuest(response string) []byte {
	data := []byte(response)
	if len(data) >= 64 {
		panic("canned response too long")
	}
	return concat(
		wasmHeader,
		// type 0: (i32) -> i32, type 1: (i32, i32) -> i64
		section(0x01,
			0x02,
			0x60, 0x01, 0x7f, 0x01, 0x7f,
			0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7e,
		),
		section(0x03, 0x02, 0x00, 0x01),
		section(0x05, 0x01, 0x00, 0x01),
		// mutable i32 heap pointer = 1024
		section(0x06, 0x01, 0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b),
		section(0x07, concat(
			[]byte{0x03},
			name("memory"), []byte{0x02, 0x00},
			name("alloc"), []byte{0x00, 0x00},
			name("lookup"), []byte{0x00, 0x01},
		)...),
		section(0x0a, concat(
			[]byte{0x02},
			// alloc: old := heap; heap += n; return old
			[]byte{0x0b, 0x00, 0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x0b},
			// lookup: return 16<<32 | len(response)
			[]byte{0x0a, 0x00, 0x42, 0x10, 0x42, 0x20, 0x86, 0x42, byte(len(data)), 0x84, 0x0b},
		)...),
		section(0x0b, concat(
			[]byte{0x01, 0x00, 0x41, 0x10, 0x0b, byte(len(data))},
			data,
		)...),
	)
}

// mistypedGuest exports its allocator under both alloc and lookup.
func mistypedGuest() []byte {
	return concat(
		wasmHeader,
		section(0x01, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f),
		section(0x03, 0x01, 0x00),
		section(0x05, 0x01, 0x00, 0x01),
		section(0x06, 0x01, 0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b),
		section(0x07, concat(
			[]byte{0x03},
			name("memory"), []byte{0x02, 0x00},
			name("alloc"), []byte{0x00, 0x00},
			name("lookup"), []byte{0x00, 0x00},
		)...),
		section(0x0a, 0x01, 0x0b, 0x00, 0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x0b),
	)
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
