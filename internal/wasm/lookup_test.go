package wasm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	abi "github.com/woxQAQ/sqlcursor/api/wasm"
	"github.com/woxQAQ/sqlcursor/internal/catalog"
)

func loadGuest(t *testing.T, runtime *Runtime, moduleName string, bin []byte) *CompiledModule {
	t.Helper()
	mod, err := NewModuleLoader(runtime, zaptest.NewLogger(t)).LoadModuleFromMemory(context.Background(), moduleName, bin)
	require.NoError(t, err)
	return mod
}

func TestModuleLoaderCache(t *testing.T) {
	runtime := newTestRuntime(t, nil)

	first := loadGuest(t, runtime, "guest", emptyModule())
	second := loadGuest(t, runtime, "guest", emptyModule())
	assert.Same(t, first, second)
	assert.Equal(t, int64(8), first.SizeBytes)
}

func TestModuleLoaderFile(t *testing.T) {
	runtime := newTestRuntime(t, nil)
	loader := NewModuleLoader(runtime, zaptest.NewLogger(t))

	path := t.TempDir() + "/guest.wasm"
	require.NoError(t, writeFile(path, cannedGuest(`{}`)))

	mod, err := loader.LoadModuleFromFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, mod.Name)
	assert.NoError(t, ValidateLookupABI(mod))

	_, err = loader.LoadModuleFromFile(context.Background(), path+".missing")
	assert.Error(t, err)
}

func TestModuleLoaderInvalidBinary(t *testing.T) {
	runtime := newTestRuntime(t, nil)
	_, err := NewModuleLoader(runtime, zaptest.NewLogger(t)).
		LoadModuleFromMemory(context.Background(), "junk", []byte("not wasm"))

	var compErr *CompilationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "junk", compErr.ModuleName)
}

func TestValidateLookupABI(t *testing.T) {
	runtime := newTestRuntime(t, nil)

	var fnErr *FunctionNotFoundError
	require.ErrorAs(t, ValidateLookupABI(loadGuest(t, runtime, "empty", emptyModule())), &fnErr)
	assert.Equal(t, abi.ExportMemory, fnErr.FunctionName)

	require.ErrorAs(t, ValidateLookupABI(loadGuest(t, runtime, "mem", memoryModule())), &fnErr)
	assert.Equal(t, abi.ExportAlloc, fnErr.FunctionName)

	var sigErr *SignatureMismatchError
	require.ErrorAs(t, ValidateLookupABI(loadGuest(t, runtime, "mistyped", mistypedGuest())), &sigErr)
	assert.Equal(t, abi.ExportLookup, sigErr.FunctionName)
	assert.Equal(t, "(i32) -> (i32)", sigErr.Got)
	assert.Equal(t, "(i32, i32) -> (i64)", sigErr.Want)

	assert.NoError(t, ValidateLookupABI(loadGuest(t, runtime, "canned", cannedGuest(`{}`))))
}

func TestMemoryWriteRead(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)
	loadGuest(t, runtime, "guest", cannedGuest(`{}`))

	inst, err := NewInstanceManager(runtime, zaptest.NewLogger(t)).Instantiate(ctx, &InstanceConfig{ModuleName: "guest"})
	require.NoError(t, err)
	defer inst.Close(ctx)

	mem := inst.Memory()
	require.NotNil(t, mem)

	ptr, n, err := mem.WriteString(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), ptr)
	assert.Equal(t, uint32(6), n)

	ptr2, _, err := mem.WriteBytes(ctx, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, uint32(1030), ptr2, "allocations must not overlap")

	got, ok := mem.ReadBytes(ptr, n)
	require.True(t, ok)
	assert.Equal(t, "orders", string(got))

	s, ok := mem.ReadString(ptr, 16)
	require.True(t, ok)
	assert.Equal(t, "ordersx", s)

	_, ok = mem.ReadBytes(1<<16-2, 4)
	assert.False(t, ok)
}

func TestMemoryWithoutAlloc(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)
	loadGuest(t, runtime, "mem", memoryModule())

	inst, err := NewInstanceManager(runtime, zaptest.NewLogger(t)).Instantiate(ctx, &InstanceConfig{ModuleName: "mem"})
	require.NoError(t, err)
	defer inst.Close(ctx)

	_, _, err = inst.Memory().WriteBytes(ctx, []byte("x"))
	var fnErr *FunctionNotFoundError
	require.ErrorAs(t, err, &fnErr)
	assert.Equal(t, abi.ExportAlloc, fnErr.FunctionName)
}

func TestInstanceCallMissingExport(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)
	loadGuest(t, runtime, "empty", emptyModule())

	inst, err := NewInstanceManager(runtime, zaptest.NewLogger(t)).Instantiate(ctx, &InstanceConfig{ModuleName: "empty"})
	require.NoError(t, err)
	defer inst.Close(ctx)

	_, err = inst.Call(ctx, abi.ExportLookup, nil)
	var fnErr *FunctionNotFoundError
	require.ErrorAs(t, err, &fnErr)
	assert.Equal(t, abi.ExportLookup, fnErr.FunctionName)
}

func TestLookupColumnValues(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, &RuntimeConfig{MemoryPages: 16, DebugEnabled: true})
	loadGuest(t, runtime, "guest", cannedGuest(`{"values":["paid","pending"]}`))

	lookup := NewLookup(NewInstanceManager(runtime, zaptest.NewLogger(t)), "guest", zaptest.NewLogger(t))
	defer lookup.Close(ctx)

	values, err := lookup.ColumnValues(ctx, catalog.ColumnValuesRequest{Table: "orders", Column: "status", Prefix: "pa"})
	require.NoError(t, err)
	assert.Equal(t, []string{"paid", "pending"}, values)

	values, err = lookup.ColumnValues(ctx, catalog.ColumnValuesRequest{Table: "orders", Column: "status", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"paid"}, values)

	// The instance is reused across calls.
	assert.Equal(t, 1, runtime.ActiveInstances())
}

func TestLookupFunctionSignatures(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)
	loadGuest(t, runtime, "guest", cannedGuest(`{"functions":[{"name":"f","args":["int"]}]}`))

	lookup := NewLookup(NewInstanceManager(runtime, zaptest.NewLogger(t)), "guest", zaptest.NewLogger(t))
	defer lookup.Close(ctx)

	sigs, err := lookup.FunctionSignatures(ctx, "f")
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, catalog.KindFunction, sigs[0].Kind)
	assert.Equal(t, "f(int)", sigs[0].Signature())
}

func TestLookupGuestError(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)
	loadGuest(t, runtime, "guest", cannedGuest(`{"error":"no such table"}`))

	lookup := NewLookup(NewInstanceManager(runtime, zaptest.NewLogger(t)), "guest", zaptest.NewLogger(t))
	defer lookup.Close(ctx)

	_, err := lookup.ColumnValues(ctx, catalog.ColumnValuesRequest{Table: "t", Column: "c"})
	var guestErr *GuestError
	require.ErrorAs(t, err, &guestErr)
	assert.Equal(t, "no such table", guestErr.Message)
}

func TestLookupBadResponse(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)
	loadGuest(t, runtime, "guest", cannedGuest(`not json`))

	lookup := NewLookup(NewInstanceManager(runtime, zaptest.NewLogger(t)), "guest", zaptest.NewLogger(t))
	defer lookup.Close(ctx)

	_, err := lookup.FunctionSignatures(ctx, "f")
	assert.ErrorContains(t, err, "failed to decode lookup response")
}

func TestLookupRequiresLookupExport(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)
	loadGuest(t, runtime, "mem", memoryModule())

	lookup := NewLookup(NewInstanceManager(runtime, zaptest.NewLogger(t)), "mem", zaptest.NewLogger(t))
	_, err := lookup.FunctionSignatures(ctx, "f")

	var fnErr *FunctionNotFoundError
	require.ErrorAs(t, err, &fnErr)
	assert.Equal(t, 0, runtime.ActiveInstances())
}

func TestLookupAsLiveLookup(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)
	loadGuest(t, runtime, "broken", memoryModule())
	loadGuest(t, runtime, "guest", cannedGuest(`{"values":["a"]}`))

	mgr := NewInstanceManager(runtime, zaptest.NewLogger(t))
	lookups := catalog.Lookups{
		NewLookup(mgr, "broken", zaptest.NewLogger(t)),
		NewLookup(mgr, "guest", zaptest.NewLogger(t)),
	}

	values, err := lookups.ColumnValues(ctx, catalog.ColumnValuesRequest{Table: "t", Column: "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, values)
}
