package wasm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	abi "github.com/woxQAQ/sqlcursor/api/wasm"
)

// InstanceManager creates instances of compiled modules.
type InstanceManager struct {
	runtime *Runtime
	logger  *zap.Logger
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime: runtime,
		logger:  logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, one is generated).
	InstanceID string
}

// Instance is an instantiated guest. Guests are single threaded, so calls
// on one Instance are serialized.
type Instance struct {
	module  api.Module
	mem     *Memory
	runtime *Runtime
	logger  *zap.Logger

	ID        string
	Name      string
	CreatedAt int64

	mu      sync.Mutex
	exports map[string]api.Function
}

var instanceSeq atomic.Uint64

// Instantiate creates a new instance from a compiled module. The host
// module is already registered on the runtime.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	if !m.runtime.reserve() {
		return nil, &InstanceLimitError{ModuleName: config.ModuleName, Limit: m.runtime.config.MaxInstances}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = generateInstanceID()
	}

	m.logger.Debug("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions() // Call _start if present

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		m.runtime.release()
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	instance := &Instance{
		module:    module,
		mem:       NewMemory(module),
		runtime:   m.runtime,
		logger:    m.logger.With(zap.String("module", config.ModuleName), zap.String("instance_id", instanceID)),
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   cacheExportedFunctions(module),
	}

	m.runtime.storeInstance(instance)

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(instance.exports)),
	)

	return instance, nil
}

// Memory returns the guest memory helper, or nil if the guest has none.
func (i *Instance) Memory() *Memory {
	return i.mem
}

// HasExport reports whether the guest exports the named function.
func (i *Instance) HasExport(name string) bool {
	_, ok := i.exports[name]
	return ok
}

// Closed reports whether the instance was closed, either explicitly or
// because a call ran past its deadline.
func (i *Instance) Closed() bool {
	return i.module.IsClosed()
}

// Close closes the instance and releases its slot.
func (i *Instance) Close(ctx context.Context) error {
	i.runtime.deleteInstance(i.ID)
	return i.module.Close(ctx)
}

// Call writes payload into guest memory, calls the named export with its
// pointer and length, and returns the bytes the packed result points at.
func (i *Instance) Call(ctx context.Context, name string, payload []byte) ([]byte, error) {
	fn, ok := i.exports[name]
	if !ok {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: name}
	}
	if i.mem == nil {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: abi.ExportMemory}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	start := time.Now()
	if timeout := i.runtime.config.ExecutionTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ptr, length, err := i.mem.WriteBytes(ctx, payload)
	if err != nil {
		return nil, i.callError(ctx, start, err)
	}

	res, err := fn.Call(ctx, api.EncodeU32(ptr), api.EncodeU32(length))
	if err != nil {
		return nil, i.callError(ctx, start, err)
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("%s: %w", name, errBadResult)
	}

	outPtr, outLen := abi.Unpack(res[0])
	out, ok := i.mem.ReadBytes(outPtr, outLen)
	if !ok {
		return nil, &MemoryAccessError{Operation: "read", Address: outPtr, Length: outLen, Err: errOutOfRange}
	}

	if i.runtime.config.DebugEnabled {
		i.logger.Debug("Guest call complete",
			zap.String("function", name),
			zap.Int("request_bytes", len(payload)),
			zap.Int("response_bytes", len(out)),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return out, nil
}

func (i *Instance) callError(ctx context.Context, start time.Time, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{ModuleName: i.Name, Duration: time.Since(start)}
	}
	return err
}

func cacheExportedFunctions(module api.Module) map[string]api.Function {
	exports := make(map[string]api.Function)
	for _, name := range []string{abi.ExportAlloc, abi.ExportLookup} {
		if fn := module.ExportedFunction(name); fn != nil {
			exports[name] = fn
		}
	}
	return exports
}

func generateInstanceID() string {
	return fmt.Sprintf("inst-%d-%d", time.Now().UnixNano(), instanceSeq.Add(1))
}
