package wasm

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	abi "github.com/woxQAQ/sqlcursor/api/wasm"
)

// HostFunctionsImpl implements the functions guests import from the host
// module.
type HostFunctionsImpl struct {
	logger *zap.Logger
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger) *HostFunctionsImpl {
	return &HostFunctionsImpl{
		logger: logger.With(zap.String("component", "wasm-host")),
	}
}

// logMessage is called by guests to log messages.
// Signature: log_message(level, ptr, length)
func (h *HostFunctionsImpl) logMessage(_ context.Context, mod api.Module, level uint32, ptr uint32, length uint32) {
	msg, ok := mod.Memory().Read(ptr, length)
	if !ok {
		h.logger.Error("Failed to read log message from Wasm memory",
			zap.String("module", mod.Name()),
			zap.Uint32("ptr", ptr),
			zap.Uint32("length", length),
		)
		return
	}

	logger := h.logger.With(zap.String("module", mod.Name()))
	switch abi.LogLevel(level) {
	case abi.LogDebug:
		logger.Debug(string(msg))
	case abi.LogWarn:
		logger.Warn(string(msg))
	case abi.LogError:
		logger.Error(string(msg))
	default:
		logger.Info(string(msg))
	}
}

// instantiate registers the host module on r. It must run before any guest
// importing it is instantiated.
func (h *HostFunctionsImpl) instantiate(ctx context.Context, r wazero.Runtime) error {
	_, err := r.NewHostModuleBuilder(abi.HostModule).
		NewFunctionBuilder().
		WithFunc(h.logMessage).
		WithParameterNames("level", "ptr", "length").
		Export(abi.HostLogMessage).
		Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("failed to instantiate host module: %w", err)
	}
	return nil
}
