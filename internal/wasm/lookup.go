package wasm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	abi "github.com/woxQAQ/sqlcursor/api/wasm"
	"github.com/woxQAQ/sqlcursor/internal/catalog"
)

// Lookup answers catalog.LiveLookup queries by calling a guest's lookup
// export. The instance is created on first use and replaced after a call
// leaves it closed (timeouts close the guest).
type Lookup struct {
	manager    *InstanceManager
	moduleName string
	logger     *zap.Logger

	mu       sync.Mutex
	instance *Instance
}

var _ catalog.LiveLookup = (*Lookup)(nil)

// NewLookup returns a lookup backed by the compiled module moduleName.
func NewLookup(manager *InstanceManager, moduleName string, logger *zap.Logger) *Lookup {
	return &Lookup{
		manager:    manager,
		moduleName: moduleName,
		logger:     logger.With(zap.String("component", "wasm-lookup"), zap.String("module", moduleName)),
	}
}

// FunctionSignatures implements catalog.LiveLookup.
func (l *Lookup) FunctionSignatures(ctx context.Context, name string) ([]catalog.Object, error) {
	resp, err := l.call(ctx, abi.LookupRequest{Op: abi.OpFunctionSignatures, Name: name})
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Object, 0, len(resp.Functions))
	for _, sig := range resp.Functions {
		out = append(out, catalog.Object{
			Kind:    catalog.KindFunction,
			Name:    sig.Name,
			Schema:  sig.Schema,
			Args:    sig.Args,
			Returns: sig.Returns,
			Detail:  sig.Detail,
		})
	}
	return out, nil
}

// ColumnValues implements catalog.LiveLookup.
func (l *Lookup) ColumnValues(ctx context.Context, req catalog.ColumnValuesRequest) ([]string, error) {
	resp, err := l.call(ctx, abi.LookupRequest{
		Op:     abi.OpColumnValues,
		Schema: req.Schema,
		Table:  req.Table,
		Column: req.Column,
		Prefix: req.Prefix,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(resp.Values) > req.Limit {
		return resp.Values[:req.Limit], nil
	}
	return resp.Values, nil
}

// Close releases the guest instance, if any.
func (l *Lookup) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.instance == nil {
		return nil
	}
	err := l.instance.Close(ctx)
	l.instance = nil
	return err
}

func (l *Lookup) call(ctx context.Context, req abi.LookupRequest) (*abi.LookupResponse, error) {
	inst, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lookup request: %w", err)
	}

	raw, err := inst.Call(ctx, abi.ExportLookup, payload)
	if inst.Closed() {
		l.discard(ctx, inst)
	}
	if err != nil {
		return nil, err
	}

	var resp abi.LookupResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response from '%s': %w", l.moduleName, err)
	}
	if resp.Error != "" {
		return nil, &GuestError{ModuleName: l.moduleName, Message: resp.Error}
	}
	return &resp, nil
}

func (l *Lookup) acquire(ctx context.Context) (*Instance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.instance != nil {
		return l.instance, nil
	}
	inst, err := l.manager.Instantiate(ctx, &InstanceConfig{ModuleName: l.moduleName})
	if err != nil {
		return nil, err
	}
	if !inst.HasExport(abi.ExportLookup) {
		inst.Close(ctx)
		return nil, &FunctionNotFoundError{ModuleName: l.moduleName, FunctionName: abi.ExportLookup}
	}
	l.instance = inst
	return inst, nil
}

func (l *Lookup) discard(ctx context.Context, inst *Instance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.instance != inst {
		return
	}
	l.logger.Warn("Guest instance closed, will re-instantiate", zap.String("instance_id", inst.ID))
	inst.Close(context.WithoutCancel(ctx))
	l.instance = nil
}

// ModuleName returns the compiled module this lookup calls.
func (l *Lookup) ModuleName() string {
	return l.moduleName
}
