// Package hooks provides a pluggable observation point for coherence
// events (accesses, misses, snoops, transactions, invariant violations)
// without coupling the simulation core to any particular consumer
// (loggers, history writers, test probes).
package hooks

import (
	"sync"

	"github.com/Readm/mesisim/core"
)

// PluginCategory is the high-level role of a registered plugin.
type PluginCategory string

const (
	// PluginCategoryInstrumentation covers metrics, tracing, and diagnostics.
	PluginCategoryInstrumentation PluginCategory = "instrumentation"
	// PluginCategoryPersistence covers run-history and report sinks.
	PluginCategoryPersistence PluginCategory = "persistence"
	// PluginCategoryDiagnostics covers invariant-violation observers.
	PluginCategoryDiagnostics PluginCategory = "diagnostics"
)

// PluginDescriptor describes a plugin registered with the broker.
type PluginDescriptor struct {
	Name        string
	Category    PluginCategory
	Description string
}

// AccessContext carries the details of one core-issued memory access.
type AccessContext struct {
	CoreID  int
	Address uint64
	Op      core.Operation
	Cycle   uint64
	Hit     bool
}

// MissContext carries the details of a cache miss that begins bus
// interaction.
type MissContext struct {
	CoreID       int
	BlockAddress uint64
	Kind         core.TransactionKind
	Cycle        uint64
}

// SnoopContext carries the details of one cache's response to a snoop.
type SnoopContext struct {
	CoreID       int
	BlockAddress uint64
	Kind         core.TransactionKind
	Cycle        uint64
	Contribution core.SnoopContribution
}

// TransactionContext carries the details of a bus transaction dispatch or
// completion.
type TransactionContext struct {
	Request core.BusRequest
	Result  core.SnoopResult
	Cycle   uint64
}

// InvariantViolationContext carries the details of a detected runtime
// invariant violation (spec.md §7).
type InvariantViolationContext struct {
	Description string
	CoreID      int
	Cycle       uint64
}

type (
	AccessHook                func(ctx *AccessContext)
	MissHook                  func(ctx *MissContext)
	SnoopHook                 func(ctx *SnoopContext)
	TransactionDispatchedHook func(ctx *TransactionContext)
	TransactionCompletedHook  func(ctx *TransactionContext)
	InvariantViolationHook    func(ctx *InvariantViolationContext)
)

// HookBundle groups every hook handler belonging to one plugin, so a
// single registration call can wire several event kinds at once.
type HookBundle struct {
	OnAccess                []AccessHook
	OnMiss                  []MissHook
	OnSnoop                 []SnoopHook
	OnTransactionDispatched []TransactionDispatchedHook
	OnTransactionCompleted  []TransactionCompletedHook
	OnInvariantViolation    []InvariantViolationHook
}

// PluginBroker coordinates hook registration and triggering across the
// simulation core.
type PluginBroker struct {
	mu sync.RWMutex

	accessHooks                []AccessHook
	missHooks                  []MissHook
	snoopHooks                 []SnoopHook
	transactionDispatchedHooks []TransactionDispatchedHook
	transactionCompletedHooks  []TransactionCompletedHook
	invariantViolationHooks    []InvariantViolationHook

	pluginCatalog map[PluginCategory][]PluginDescriptor
}

// NewPluginBroker creates an empty broker instance.
func NewPluginBroker() *PluginBroker {
	return &PluginBroker{
		pluginCatalog: make(map[PluginCategory][]PluginDescriptor),
	}
}

// Register adds every hook in bundle under the given plugin descriptor.
func (p *PluginBroker) Register(desc PluginDescriptor, bundle HookBundle) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.accessHooks = append(p.accessHooks, bundle.OnAccess...)
	p.missHooks = append(p.missHooks, bundle.OnMiss...)
	p.snoopHooks = append(p.snoopHooks, bundle.OnSnoop...)
	p.transactionDispatchedHooks = append(p.transactionDispatchedHooks, bundle.OnTransactionDispatched...)
	p.transactionCompletedHooks = append(p.transactionCompletedHooks, bundle.OnTransactionCompleted...)
	p.invariantViolationHooks = append(p.invariantViolationHooks, bundle.OnInvariantViolation...)

	p.pluginCatalog[desc.Category] = append(p.pluginCatalog[desc.Category], desc)
}

// Plugins lists every registered plugin descriptor in a category.
func (p *PluginBroker) Plugins(category PluginCategory) []PluginDescriptor {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PluginDescriptor, len(p.pluginCatalog[category]))
	copy(out, p.pluginCatalog[category])
	return out
}

// FireAccess invokes every registered access hook.
func (p *PluginBroker) FireAccess(ctx AccessContext) {
	if p == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, h := range p.accessHooks {
		h(&ctx)
	}
}

// FireMiss invokes every registered miss hook.
func (p *PluginBroker) FireMiss(ctx MissContext) {
	if p == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, h := range p.missHooks {
		h(&ctx)
	}
}

// FireSnoop invokes every registered snoop hook.
func (p *PluginBroker) FireSnoop(ctx SnoopContext) {
	if p == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, h := range p.snoopHooks {
		h(&ctx)
	}
}

// FireTransactionDispatched invokes every registered dispatch hook.
func (p *PluginBroker) FireTransactionDispatched(ctx TransactionContext) {
	if p == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, h := range p.transactionDispatchedHooks {
		h(&ctx)
	}
}

// FireTransactionCompleted invokes every registered completion hook.
func (p *PluginBroker) FireTransactionCompleted(ctx TransactionContext) {
	if p == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, h := range p.transactionCompletedHooks {
		h(&ctx)
	}
}

// FireInvariantViolation invokes every registered invariant-violation hook.
func (p *PluginBroker) FireInvariantViolation(ctx InvariantViolationContext) {
	if p == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, h := range p.invariantViolationHooks {
		h(&ctx)
	}
}
