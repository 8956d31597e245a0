package hostilemarket

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/gas"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

// A market adapter that misbehaves inside its settlement callback. In reenter
// mode it calls straight back into the settlement contract's closeEpoch; in
// observe mode it checks that the epoch is already flagged closed while the
// callback runs.

const (
	registryKey  = 'r'
	studioKeyKey = 'k'
	reenterKey   = 'e'
	observedKey  = 'o'
)

func OnNEP17Payment(from interop.Hash160, amount int, data any) {
	if !runtime.GetCallingScriptHash().Equals(gas.Hash) {
		panic("GAS only")
	}
}

// Register transfers the reward to the registry together with the
// registration payload, making this contract the registered market.
func Register(registry interop.Hash160, marketID int, question string, options []string, deadline, reward int) {
	storage.Put(storage.GetContext(), registryKey, registry)

	data := []any{marketID, question, options, deadline}
	if !gas.Transfer(runtime.GetExecutingScriptHash(), registry, reward, data) {
		panic("registration transfer failed")
	}
}

func SetSettler(marketID int, settler interop.Hash160) {
}

// Prime arms the callback with the studio key and the behavior to run.
func Prime(key interop.Hash256, reenter bool) {
	ctx := storage.GetContext()
	storage.Put(ctx, studioKeyKey, key)
	if reenter {
		storage.Put(ctx, reenterKey, []byte{1})
	} else {
		storage.Delete(ctx, reenterKey)
	}
}

// OnSettlement either re-enters the caller's closeEpoch or records whether
// the closed flag was committed before the callback, depending on how the
// contract was primed.
func OnSettlement(marketID, outcome int, proofHash interop.Hash256) {
	ctx := storage.GetContext()
	key := storage.Get(ctx, studioKeyKey).(interop.Hash256)
	settler := runtime.GetCallingScriptHash()

	if storage.Get(ctx, reenterKey) != nil {
		contract.Call(settler, "closeEpoch", contract.All, key)
		return
	}

	closed := contract.Call(settler, "epochClosed", contract.ReadOnly, key).(bool)
	if !closed {
		panic("closed flag not committed before callback")
	}
	storage.Put(ctx, observedKey, []byte{1})
}

// ObservedClosed returns true if a callback ran and found the epoch already
// flagged closed.
func ObservedClosed() bool {
	return storage.Get(storage.GetReadOnlyContext(), observedKey) != nil
}
