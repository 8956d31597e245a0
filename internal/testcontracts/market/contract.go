package market

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/gas"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

// Settlement records the callback delivered via onSettlement.
type Settlement struct {
	MarketID  int
	Outcome   int
	ProofHash interop.Hash256
}

const (
	settlerPrefix    = 's'
	settlementPrefix = 'o'
	registryKey      = 'r'
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

// SetSettler records the settler authorized to deliver the outcome of the
// given market id. Only the registry the market registered with may call it.
func SetSettler(marketID int, settler interop.Hash160) {
	ctx := storage.GetContext()

	registry := storage.Get(ctx, registryKey).(interop.Hash160)
	if !runtime.GetCallingScriptHash().Equals(registry) {
		panic("only registry")
	}

	storage.Put(ctx, append([]byte{settlerPrefix}, marketIDBytes(marketID)...), settler)
}

// OnSettlement receives the final outcome. Only the authorized settler of the
// market id may call it.
func OnSettlement(marketID, outcome int, proofHash interop.Hash256) {
	ctx := storage.GetContext()

	settler := storage.Get(ctx, append([]byte{settlerPrefix}, marketIDBytes(marketID)...))
	if settler == nil || !runtime.GetCallingScriptHash().Equals(settler.(interop.Hash160)) {
		panic("only settler")
	}

	k := append([]byte{settlementPrefix}, marketIDBytes(marketID)...)
	if storage.Get(ctx, k) != nil {
		panic("already settled")
	}

	storage.Put(ctx, k, std.Serialize(Settlement{
		MarketID:  marketID,
		Outcome:   outcome,
		ProofHash: proofHash,
	}))
}

// Settler returns the authorized settler of the market id.
func Settler(marketID int) interop.Hash160 {
	data := storage.Get(storage.GetReadOnlyContext(), append([]byte{settlerPrefix}, marketIDBytes(marketID)...))
	if data == nil {
		return nil
	}
	return data.(interop.Hash160)
}

// IsSettled returns true if the outcome of the market id has been delivered.
func IsSettled(marketID int) bool {
	return storage.Get(storage.GetReadOnlyContext(), append([]byte{settlementPrefix}, marketIDBytes(marketID)...)) != nil
}

// GetSettlement returns the recorded settlement of the market id.
func GetSettlement(marketID int) Settlement {
	data := storage.Get(storage.GetReadOnlyContext(), append([]byte{settlementPrefix}, marketIDBytes(marketID)...))
	if data == nil {
		panic("not settled")
	}
	return std.Deserialize(data.([]byte)).(Settlement)
}

func marketIDBytes(marketID int) []byte {
	var buf any = marketID
	return buf.([]byte)
}
