package registry

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/iterator"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/gas"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
	"github.com/chaos-oracle/oracle-contract/common"
)

type (
	// PendingMarket is a market registered for settlement and waiting for
	// its deadline to pass. Immutable after registration; tombstoned by
	// the existence of a Studio record under the same key.
	PendingMarket struct {
		// Market is the market contract that requested settlement.
		Market interop.Hash160
		// MarketID is the market's own id of the question.
		MarketID int
		// Question is the text of the question.
		Question string
		// Options are the outcome labels, at least two.
		Options []string
		// Deadline is the market deadline, ms since epoch.
		Deadline int
		// Reward is the settlement reward escrowed on registration, Fixed8.
		Reward int
	}

	// Studio is a settlement instance created for a pending market.
	// Records are append-only; settled studios are only flagged, never
	// deleted.
	Studio struct {
		// Key is the settlement key of the market.
		Key interop.Hash256
		// ID is the studio sequence number.
		ID int
		// Market is the market contract to be settled.
		Market interop.Hash160
		// MarketID is the market's own id of the question.
		MarketID int
		// Settled reports whether the settlement outcome has been
		// delivered back to the market.
		Settled bool
	}
)

const (
	triggerKey            = 't'
	runIDKey              = 'r'
	settlementContractKey = 'l'
	studioCounterKey      = 'c'

	pendingPrefix = 'p'
	studioPrefix  = 's'
)

const (
	errUnknownMarket  = "unknown market"
	errUnknownStudio  = "unknown studio"
	errAlreadySettled = "studio already settled"
	errOnlySettlement = "only settlement contract"
)

// nolint:deadcode,unused
func _deploy(data any, isUpdate bool) {
	ctx := storage.GetContext()
	if isUpdate {
		args := data.([]any)
		common.CheckVersion(args[len(args)-1].(int))
		return
	}

	args := data.([]any)
	addrSettlement := args[0].(interop.Hash160)
	if len(addrSettlement) != interop.Hash160Len {
		panic("incorrect length of settlement contract script hash")
	}

	trigger := args[1].(interop.Hash160)
	if len(trigger) != interop.Hash160Len {
		panic("incorrect length of trigger account script hash")
	}

	storage.Put(ctx, settlementContractKey, addrSettlement)
	storage.Put(ctx, triggerKey, trigger)

	// An empty run id leaves the trigger unrestricted. This is a
	// bootstrap escape hatch, not the intended production setup.
	runID := args[2].([]byte)
	if len(runID) > 0 {
		storage.Put(ctx, runIDKey, runID)
	}

	runtime.Log("registry contract initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by committee.
func Update(nefFile, manifest []byte, data any) {
	if !common.HasUpdateAccess() {
		panic("only committee can update contract")
	}

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, nefFile, manifest, common.AppendVersion(data))
	runtime.Log("registry contract updated")
}

// OnNEP17Payment is a callback for NEP-17 compatible native GAS contract.
// This is the registration entry point for market contracts: the transferred
// GAS is the settlement reward and data carries the registration arguments as
// [marketID int, question string, options []string, deadline int]. The sender
// of the transfer is recorded as the market contract.
func OnNEP17Payment(from interop.Hash160, amount int, data any) {
	caller := runtime.GetCallingScriptHash()
	if !caller.Equals(gas.Hash) {
		common.AbortWithMessage("registry contract accepts GAS only")
	}
	if data == nil {
		common.AbortWithMessage("missing registration arguments")
	}
	if amount <= 0 {
		panic("reward must be positive")
	}

	args := data.([]any)
	marketID := args[0].(int)
	question := args[1].(string)
	options := args[2].([]string)
	deadline := args[3].(int)

	if len(question) == 0 {
		panic("empty question")
	}
	if len(options) < 2 {
		panic("at least two options required")
	}
	if deadline <= runtime.GetTime() {
		panic("deadline must be in the future")
	}

	ctx := storage.GetContext()
	key := common.StudioKey(from, marketID)
	if storage.Get(ctx, prefixed(pendingPrefix, key)) != nil {
		panic("market already registered")
	}
	if storage.Get(ctx, prefixed(studioPrefix, key)) != nil {
		panic("studio already created")
	}

	common.SetSerialized(ctx, prefixed(pendingPrefix, key), PendingMarket{
		Market:   from,
		MarketID: marketID,
		Question: question,
		Options:  options,
		Deadline: deadline,
		Reward:   amount,
	})

	runtime.Log("market registered for settlement")
	runtime.Notify("MarketRegistered", key, from, marketID, deadline, amount)
}

// CreateStudioForMarket instantiates a settlement studio for a registered
// market whose deadline has passed. It can be invoked only by the designated
// trigger account presenting a valid authorization proof. The studio is
// initialized on the settlement contract, funded with the market's reward and
// registered as the authorized settler on the market contract.
func CreateStudioForMarket(key interop.Hash256, proof []byte) {
	ctx := storage.GetContext()
	checkTrigger(ctx, proof)

	data := storage.Get(ctx, prefixed(pendingPrefix, key))
	if data == nil {
		panic(errUnknownMarket)
	}
	pending := std.Deserialize(data.([]byte)).(PendingMarket)

	if runtime.GetTime() < pending.Deadline {
		panic("deadline not reached")
	}
	if storage.Get(ctx, prefixed(studioPrefix, key)) != nil {
		panic("studio already created")
	}

	addrSettlement := storage.Get(ctx, settlementContractKey).(interop.Hash160)

	id := common.GetInt(ctx, studioCounterKey) + 1
	storage.Put(ctx, studioCounterKey, id)

	contract.Call(addrSettlement, "newStudio", contract.All,
		pending.Market, pending.MarketID, pending.Question, pending.Options)

	if !gas.Transfer(runtime.GetExecutingScriptHash(), addrSettlement, pending.Reward, []any{"reward", key}) {
		panic("transfer failed")
	}

	contract.Call(pending.Market, "setSettler", contract.All, pending.MarketID, addrSettlement)

	common.SetSerialized(ctx, prefixed(studioPrefix, key), Studio{
		Key:      key,
		ID:       id,
		Market:   pending.Market,
		MarketID: pending.MarketID,
	})

	runtime.Log("studio created")
	runtime.Notify("StudioCreated", key, id, pending.Market, pending.MarketID)
}

// CloseStudioEpoch closes the settlement epoch of an active studio. It can be
// invoked only by the designated trigger account presenting a valid
// authorization proof. A failure inside the settlement contract (e.g. the
// closing threshold is not met yet) faults the whole transaction.
func CloseStudioEpoch(key interop.Hash256, proof []byte) {
	ctx := storage.GetContext()
	checkTrigger(ctx, proof)

	studio := getStudio(ctx, key)
	if studio.Settled {
		panic(errAlreadySettled)
	}

	addrSettlement := storage.Get(ctx, settlementContractKey).(interop.Hash160)
	contract.Call(addrSettlement, "closeEpoch", contract.All, key)
}

// OnScoresSubmitted re-emits scoring progress of a single studio as an
// aggregated event, so external observers need to watch only the registry
// address. It can be invoked only by the settlement contract for a studio
// this registry created.
func OnScoresSubmitted(key interop.Hash256, workersSubmitted, totalScores int) {
	ctx := storage.GetContext()
	checkSettlementCaller(ctx)
	getStudio(ctx, key)

	runtime.Notify("ScoresSubmitted", key, workersSubmitted, totalScores)
}

// OnStudioSettled marks the studio settled and emits the final settlement
// event. It can be invoked only by the settlement contract, once per studio.
func OnStudioSettled(key interop.Hash256, outcome int, proofHash interop.Hash256) {
	ctx := storage.GetContext()
	checkSettlementCaller(ctx)

	studio := getStudio(ctx, key)
	if studio.Settled {
		panic(errAlreadySettled)
	}

	studio.Settled = true
	common.SetSerialized(ctx, prefixed(studioPrefix, key), studio)

	runtime.Log("studio settled")
	runtime.Notify("StudioSettled", key, outcome, proofHash)
}

// GetMarketKey derives the settlement key of the (market, marketID) pair.
func GetMarketKey(market interop.Hash160, marketID int) interop.Hash256 {
	return common.StudioKey(market, marketID)
}

// GetPendingMarket returns the pending market registered under the given key.
func GetPendingMarket(key interop.Hash256) PendingMarket {
	data := storage.Get(storage.GetReadOnlyContext(), prefixed(pendingPrefix, key))
	if data == nil {
		panic(errUnknownMarket)
	}

	return std.Deserialize(data.([]byte)).(PendingMarket)
}

// GetStudio returns the studio record created under the given key.
func GetStudio(key interop.Hash256) Studio {
	return getStudio(storage.GetReadOnlyContext(), key)
}

// GetMarketsReadyForSettlement returns keys of every registered market whose
// deadline has passed and for which no studio exists yet. The result does not
// depend on registration order of other markets.
func GetMarketsReadyForSettlement() []interop.Hash256 {
	ctx := storage.GetReadOnlyContext()
	now := runtime.GetTime()

	ready := []interop.Hash256{}
	it := storage.Find(ctx, []byte{pendingPrefix}, storage.None)
	for iterator.Next(it) {
		pair := iterator.Value(it).([]any)

		pending := std.Deserialize(pair[1].([]byte)).(PendingMarket)
		if now < pending.Deadline {
			continue
		}

		key := pair[0].([]byte)[1:]
		if storage.Get(ctx, prefixed(studioPrefix, key)) != nil {
			continue
		}

		ready = append(ready, key)
	}

	return ready
}

// GetActiveStudios returns keys of every created studio that has not settled
// yet.
func GetActiveStudios() []interop.Hash256 {
	ctx := storage.GetReadOnlyContext()

	active := []interop.Hash256{}
	it := storage.Find(ctx, []byte{studioPrefix}, storage.ValuesOnly|storage.DeserializeValues)
	for iterator.Next(it) {
		studio := iterator.Value(it).(Studio)
		if studio.Settled {
			continue
		}

		active = append(active, studio.Key)
	}

	return active
}

// CanCloseStudio is a pass-through to the settlement contract's canClose for
// the given studio. Settled studios report false.
func CanCloseStudio(key interop.Hash256) bool {
	ctx := storage.GetReadOnlyContext()

	studio := getStudio(ctx, key)
	if studio.Settled {
		return false
	}

	addrSettlement := storage.Get(ctx, settlementContractKey).(interop.Hash160)

	return contract.Call(addrSettlement, "canClose", contract.ReadOnly, key).(bool)
}

// Trigger returns the designated trigger account.
func Trigger() interop.Hash160 {
	return storage.Get(storage.GetReadOnlyContext(), triggerKey).(interop.Hash160)
}

// SettlementContract returns the address of the settlement contract serving
// the studios of this registry.
func SettlementContract() interop.Hash160 {
	return storage.Get(storage.GetReadOnlyContext(), settlementContractKey).(interop.Hash160)
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}

// checkTrigger authenticates the external settlement trigger: the trigger
// account must witness the transaction and, when a run id has been configured
// at deploy time, the authorization proof must start with those exact bytes.
func checkTrigger(ctx storage.Context, proof []byte) {
	trigger := storage.Get(ctx, triggerKey).(interop.Hash160)
	common.CheckTriggerWitness(trigger)

	data := storage.Get(ctx, runIDKey)
	if data == nil {
		return
	}

	runID := data.([]byte)
	if len(proof) < len(runID) || string(proof[:len(runID)]) != string(runID) {
		panic("authorization proof mismatch")
	}
}

func checkSettlementCaller(ctx storage.Context) {
	addrSettlement := storage.Get(ctx, settlementContractKey).(interop.Hash160)
	if !runtime.GetCallingScriptHash().Equals(addrSettlement) {
		panic(errOnlySettlement)
	}
}

func getStudio(ctx storage.Context, key interop.Hash256) Studio {
	data := storage.Get(ctx, prefixed(studioPrefix, key))
	if data == nil {
		panic(errUnknownStudio)
	}

	return std.Deserialize(data.([]byte)).(Studio)
}

func prefixed(prefix byte, key interop.Hash256) []byte {
	return append([]byte{prefix}, key...)
}
