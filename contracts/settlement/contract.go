package settlement

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/crypto"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/gas"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
	"github.com/chaos-oracle/oracle-contract/common"
	"github.com/chaos-oracle/oracle-contract/contracts/settlement/settlementconst"
)

type (
	// Studio is the per-market settlement state bound by NewStudio. One
	// Settlement contract hosts many studios; every studio's records live
	// under storage keys prefixed with its 32-byte settlement key, so the
	// shared logic below always takes the key explicitly.
	Studio struct {
		// Hub is the registry contract that created the studio.
		Hub interop.Hash160
		// Market is the market contract to be settled.
		Market interop.Hash160
		// MarketID is the market's own id of the settled question.
		MarketID int
		// Question is the text of the settled question.
		Question string
		// Options are the outcome labels, at least two.
		Options []string
		// Reward is the settlement reward transferred by the hub, Fixed8.
		Reward int
		// Closed reports whether the settlement epoch has been closed.
		Closed bool
	}

	// Submission is a single worker's research result. Write-once.
	Submission struct {
		// Outcome is the index of the chosen option.
		Outcome int
		// Evidence is an opaque content reference (e.g. an Arweave or
		// IPFS CID), not validated on-chain.
		Evidence string
		// Timestamp is the block time of the submission, ms.
		Timestamp int
	}
)

const (
	registryContractKey = 'h'

	studioPrefix       = 'i'
	workerFlagPrefix   = 'w'
	verifierFlagPrefix = 'v'
	workerListPrefix   = 'W'
	verifierListPrefix = 'V'
	escrowPrefix       = 'e'
	escrowTotalPrefix  = 'E'
	submissionPrefix   = 's'
	scorePrefix        = 'c'
	scorerCountPrefix  = 'n'
	submittedPrefix    = 'm'
	scoreTotalPrefix   = 'g'

	roleWorker   = "worker"
	roleVerifier = "verifier"
	roleReward   = "reward"
)

const (
	errOnlyHub       = "only hub"
	errUnknownStudio = "unknown studio"
	errEpochClosed   = "epoch already closed"
	errEpochOpen     = "epoch not closed"
	errThreshold     = "threshold not met"
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
	addrRegistry := args[0].(interop.Hash160)
	if len(addrRegistry) != interop.Hash160Len {
		panic("incorrect length of registry contract script hash")
	}
	storage.Put(ctx, registryContractKey, addrRegistry)

	runtime.Log("settlement contract initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by committee.
func Update(nefFile, manifest []byte, data any) {
	if !common.HasUpdateAccess() {
		panic("only committee can update contract")
	}

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, nefFile, manifest, common.AppendVersion(data))
	runtime.Log("settlement contract updated")
}

// NewStudio binds a fresh settlement studio to the given market. It can be
// invoked only by the registry contract and only once per (market, marketID)
// pair: the studio key derived from the pair is the storage namespace of all
// further studio records. Returns the studio key.
func NewStudio(market interop.Hash160, marketID int, question string, options []string) interop.Hash256 {
	ctx := storage.GetContext()

	caller := runtime.GetCallingScriptHash()
	hub := storage.Get(ctx, registryContractKey).(interop.Hash160)
	if !caller.Equals(hub) {
		panic(errOnlyHub)
	}

	if len(market) != interop.Hash160Len {
		panic("incorrect length of market contract script hash")
	}
	if len(question) == 0 {
		panic("empty question")
	}
	if len(options) < 2 {
		panic("at least two options required")
	}

	key := common.StudioKey(market, marketID)
	if storage.Get(ctx, prefixed(studioPrefix, key)) != nil {
		panic("already initialized")
	}

	common.SetSerialized(ctx, prefixed(studioPrefix, key), Studio{
		Hub:      hub,
		Market:   market,
		MarketID: marketID,
		Question: question,
		Options:  options,
	})

	runtime.Log("studio initialized")

	return key
}

// OnNEP17Payment is a callback for NEP-17 compatible native GAS contract.
// All value entering a studio comes through here: the hub funds the studio
// reward with data of ["reward", key], workers and verifiers stake with
// ["worker", key] and ["verifier", key] respectively. Any precondition
// failure faults the transaction and returns the transfer to the sender.
func OnNEP17Payment(from interop.Hash160, amount int, data any) {
	caller := runtime.GetCallingScriptHash()
	if !caller.Equals(gas.Hash) {
		common.AbortWithMessage("settlement contract accepts GAS only")
	}
	if data == nil {
		common.AbortWithMessage("missing payment purpose")
	}
	if amount <= 0 {
		panic("amount must be positive")
	}

	args := data.([]any)
	role := args[0].(string)
	key := args[1].(interop.Hash256)

	ctx := storage.GetContext()
	info := getStudio(ctx, key)

	switch role {
	case roleReward:
		if !from.Equals(info.Hub) {
			panic(errOnlyHub)
		}
		info.Reward += amount
		common.SetSerialized(ctx, prefixed(studioPrefix, key), info)
	case roleWorker:
		registerWorker(ctx, key, info, from, amount)
	case roleVerifier:
		registerVerifier(ctx, key, info, from, amount)
	default:
		panic("unknown payment purpose")
	}
}

func registerWorker(ctx storage.Context, key interop.Hash256, info Studio, acc interop.Hash160, stake int) {
	if info.Closed {
		panic(errEpochClosed)
	}
	if isRegistered(ctx, workerFlagPrefix, key, acc) {
		panic("already registered")
	}
	if isRegistered(ctx, verifierFlagPrefix, key, acc) {
		panic("verifiers cannot work")
	}
	if stake < settlementconst.WorkerStake {
		panic("insufficient stake")
	}

	addToList(ctx, workerListPrefix, key, acc)
	storage.Put(ctx, accKey(workerFlagPrefix, key, acc), []byte{1})
	creditEscrow(ctx, key, acc, stake)

	runtime.Notify("WorkerRegistered", key, acc, stake)
}

func registerVerifier(ctx storage.Context, key interop.Hash256, info Studio, acc interop.Hash160, stake int) {
	if info.Closed {
		panic(errEpochClosed)
	}
	if isRegistered(ctx, verifierFlagPrefix, key, acc) {
		panic("already registered")
	}
	if isRegistered(ctx, workerFlagPrefix, key, acc) {
		panic("workers cannot verify")
	}
	if stake < settlementconst.VerifierStake {
		panic("insufficient stake")
	}

	addToList(ctx, verifierListPrefix, key, acc)
	storage.Put(ctx, accKey(verifierFlagPrefix, key, acc), []byte{1})
	creditEscrow(ctx, key, acc, stake)

	runtime.Notify("VerifierRegistered", key, acc, stake)
}

// SubmitWork stores the worker's chosen outcome together with the reference
// to off-chain evidence. It can be invoked only by the worker itself and only
// once: resubmission is not allowed even before the epoch closes.
func SubmitWork(key interop.Hash256, worker interop.Hash160, outcome int, evidence string) {
	ctx := storage.GetContext()
	info := getStudio(ctx, key)

	common.CheckOwnerWitness(worker)

	if info.Closed {
		panic(errEpochClosed)
	}
	if !isRegistered(ctx, workerFlagPrefix, key, worker) {
		panic("not a registered worker")
	}
	if storage.Get(ctx, accKey(submissionPrefix, key, worker)) != nil {
		panic("work already submitted")
	}
	if outcome < 0 || outcome >= len(info.Options) {
		panic("outcome index out of range")
	}
	if len(evidence) == 0 {
		panic("empty evidence reference")
	}

	common.SetSerialized(ctx, accKey(submissionPrefix, key, worker), Submission{
		Outcome:   outcome,
		Evidence:  evidence,
		Timestamp: runtime.GetTime(),
	})

	cntKey := prefixed(submittedPrefix, key)
	storage.Put(ctx, cntKey, common.GetInt(ctx, cntKey)+1)

	runtime.Notify("WorkSubmitted", key, worker, outcome, evidence)
}

// SubmitScores stores the verifier's audit scores for a single worker
// submission: four dimensions (accuracy, evidence quality, source diversity,
// reasoning depth), each within [0, 100]. Write-once per (verifier, worker)
// pair. Reports updated progress totals to the hub.
func SubmitScores(key interop.Hash256, verifier, worker interop.Hash160, scores []int) {
	ctx := storage.GetContext()
	info := getStudio(ctx, key)

	common.CheckOwnerWitness(verifier)

	if info.Closed {
		panic(errEpochClosed)
	}
	if !isRegistered(ctx, verifierFlagPrefix, key, verifier) {
		panic("not a registered verifier")
	}
	if storage.Get(ctx, accKey(submissionPrefix, key, worker)) == nil {
		panic("no submission")
	}
	if len(scores) != settlementconst.ScoreDimensions {
		panic("invalid score vector")
	}
	for i := 0; i < len(scores); i++ {
		if scores[i] < 0 || scores[i] > settlementconst.MaxScore {
			panic("score out of range")
		}
	}
	if storage.Get(ctx, scoreKey(key, worker, verifier)) != nil {
		panic("worker already scored")
	}

	common.SetSerialized(ctx, scoreKey(key, worker, verifier), scores)

	cntKey := accKey(scorerCountPrefix, key, worker)
	storage.Put(ctx, cntKey, common.GetInt(ctx, cntKey)+1)

	totalKey := prefixed(scoreTotalPrefix, key)
	total := common.GetInt(ctx, totalKey) + 1
	storage.Put(ctx, totalKey, total)

	submitted := common.GetInt(ctx, prefixed(submittedPrefix, key))
	contract.Call(info.Hub, "onScoresSubmitted", contract.All, key, submitted, total)
}

// CanClose returns true if the studio meets every closing threshold: enough
// workers and verifiers registered, and at least the minimum number of
// workers both submitted work and collected the minimum number of distinct
// verifier scores. It is a pure function of the studio's counters and agrees
// exactly with whether CloseEpoch succeeds.
func CanClose(key interop.Hash256) bool {
	ctx := storage.GetReadOnlyContext()
	info := getStudio(ctx, key)
	if info.Closed {
		return false
	}

	return thresholdMet(ctx, key)
}

// CloseEpoch closes the settlement epoch of the studio: computes the
// score-weighted consensus outcome, reports it to the market contract and
// the hub. It can be invoked only by the hub. The closed flag is committed
// to storage before any external call is made, so a hostile market adapter
// cannot re-enter and force a second consensus computation.
func CloseEpoch(key interop.Hash256) {
	ctx := storage.GetContext()
	info := getStudio(ctx, key)

	caller := runtime.GetCallingScriptHash()
	if !caller.Equals(info.Hub) {
		panic(errOnlyHub)
	}
	if info.Closed {
		panic(errEpochClosed)
	}
	if !thresholdMet(ctx, key) {
		panic(errThreshold)
	}

	info.Closed = true
	common.SetSerialized(ctx, prefixed(studioPrefix, key), info)

	outcome, proofHash := consensus(ctx, key, info)

	contract.Call(info.Market, "onSettlement", contract.All, info.MarketID, outcome, proofHash)
	contract.Call(info.Hub, "onStudioSettled", contract.All, key, outcome, proofHash)

	runtime.Notify("EpochClosed", key, outcome, proofHash)
	runtime.Log("studio epoch closed")
}

// WithdrawStake returns the participant's staked GAS after the epoch has been
// closed. Reward distribution and slashing are intentionally not part of the
// settlement epoch; stakes are returned in full.
// TODO: route the studio reward through the scoring results once the payout
// formula is settled, see Studio.Reward.
func WithdrawStake(key interop.Hash256, acc interop.Hash160) {
	ctx := storage.GetContext()
	info := getStudio(ctx, key)

	common.CheckOwnerWitness(acc)

	if !info.Closed {
		panic(errEpochOpen)
	}

	amount := common.GetInt(ctx, accKey(escrowPrefix, key, acc))
	if amount == 0 {
		panic("nothing to withdraw")
	}

	debitEscrow(ctx, key, acc, amount)

	if !gas.Transfer(runtime.GetExecutingScriptHash(), acc, amount, nil) {
		panic("transfer failed")
	}

	runtime.Notify("StakeWithdrawn", key, acc, amount)
}

// GetStudio returns the studio bound to the given settlement key.
func GetStudio(key interop.Hash256) Studio {
	return getStudio(storage.GetReadOnlyContext(), key)
}

// Question returns the question text of the studio.
func Question(key interop.Hash256) string {
	return getStudio(storage.GetReadOnlyContext(), key).Question
}

// Options returns the ordered outcome option labels of the studio.
func Options(key interop.Hash256) []string {
	return getStudio(storage.GetReadOnlyContext(), key).Options
}

// EpochClosed returns true if the studio's settlement epoch has been closed.
func EpochClosed(key interop.Hash256) bool {
	return getStudio(storage.GetReadOnlyContext(), key).Closed
}

// Workers returns registered worker accounts in registration order.
func Workers(key interop.Hash256) [][]byte {
	return common.GetList(storage.GetReadOnlyContext(), prefixed(workerListPrefix, key))
}

// Verifiers returns registered verifier accounts in registration order.
func Verifiers(key interop.Hash256) [][]byte {
	return common.GetList(storage.GetReadOnlyContext(), prefixed(verifierListPrefix, key))
}

// WorkerCount returns the number of registered workers.
func WorkerCount(key interop.Hash256) int {
	return len(Workers(key))
}

// VerifierCount returns the number of registered verifiers.
func VerifierCount(key interop.Hash256) int {
	return len(Verifiers(key))
}

// IsWorkerRegistered returns true if the account is a registered worker of
// the studio.
func IsWorkerRegistered(key interop.Hash256, acc interop.Hash160) bool {
	return isRegistered(storage.GetReadOnlyContext(), workerFlagPrefix, key, acc)
}

// IsVerifierRegistered returns true if the account is a registered verifier
// of the studio.
func IsVerifierRegistered(key interop.Hash256, acc interop.Hash160) bool {
	return isRegistered(storage.GetReadOnlyContext(), verifierFlagPrefix, key, acc)
}

// GetSubmission returns the worker's submission.
func GetSubmission(key interop.Hash256, worker interop.Hash160) Submission {
	ctx := storage.GetReadOnlyContext()
	data := storage.Get(ctx, accKey(submissionPrefix, key, worker))
	if data == nil {
		panic("no submission")
	}

	return std.Deserialize(data.([]byte)).(Submission)
}

// GetScores returns the verifier's score vector for the worker, or an empty
// list if the verifier has not scored this worker.
func GetScores(key interop.Hash256, verifier, worker interop.Hash160) []int {
	ctx := storage.GetReadOnlyContext()
	data := storage.Get(ctx, scoreKey(key, worker, verifier))
	if data == nil {
		return []int{}
	}

	return std.Deserialize(data.([]byte)).([]int)
}

// ScorerCount returns the number of distinct verifiers that scored the
// worker's submission.
func ScorerCount(key interop.Hash256, worker interop.Hash160) int {
	return common.GetInt(storage.GetReadOnlyContext(), accKey(scorerCountPrefix, key, worker))
}

// EscrowOf returns the staked balance of the participant.
func EscrowOf(key interop.Hash256, acc interop.Hash160) int {
	return common.GetInt(storage.GetReadOnlyContext(), accKey(escrowPrefix, key, acc))
}

// TotalEscrow returns the sum of all staked balances of the studio. It always
// equals the sum over EscrowOf of every registered participant.
func TotalEscrow(key interop.Hash256) int {
	return common.GetInt(storage.GetReadOnlyContext(), prefixed(escrowTotalPrefix, key))
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}

// thresholdMet evaluates the closing predicate over the studio's counters.
func thresholdMet(ctx storage.Context, key interop.Hash256) bool {
	workers := common.GetList(ctx, prefixed(workerListPrefix, key))
	if len(workers) < settlementconst.MinWorkers {
		return false
	}

	verifiers := common.GetList(ctx, prefixed(verifierListPrefix, key))
	if len(verifiers) < settlementconst.MinVerifiers {
		return false
	}

	qualifying := 0
	for i := 0; i < len(workers); i++ {
		if isQualifying(ctx, key, workers[i]) {
			qualifying++
		}
	}

	return qualifying >= settlementconst.MinWorkers
}

// isQualifying reports whether the worker both submitted work and collected
// at least the minimum number of distinct verifier scores.
func isQualifying(ctx storage.Context, key interop.Hash256, worker interop.Hash160) bool {
	if storage.Get(ctx, accKey(submissionPrefix, key, worker)) == nil {
		return false
	}

	return common.GetInt(ctx, accKey(scorerCountPrefix, key, worker)) >= settlementconst.MinScoresPerWorker
}

// consensus computes the winning outcome and the settlement proof. For every
// qualifying worker the average of all its scores (sum of all four dimensions
// over every scoring verifier, divided by the number of scoring verifiers,
// truncating) is added to the weight of the outcome the worker chose. The
// winner is the index with the strictly greatest weight, so ties and the
// all-zero case resolve to index 0. The proof is the SHA-256 hash of the
// qualifying workers' evidence references concatenated in registration order.
func consensus(ctx storage.Context, key interop.Hash256, info Studio) (int, interop.Hash256) {
	weights := make([]int, len(info.Options))
	evidence := ""

	workers := common.GetList(ctx, prefixed(workerListPrefix, key))
	verifiers := common.GetList(ctx, prefixed(verifierListPrefix, key))

	for i := 0; i < len(workers); i++ {
		worker := workers[i]
		if !isQualifying(ctx, key, worker) {
			continue
		}

		sub := std.Deserialize(storage.Get(ctx, accKey(submissionPrefix, key, worker)).([]byte)).(Submission)

		sum := 0
		cnt := 0
		for j := 0; j < len(verifiers); j++ {
			data := storage.Get(ctx, scoreKey(key, worker, verifiers[j]))
			if data == nil {
				continue
			}

			scores := std.Deserialize(data.([]byte)).([]int)
			for d := 0; d < len(scores); d++ {
				sum += scores[d]
			}
			cnt++
		}

		weights[sub.Outcome] += sum / cnt
		evidence += sub.Evidence
	}

	winning := 0
	best := weights[0]
	for i := 1; i < len(weights); i++ {
		if weights[i] > best {
			winning = i
			best = weights[i]
		}
	}

	return winning, crypto.Sha256([]byte(evidence))
}

// creditEscrow is one of the two operations allowed to mutate escrow
// balances. It keeps the running total equal to the sum of all entries.
func creditEscrow(ctx storage.Context, key interop.Hash256, acc interop.Hash160, amount int) {
	balKey := accKey(escrowPrefix, key, acc)
	storage.Put(ctx, balKey, common.GetInt(ctx, balKey)+amount)

	totalKey := prefixed(escrowTotalPrefix, key)
	storage.Put(ctx, totalKey, common.GetInt(ctx, totalKey)+amount)
}

// debitEscrow is the counterpart of creditEscrow.
func debitEscrow(ctx storage.Context, key interop.Hash256, acc interop.Hash160, amount int) {
	balKey := accKey(escrowPrefix, key, acc)
	balance := common.GetInt(ctx, balKey)
	if balance < amount {
		panic("insufficient escrow")
	}

	if balance == amount {
		storage.Delete(ctx, balKey)
	} else {
		storage.Put(ctx, balKey, balance-amount)
	}

	totalKey := prefixed(escrowTotalPrefix, key)
	storage.Put(ctx, totalKey, common.GetInt(ctx, totalKey)-amount)
}

func getStudio(ctx storage.Context, key interop.Hash256) Studio {
	if len(key) != settlementconst.StudioKeyLen {
		panic("invalid studio key")
	}

	data := storage.Get(ctx, prefixed(studioPrefix, key))
	if data == nil {
		panic(errUnknownStudio)
	}

	return std.Deserialize(data.([]byte)).(Studio)
}

func isRegistered(ctx storage.Context, prefix byte, key interop.Hash256, acc interop.Hash160) bool {
	return storage.Get(ctx, accKey(prefix, key, acc)) != nil
}

func addToList(ctx storage.Context, prefix byte, key interop.Hash256, acc interop.Hash160) {
	lst := common.GetList(ctx, prefixed(prefix, key))
	lst = append(lst, acc)
	common.SetSerialized(ctx, prefixed(prefix, key), lst)
}

func prefixed(prefix byte, key interop.Hash256) []byte {
	return append([]byte{prefix}, key...)
}

func accKey(prefix byte, key interop.Hash256, acc interop.Hash160) []byte {
	k := append([]byte{prefix}, key...)
	return append(k, acc...)
}

func scoreKey(key interop.Hash256, worker, verifier interop.Hash160) []byte {
	k := append([]byte{scorePrefix}, key...)
	k = append(k, worker...)
	return append(k, verifier...)
}
