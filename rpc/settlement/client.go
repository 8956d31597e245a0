// Package settlement contains RPC wrappers for the ChaosOracle Settlement
// contract. Workers and verifiers join studios through the staking helpers
// (NEP-17 GAS transfers carrying the role and studio key in the transfer
// data) and then drive the studio through Contract methods.
package settlement

import (
	"math/big"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/gas"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/nep17"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	nep17.Invoker
}

// Actor is used by Contract to call state-changing methods.
type Actor interface {
	Invoker
	nep17.Actor

	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
}

// ContractReader implements safe contract methods.
type ContractReader struct {
	invoker Invoker
	hash    util.Uint160
}

// Contract implements all contract methods.
type Contract struct {
	ContractReader

	actor Actor
	hash  util.Uint160
	gas   *nep17.Token
}

// NewReader creates an instance of ContractReader using provided contract
// hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{invoker, hash}
}

// New creates an instance of Contract using provided contract hash and the
// given Actor.
func New(actor Actor, hash util.Uint160) *Contract {
	return &Contract{ContractReader{actor, hash}, actor, hash, gas.New(actor)}
}

// FormatStudioKey returns the canonical human-readable form of a studio key,
// the same base58 string agents use when referring to studios off-chain.
func FormatStudioKey(key []byte) string {
	return base58.Encode(key)
}

// ParseStudioKey decodes a studio key from its base58 form.
func ParseStudioKey(s string) ([]byte, error) {
	return base58.Decode(s)
}

// Version invokes `version` method of contract.
func (c *ContractReader) Version() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "version"))
}

// Question invokes `question` method of contract.
func (c *ContractReader) Question(key []byte) (string, error) {
	return unwrap.UTF8String(c.invoker.Call(c.hash, "question", key))
}

// Options invokes `options` method of contract.
func (c *ContractReader) Options(key []byte) ([]string, error) {
	return unwrap.ArrayOfUTF8Strings(c.invoker.Call(c.hash, "options", key))
}

// EpochClosed invokes `epochClosed` method of contract.
func (c *ContractReader) EpochClosed(key []byte) (bool, error) {
	return unwrap.Bool(c.invoker.Call(c.hash, "epochClosed", key))
}

// CanClose invokes `canClose` method of contract.
func (c *ContractReader) CanClose(key []byte) (bool, error) {
	return unwrap.Bool(c.invoker.Call(c.hash, "canClose", key))
}

// WorkerCount invokes `workerCount` method of contract.
func (c *ContractReader) WorkerCount(key []byte) (int64, error) {
	return unwrap.Int64(c.invoker.Call(c.hash, "workerCount", key))
}

// VerifierCount invokes `verifierCount` method of contract.
func (c *ContractReader) VerifierCount(key []byte) (int64, error) {
	return unwrap.Int64(c.invoker.Call(c.hash, "verifierCount", key))
}

// IsWorkerRegistered invokes `isWorkerRegistered` method of contract.
func (c *ContractReader) IsWorkerRegistered(key []byte, acc util.Uint160) (bool, error) {
	return unwrap.Bool(c.invoker.Call(c.hash, "isWorkerRegistered", key, acc))
}

// IsVerifierRegistered invokes `isVerifierRegistered` method of contract.
func (c *ContractReader) IsVerifierRegistered(key []byte, acc util.Uint160) (bool, error) {
	return unwrap.Bool(c.invoker.Call(c.hash, "isVerifierRegistered", key, acc))
}

// ScorerCount invokes `scorerCount` method of contract.
func (c *ContractReader) ScorerCount(key []byte, worker util.Uint160) (int64, error) {
	return unwrap.Int64(c.invoker.Call(c.hash, "scorerCount", key, worker))
}

// EscrowOf invokes `escrowOf` method of contract.
func (c *ContractReader) EscrowOf(key []byte, acc util.Uint160) (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "escrowOf", key, acc))
}

// TotalEscrow invokes `totalEscrow` method of contract.
func (c *ContractReader) TotalEscrow(key []byte) (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "totalEscrow", key))
}

// RegisterAsWorker transfers the worker stake from the given account to the
// contract, registering the account as a worker of the studio. The
// transaction faults if the stake is below the worker floor or the account is
// already registered in the studio.
func (c *Contract) RegisterAsWorker(from util.Uint160, key []byte, stake *big.Int) (util.Uint256, uint32, error) {
	return c.gas.Transfer(from, c.hash, stake, []any{"worker", key})
}

// RegisterAsVerifier transfers the verifier stake from the given account to
// the contract, registering the account as a verifier of the studio.
func (c *Contract) RegisterAsVerifier(from util.Uint160, key []byte, stake *big.Int) (util.Uint256, uint32, error) {
	return c.gas.Transfer(from, c.hash, stake, []any{"verifier", key})
}

// SubmitWork creates a transaction invoking `submitWork` method of the
// contract. This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) SubmitWork(key []byte, worker util.Uint160, outcome int64, evidence string) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "submitWork", key, worker, outcome, evidence)
}

// SubmitScores creates a transaction invoking `submitScores` method of the
// contract. This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) SubmitScores(key []byte, verifier, worker util.Uint160, scores []int64) (util.Uint256, uint32, error) {
	vec := make([]any, len(scores))
	for i := range scores {
		vec[i] = scores[i]
	}
	return c.actor.SendCall(c.hash, "submitScores", key, verifier, worker, vec)
}

// WithdrawStake creates a transaction invoking `withdrawStake` method of the
// contract. This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) WithdrawStake(key []byte, acc util.Uint160) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "withdrawStake", key, acc)
}
