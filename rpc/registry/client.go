// Package registry contains RPC wrappers for the ChaosOracle Registry
// contract. The external settlement trigger polls the registry views through
// ContractReader and drives the two privileged lifecycle transitions through
// Contract.
package registry

import (
	"math/big"

	"github.com/google/uuid"
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
}

// NewReader creates an instance of ContractReader using provided contract
// hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{invoker, hash}
}

// New creates an instance of Contract using provided contract hash and the
// given Actor.
func New(actor Actor, hash util.Uint160) *Contract {
	return &Contract{ContractReader{actor, hash}, actor, hash}
}

// NewRunID generates a fresh trigger run identifier. The identifier is
// configured on the registry at deploy time and must be presented as the
// leading bytes of the authorization proof of every privileged call.
func NewRunID() []byte {
	id := uuid.New()
	return id[:]
}

// Version invokes `version` method of contract.
func (c *ContractReader) Version() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "version"))
}

// Trigger invokes `trigger` method of contract.
func (c *ContractReader) Trigger() (util.Uint160, error) {
	return unwrap.Uint160(c.invoker.Call(c.hash, "trigger"))
}

// SettlementContract invokes `settlementContract` method of contract.
func (c *ContractReader) SettlementContract() (util.Uint160, error) {
	return unwrap.Uint160(c.invoker.Call(c.hash, "settlementContract"))
}

// GetMarketKey invokes `getMarketKey` method of contract.
func (c *ContractReader) GetMarketKey(market util.Uint160, marketID *big.Int) ([]byte, error) {
	return unwrap.Bytes(c.invoker.Call(c.hash, "getMarketKey", market, marketID))
}

// GetMarketsReadyForSettlement invokes `getMarketsReadyForSettlement` method
// of contract.
func (c *ContractReader) GetMarketsReadyForSettlement() ([][]byte, error) {
	return unwrap.ArrayOfBytes(c.invoker.Call(c.hash, "getMarketsReadyForSettlement"))
}

// GetActiveStudios invokes `getActiveStudios` method of contract.
func (c *ContractReader) GetActiveStudios() ([][]byte, error) {
	return unwrap.ArrayOfBytes(c.invoker.Call(c.hash, "getActiveStudios"))
}

// CanCloseStudio invokes `canCloseStudio` method of contract.
func (c *ContractReader) CanCloseStudio(key []byte) (bool, error) {
	return unwrap.Bool(c.invoker.Call(c.hash, "canCloseStudio", key))
}

// CreateStudioForMarket creates a transaction invoking
// `createStudioForMarket` method of the contract. This transaction is signed
// and immediately sent to the network. The values returned are its hash,
// ValidUntilBlock value and error if any.
func (c *Contract) CreateStudioForMarket(key, proof []byte) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "createStudioForMarket", key, proof)
}

// CloseStudioEpoch creates a transaction invoking `closeStudioEpoch` method
// of the contract. This transaction is signed and immediately sent to the
// network. The values returned are its hash, ValidUntilBlock value and error
// if any.
func (c *Contract) CloseStudioEpoch(key, proof []byte) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "closeStudioEpoch", key, proof)
}
