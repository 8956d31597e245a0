package tests

import (
	"math/rand"
	"path"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/neo-go/pkg/core/native/nativenames"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/neotest/chain"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"

	"github.com/chaos-oracle/oracle-contract/contracts/settlement/settlementconst"
	rpcregistry "github.com/chaos-oracle/oracle-contract/rpc/registry"
)

const (
	registryPath   = "../contracts/registry"
	settlementPath = "../contracts/settlement"
	marketPath     = "../internal/testcontracts/market"
	hostilePath    = "../internal/testcontracts/hostilemarket"
)

const (
	defaultMarketID = 42
	defaultReward   = 2_0000_0000

	defaultQuestion = "Will the launch happen this quarter?"
)

func defaultOptions() []any {
	return []any{"yes", "no"}
}

// oracleNetwork is a deployed registry+settlement pair with a mock market
// contract, driven by a dedicated trigger account.
type oracleNetwork struct {
	e *neotest.Executor

	trigger neotest.Signer
	runID   []byte

	registryHash   util.Uint160
	settlementHash util.Uint160
	marketHash     util.Uint160
	hostileHash    util.Uint160
	gasHash        util.Uint160
}

func newOracleNetwork(t *testing.T) *oracleNetwork {
	return newOracleNetworkWithRunID(t, rpcregistry.NewRunID())
}

// newOracleNetworkWithRunID deploys the three contracts cross-wired through
// pre-computed hashes: the settlement contract learns the registry hash before
// the registry itself is deployed.
func newOracleNetworkWithRunID(t *testing.T, runID []byte) *oracleNetwork {
	bc, acc := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, acc, acc)

	trigger := e.NewAccount(t)

	ctrRegistry := neotest.CompileFile(t, e.CommitteeHash, registryPath,
		path.Join(registryPath, "config.yml"))
	ctrSettlement := neotest.CompileFile(t, e.CommitteeHash, settlementPath,
		path.Join(settlementPath, "config.yml"))
	ctrMarket := neotest.CompileFile(t, e.CommitteeHash, marketPath,
		path.Join(marketPath, "config.yml"))
	ctrHostile := neotest.CompileFile(t, e.CommitteeHash, hostilePath,
		path.Join(hostilePath, "config.yml"))

	e.DeployContract(t, ctrSettlement, []any{ctrRegistry.Hash})
	e.DeployContract(t, ctrRegistry, []any{ctrSettlement.Hash, trigger.ScriptHash(), runID})
	e.DeployContract(t, ctrMarket, nil)
	e.DeployContract(t, ctrHostile, nil)

	return &oracleNetwork{
		e:              e,
		trigger:        trigger,
		runID:          runID,
		registryHash:   ctrRegistry.Hash,
		settlementHash: ctrSettlement.Hash,
		marketHash:     ctrMarket.Hash,
		hostileHash:    ctrHostile.Hash,
		gasHash:        e.NativeHash(t, nativenames.Gas),
	}
}

func (n *oracleNetwork) registry(signers ...neotest.Signer) *neotest.ContractInvoker {
	if len(signers) == 0 {
		return n.e.CommitteeInvoker(n.registryHash)
	}
	return n.e.NewInvoker(n.registryHash, signers...)
}

func (n *oracleNetwork) settlement(signers ...neotest.Signer) *neotest.ContractInvoker {
	if len(signers) == 0 {
		return n.e.CommitteeInvoker(n.settlementHash)
	}
	return n.e.NewInvoker(n.settlementHash, signers...)
}

func (n *oracleNetwork) market() *neotest.ContractInvoker {
	return n.e.CommitteeInvoker(n.marketHash)
}

func (n *oracleNetwork) gas(signer neotest.Signer) *neotest.ContractInvoker {
	return n.e.NewInvoker(n.gasHash, signer)
}

// chainNow returns the timestamp of the last persisted block, ms.
func (n *oracleNetwork) chainNow(t *testing.T) int64 {
	return int64(n.e.TopBlock(t).Timestamp)
}

// waitUntil adds empty blocks until chain time reaches the deadline.
func (n *oracleNetwork) waitUntil(t *testing.T, deadline int64) {
	for n.chainNow(t) < deadline {
		n.e.AddNewBlock(t)
	}
}

func (n *oracleNetwork) gasBalance(t *testing.T, acc util.Uint160) int64 {
	s, err := n.e.CommitteeInvoker(n.gasHash).TestInvoke(t, "balanceOf", acc)
	require.NoError(t, err)
	return s.Top().BigInt().Int64()
}

func (n *oracleNetwork) fundContract(t *testing.T, to util.Uint160, amount int64) {
	n.e.CommitteeInvoker(n.gasHash).Invoke(t, true, "transfer",
		n.e.CommitteeHash, to, amount, nil)
}

func (n *oracleNetwork) fundMarket(t *testing.T, amount int64) {
	n.fundContract(t, n.marketHash, amount)
}

// registerMarket funds the mock market with the reward and registers it on
// the registry, returning the settlement key of the (market, marketID) pair.
func (n *oracleNetwork) registerMarket(t *testing.T, marketID, deadline, reward int64, question string, options []any) []byte {
	return n.registerMarketOn(t, n.marketHash, marketID, deadline, reward, question, options)
}

func (n *oracleNetwork) registerMarketOn(t *testing.T, market util.Uint160, marketID, deadline, reward int64, question string, options []any) []byte {
	if reward > 0 {
		n.fundContract(t, market, reward)
	}
	n.e.CommitteeInvoker(market).Invoke(t, stackitem.Null{}, "register",
		n.registryHash, marketID, question, options, deadline, reward)
	return n.marketKeyOf(t, market, marketID)
}

func (n *oracleNetwork) marketKey(t *testing.T, marketID int64) []byte {
	return n.marketKeyOf(t, n.marketHash, marketID)
}

func (n *oracleNetwork) marketKeyOf(t *testing.T, market util.Uint160, marketID int64) []byte {
	s, err := n.registry().TestInvoke(t, "getMarketKey", market, marketID)
	require.NoError(t, err)
	return s.Top().Bytes()
}

func (n *oracleNetwork) createStudio(t *testing.T, key []byte) {
	n.registry(n.trigger).Invoke(t, stackitem.Null{}, "createStudioForMarket", key, n.runID)
}

func (n *oracleNetwork) closeStudio(t *testing.T, key []byte) {
	n.registry(n.trigger).Invoke(t, stackitem.Null{}, "closeStudioEpoch", key, n.runID)
}

func (n *oracleNetwork) stake(t *testing.T, acc neotest.Signer, role string, key []byte, amount int64) {
	n.gas(acc).Invoke(t, true, "transfer",
		acc.ScriptHash(), n.settlementHash, amount, []any{role, key})
}

func (n *oracleNetwork) stakeFail(t *testing.T, msg string, acc neotest.Signer, role string, key []byte, amount int64) {
	n.gas(acc).InvokeFail(t, msg, "transfer",
		acc.ScriptHash(), n.settlementHash, amount, []any{role, key})
}

func (n *oracleNetwork) submitWork(t *testing.T, key []byte, w neotest.Signer, outcome int64, evidence string) {
	n.settlement(w).Invoke(t, stackitem.Null{}, "submitWork",
		key, w.ScriptHash(), outcome, evidence)
}

func (n *oracleNetwork) submitScores(t *testing.T, key []byte, v, w neotest.Signer, scores []int64) {
	vec := make([]any, len(scores))
	for i := range scores {
		vec[i] = scores[i]
	}
	n.settlement(v).Invoke(t, stackitem.Null{}, "submitScores",
		key, v.ScriptHash(), w.ScriptHash(), vec)
}

// testStudio is a created studio with the minimum viable crew registered:
// three staked workers and two staked verifiers.
type testStudio struct {
	key       []byte
	workers   []neotest.Signer
	verifiers []neotest.Signer
}

func (n *oracleNetwork) readyStudio(t *testing.T, marketID int64) *testStudio {
	deadline := n.chainNow(t) + 1000
	key := n.registerMarket(t, marketID, deadline, defaultReward, defaultQuestion, defaultOptions())
	n.waitUntil(t, deadline)
	n.createStudio(t, key)

	s := &testStudio{key: key}
	s.workers, s.verifiers = n.registerCrew(t, key)
	return s
}

// registerCrew stakes the minimum viable crew into the studio.
func (n *oracleNetwork) registerCrew(t *testing.T, key []byte) ([]neotest.Signer, []neotest.Signer) {
	var workers, verifiers []neotest.Signer
	for i := 0; i < settlementconst.MinWorkers; i++ {
		w := n.e.NewAccount(t)
		n.stake(t, w, "worker", key, settlementconst.WorkerStake)
		workers = append(workers, w)
	}
	for i := 0; i < settlementconst.MinVerifiers; i++ {
		v := n.e.NewAccount(t)
		n.stake(t, v, "verifier", key, settlementconst.VerifierStake)
		verifiers = append(verifiers, v)
	}
	return workers, verifiers
}

func mustBytes(t *testing.T, itm stackitem.Item) []byte {
	b, err := itm.TryBytes()
	require.NoError(t, err)
	return b
}

func mustInt(t *testing.T, itm stackitem.Item) int64 {
	i, err := itm.TryInteger()
	require.NoError(t, err)
	return i.Int64()
}

func mustBool(t *testing.T, itm stackitem.Item) bool {
	b, err := itm.TryBool()
	require.NoError(t, err)
	return b
}

func flatScore(v int64) []int64 {
	return []int64{v, v, v, v}
}

func randomBytes(n int) []byte {
	a := make([]byte, n)
	rand.Read(a) //nolint:staticcheck // SA1019: rand.Read has been deprecated since Go 1.20
	return a
}

// randomCID produces an evidence reference in the same shape agents use for
// content-addressed storage links.
func randomCID() string {
	return base58.Encode(randomBytes(32))
}
