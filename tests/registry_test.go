package tests

import (
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"

	"github.com/chaos-oracle/oracle-contract/common"
)

func TestRegistryVersion(t *testing.T) {
	n := newOracleNetwork(t)
	n.registry().Invoke(t, common.Version, "version")
	n.registry().Invoke(t, n.trigger.ScriptHash().BytesBE(), "trigger")
}

func TestMarketRegistration(t *testing.T) {
	n := newOracleNetwork(t)
	deadline := n.chainNow(t) + 100_000_000

	t.Run("zero reward", func(t *testing.T) {
		n.market().InvokeFail(t, "reward must be positive", "register",
			n.registryHash, int64(1), defaultQuestion, defaultOptions(), deadline, int64(0))
	})
	t.Run("empty question", func(t *testing.T) {
		n.fundMarket(t, defaultReward)
		n.market().InvokeFail(t, "empty question", "register",
			n.registryHash, int64(1), "", defaultOptions(), deadline, int64(defaultReward))
	})
	t.Run("single option", func(t *testing.T) {
		n.market().InvokeFail(t, "at least two options required", "register",
			n.registryHash, int64(1), defaultQuestion, []any{"yes"}, deadline, int64(defaultReward))
	})
	t.Run("past deadline", func(t *testing.T) {
		n.market().InvokeFail(t, "deadline must be in the future", "register",
			n.registryHash, int64(1), defaultQuestion, defaultOptions(), int64(1), int64(defaultReward))
	})

	key := n.registerMarket(t, defaultMarketID, deadline, defaultReward, defaultQuestion, defaultOptions())

	s, err := n.registry().TestInvoke(t, "getPendingMarket", key)
	require.NoError(t, err)
	pending := s.Top().Array()
	require.Equal(t, n.marketHash.BytesBE(), mustBytes(t, pending[0]))
	require.EqualValues(t, defaultMarketID, mustInt(t, pending[1]))
	require.Equal(t, defaultQuestion, string(mustBytes(t, pending[2])))
	require.EqualValues(t, deadline, mustInt(t, pending[4]))
	require.EqualValues(t, defaultReward, mustInt(t, pending[5]))

	t.Run("duplicate", func(t *testing.T) {
		n.fundMarket(t, defaultReward)
		n.market().InvokeFail(t, "market already registered", "register",
			n.registryHash, int64(defaultMarketID), defaultQuestion, defaultOptions(), deadline, int64(defaultReward))
	})
	t.Run("same market, different id", func(t *testing.T) {
		other := n.registerMarket(t, defaultMarketID+1, deadline, defaultReward, defaultQuestion, defaultOptions())
		require.NotEqual(t, key, other)
	})
}

func TestMarketsReadyForSettlement(t *testing.T) {
	n := newOracleNetwork(t)

	near := n.chainNow(t) + 1000
	far := n.chainNow(t) + 100_000_000
	keyNear := n.registerMarket(t, 1, near, defaultReward, defaultQuestion, defaultOptions())
	n.registerMarket(t, 2, far, defaultReward, defaultQuestion, defaultOptions())

	s, err := n.registry().TestInvoke(t, "getMarketsReadyForSettlement")
	require.NoError(t, err)
	require.Empty(t, s.Top().Array())

	n.waitUntil(t, near)

	s, err = n.registry().TestInvoke(t, "getMarketsReadyForSettlement")
	require.NoError(t, err)
	ready := s.Top().Array()
	require.Len(t, ready, 1)
	require.Equal(t, keyNear, mustBytes(t, ready[0]))

	n.createStudio(t, keyNear)

	s, err = n.registry().TestInvoke(t, "getMarketsReadyForSettlement")
	require.NoError(t, err)
	require.Empty(t, s.Top().Array())

	s, err = n.registry().TestInvoke(t, "getActiveStudios")
	require.NoError(t, err)
	active := s.Top().Array()
	require.Len(t, active, 1)
	require.Equal(t, keyNear, mustBytes(t, active[0]))
}

func TestCreateStudioForMarket(t *testing.T) {
	n := newOracleNetwork(t)

	deadline := n.chainNow(t) + 1000
	key := n.registerMarket(t, defaultMarketID, deadline, defaultReward, defaultQuestion, defaultOptions())

	t.Run("unknown market", func(t *testing.T) {
		n.registry(n.trigger).InvokeFail(t, "unknown market",
			"createStudioForMarket", randomBytes(32), n.runID)
	})
	t.Run("not a trigger", func(t *testing.T) {
		n.registry().InvokeFail(t, common.ErrTriggerWitnessFailed,
			"createStudioForMarket", key, n.runID)
	})
	t.Run("bad proof", func(t *testing.T) {
		n.registry(n.trigger).InvokeFail(t, "authorization proof mismatch",
			"createStudioForMarket", key, []byte("bogus"))
	})
	t.Run("deadline not reached", func(t *testing.T) {
		n.registry(n.trigger).InvokeFail(t, "deadline not reached",
			"createStudioForMarket", key, n.runID)
	})

	n.waitUntil(t, deadline)
	n.createStudio(t, key)

	s, err := n.registry().TestInvoke(t, "getStudio", key)
	require.NoError(t, err)
	studio := s.Top().Array()
	require.Equal(t, key, mustBytes(t, studio[0]))
	require.EqualValues(t, 1, mustInt(t, studio[1]))
	require.Equal(t, n.marketHash.BytesBE(), mustBytes(t, studio[2]))
	require.EqualValues(t, defaultMarketID, mustInt(t, studio[3]))
	require.False(t, mustBool(t, studio[4]))

	// Studio initialized and funded on the settlement side.
	n.settlement().Invoke(t, defaultQuestion, "question", key)
	s, err = n.settlement().TestInvoke(t, "getStudio", key)
	require.NoError(t, err)
	info := s.Top().Array()
	require.Equal(t, n.registryHash.BytesBE(), mustBytes(t, info[0]))
	require.Equal(t, n.marketHash.BytesBE(), mustBytes(t, info[1]))
	require.EqualValues(t, defaultReward, mustInt(t, info[5]))
	require.Equal(t, int64(defaultReward), n.gasBalance(t, n.settlementHash))

	// The market got its settler wired.
	s, err = n.market().TestInvoke(t, "settler", int64(defaultMarketID))
	require.NoError(t, err)
	require.Equal(t, n.settlementHash.BytesBE(), s.Top().Bytes())

	t.Run("double create", func(t *testing.T) {
		n.registry(n.trigger).InvokeFail(t, "studio already created",
			"createStudioForMarket", key, n.runID)
	})
	t.Run("re-register after create", func(t *testing.T) {
		n.fundMarket(t, defaultReward)
		n.market().InvokeFail(t, "studio already created", "register",
			n.registryHash, int64(defaultMarketID), defaultQuestion, defaultOptions(),
			n.chainNow(t)+100_000_000, int64(defaultReward))
	})
}

func TestTriggerUnrestrictedRunID(t *testing.T) {
	n := newOracleNetworkWithRunID(t, []byte{})

	deadline := n.chainNow(t) + 1000
	key := n.registerMarket(t, defaultMarketID, deadline, defaultReward, defaultQuestion, defaultOptions())
	n.waitUntil(t, deadline)

	// No run id configured: any proof passes, witness check still holds.
	n.registry().InvokeFail(t, common.ErrTriggerWitnessFailed,
		"createStudioForMarket", key, []byte{})
	n.registry(n.trigger).Invoke(t, stackitem.Null{},
		"createStudioForMarket", key, []byte{})
}

func TestRegistryCallbackAuth(t *testing.T) {
	n := newOracleNetwork(t)
	s := n.readyStudio(t, defaultMarketID)

	n.registry().InvokeFail(t, "only settlement contract",
		"onScoresSubmitted", s.key, int64(1), int64(1))
	n.registry().InvokeFail(t, "only settlement contract",
		"onStudioSettled", s.key, int64(0), randomBytes(32))
}

func TestCloseStudioEpochGating(t *testing.T) {
	n := newOracleNetwork(t)
	s := n.readyStudio(t, defaultMarketID)

	t.Run("unknown studio", func(t *testing.T) {
		n.registry(n.trigger).InvokeFail(t, "unknown studio",
			"closeStudioEpoch", randomBytes(32), n.runID)
	})
	t.Run("not a trigger", func(t *testing.T) {
		n.registry().InvokeFail(t, common.ErrTriggerWitnessFailed,
			"closeStudioEpoch", s.key, n.runID)
	})

	// Nobody submitted anything yet.
	n.registry().Invoke(t, false, "canCloseStudio", s.key)
	n.registry(n.trigger).InvokeFail(t, "threshold not met",
		"closeStudioEpoch", s.key, n.runID)
}
