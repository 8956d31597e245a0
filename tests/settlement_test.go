package tests

import (
	"crypto/sha256"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"

	"github.com/chaos-oracle/oracle-contract/common"
	"github.com/chaos-oracle/oracle-contract/contracts/settlement/settlementconst"
)

func TestSettlementVersion(t *testing.T) {
	n := newOracleNetwork(t)
	n.settlement().Invoke(t, common.Version, "version")
}

func TestNewStudioOnlyHub(t *testing.T) {
	n := newOracleNetwork(t)

	n.settlement().InvokeFail(t, "only hub", "newStudio",
		n.marketHash, int64(1), defaultQuestion, defaultOptions())

	t.Run("unknown studio", func(t *testing.T) {
		n.settlement().InvokeFail(t, "unknown studio", "getStudio", randomBytes(32))
	})
	t.Run("invalid studio key", func(t *testing.T) {
		n.settlement().InvokeFail(t, "invalid studio key", "getStudio", []byte{1, 2, 3})
	})
}

func TestStakeRegistration(t *testing.T) {
	n := newOracleNetwork(t)

	deadline := n.chainNow(t) + 1000
	key := n.registerMarket(t, defaultMarketID, deadline, defaultReward, defaultQuestion, defaultOptions())
	n.waitUntil(t, deadline)
	n.createStudio(t, key)

	w := n.e.NewAccount(t)
	v := n.e.NewAccount(t)

	t.Run("unknown studio", func(t *testing.T) {
		n.stakeFail(t, "unknown studio", w, "worker", randomBytes(32), settlementconst.WorkerStake)
	})
	t.Run("unknown role", func(t *testing.T) {
		n.stakeFail(t, "unknown payment purpose", w, "auditor", key, settlementconst.WorkerStake)
	})
	t.Run("insufficient stake", func(t *testing.T) {
		n.stakeFail(t, "insufficient stake", w, "worker", key, settlementconst.WorkerStake-1)
		n.stakeFail(t, "insufficient stake", v, "verifier", key, settlementconst.VerifierStake-1)

		// The faulted transfer leaves no partial escrow credit behind.
		n.settlement().Invoke(t, 0, "escrowOf", key, w.ScriptHash())
		n.settlement().Invoke(t, 0, "totalEscrow", key)
		n.settlement().Invoke(t, false, "isWorkerRegistered", key, w.ScriptHash())
	})

	n.stake(t, w, "worker", key, settlementconst.WorkerStake)
	n.stake(t, v, "verifier", key, settlementconst.VerifierStake)

	n.settlement().Invoke(t, true, "isWorkerRegistered", key, w.ScriptHash())
	n.settlement().Invoke(t, true, "isVerifierRegistered", key, v.ScriptHash())
	n.settlement().Invoke(t, 1, "workerCount", key)
	n.settlement().Invoke(t, 1, "verifierCount", key)
	n.settlement().Invoke(t, settlementconst.WorkerStake, "escrowOf", key, w.ScriptHash())
	n.settlement().Invoke(t, settlementconst.WorkerStake+settlementconst.VerifierStake, "totalEscrow", key)

	t.Run("duplicate registration", func(t *testing.T) {
		n.stakeFail(t, "already registered", w, "worker", key, settlementconst.WorkerStake)
		n.stakeFail(t, "already registered", v, "verifier", key, settlementconst.VerifierStake)
	})
	t.Run("mutual exclusion", func(t *testing.T) {
		n.stakeFail(t, "workers cannot verify", w, "verifier", key, settlementconst.VerifierStake)
		n.stakeFail(t, "verifiers cannot work", v, "worker", key, settlementconst.WorkerStake)
	})
	t.Run("stake above the floor", func(t *testing.T) {
		rich := n.e.NewAccount(t)
		n.stake(t, rich, "worker", key, 3*settlementconst.WorkerStake)
		n.settlement().Invoke(t, 3*settlementconst.WorkerStake, "escrowOf", key, rich.ScriptHash())
	})
}

func TestEscrowConservation(t *testing.T) {
	n := newOracleNetwork(t)
	s := n.readyStudio(t, defaultMarketID)

	total := int64(settlementconst.MinWorkers*settlementconst.WorkerStake +
		settlementconst.MinVerifiers*settlementconst.VerifierStake)

	sum := int64(0)
	for _, w := range s.workers {
		st, err := n.settlement().TestInvoke(t, "escrowOf", s.key, w.ScriptHash())
		require.NoError(t, err)
		sum += st.Top().BigInt().Int64()
	}
	for _, v := range s.verifiers {
		st, err := n.settlement().TestInvoke(t, "escrowOf", s.key, v.ScriptHash())
		require.NoError(t, err)
		sum += st.Top().BigInt().Int64()
	}

	require.Equal(t, total, sum)
	n.settlement().Invoke(t, total, "totalEscrow", s.key)
	require.Equal(t, total+defaultReward, n.gasBalance(t, n.settlementHash))
}

func TestSubmitWork(t *testing.T) {
	n := newOracleNetwork(t)
	s := n.readyStudio(t, defaultMarketID)
	w := s.workers[0]

	t.Run("not a worker", func(t *testing.T) {
		outsider := n.e.NewAccount(t)
		n.settlement(outsider).InvokeFail(t, "not a registered worker",
			"submitWork", s.key, outsider.ScriptHash(), int64(0), randomCID())
		n.settlement(s.verifiers[0]).InvokeFail(t, "not a registered worker",
			"submitWork", s.key, s.verifiers[0].ScriptHash(), int64(0), randomCID())
	})
	t.Run("witness", func(t *testing.T) {
		n.settlement(s.workers[1]).InvokeFail(t, common.ErrOwnerWitnessFailed,
			"submitWork", s.key, w.ScriptHash(), int64(0), randomCID())
	})
	t.Run("outcome out of range", func(t *testing.T) {
		n.settlement(w).InvokeFail(t, "outcome index out of range",
			"submitWork", s.key, w.ScriptHash(), int64(-1), randomCID())
		n.settlement(w).InvokeFail(t, "outcome index out of range",
			"submitWork", s.key, w.ScriptHash(), int64(2), randomCID())
	})
	t.Run("empty evidence", func(t *testing.T) {
		n.settlement(w).InvokeFail(t, "empty evidence reference",
			"submitWork", s.key, w.ScriptHash(), int64(0), "")
	})

	evidence := randomCID()
	n.submitWork(t, s.key, w, 1, evidence)

	st, err := n.settlement().TestInvoke(t, "getSubmission", s.key, w.ScriptHash())
	require.NoError(t, err)
	sub := st.Top().Array()
	require.EqualValues(t, 1, mustInt(t, sub[0]))
	require.Equal(t, evidence, string(mustBytes(t, sub[1])))
	require.Positive(t, mustInt(t, sub[2]))

	t.Run("write-once", func(t *testing.T) {
		n.settlement(w).InvokeFail(t, "work already submitted",
			"submitWork", s.key, w.ScriptHash(), int64(0), randomCID())

		// The original submission is untouched.
		st, err := n.settlement().TestInvoke(t, "getSubmission", s.key, w.ScriptHash())
		require.NoError(t, err)
		sub := st.Top().Array()
		require.EqualValues(t, 1, mustInt(t, sub[0]))
		require.Equal(t, evidence, string(mustBytes(t, sub[1])))
	})
}

func TestSubmitScores(t *testing.T) {
	n := newOracleNetwork(t)
	s := n.readyStudio(t, defaultMarketID)
	w, v := s.workers[0], s.verifiers[0]

	t.Run("no submission", func(t *testing.T) {
		n.settlement(v).InvokeFail(t, "no submission",
			"submitScores", s.key, v.ScriptHash(), w.ScriptHash(), []any{int64(1), int64(2), int64(3), int64(4)})
	})

	n.submitWork(t, s.key, w, 0, randomCID())

	t.Run("not a verifier", func(t *testing.T) {
		n.settlement(s.workers[1]).InvokeFail(t, "not a registered verifier",
			"submitScores", s.key, s.workers[1].ScriptHash(), w.ScriptHash(), []any{int64(1), int64(2), int64(3), int64(4)})
	})
	t.Run("witness", func(t *testing.T) {
		n.settlement(s.verifiers[1]).InvokeFail(t, common.ErrOwnerWitnessFailed,
			"submitScores", s.key, v.ScriptHash(), w.ScriptHash(), []any{int64(1), int64(2), int64(3), int64(4)})
	})
	t.Run("wrong vector length", func(t *testing.T) {
		n.settlement(v).InvokeFail(t, "invalid score vector",
			"submitScores", s.key, v.ScriptHash(), w.ScriptHash(), []any{int64(1), int64(2), int64(3)})
		n.settlement(v).InvokeFail(t, "invalid score vector",
			"submitScores", s.key, v.ScriptHash(), w.ScriptHash(), []any{int64(1), int64(2), int64(3), int64(4), int64(5)})
	})
	t.Run("score out of range", func(t *testing.T) {
		n.settlement(v).InvokeFail(t, "score out of range",
			"submitScores", s.key, v.ScriptHash(), w.ScriptHash(), []any{int64(101), int64(0), int64(0), int64(0)})
		n.settlement(v).InvokeFail(t, "score out of range",
			"submitScores", s.key, v.ScriptHash(), w.ScriptHash(), []any{int64(0), int64(-1), int64(0), int64(0)})
	})

	n.submitScores(t, s.key, v, w, []int64{90, 80, 70, 60})

	n.settlement().Invoke(t, 1, "scorerCount", s.key, w.ScriptHash())
	st, err := n.settlement().TestInvoke(t, "getScores", s.key, v.ScriptHash(), w.ScriptHash())
	require.NoError(t, err)
	scores := st.Top().Array()
	require.Len(t, scores, settlementconst.ScoreDimensions)
	for i, expected := range []int64{90, 80, 70, 60} {
		require.Equal(t, expected, mustInt(t, scores[i]))
	}

	t.Run("unscored pair reads empty", func(t *testing.T) {
		st, err := n.settlement().TestInvoke(t, "getScores", s.key, s.verifiers[1].ScriptHash(), w.ScriptHash())
		require.NoError(t, err)
		require.Empty(t, st.Top().Array())
	})
	t.Run("write-once", func(t *testing.T) {
		n.settlement(v).InvokeFail(t, "worker already scored",
			"submitScores", s.key, v.ScriptHash(), w.ScriptHash(), []any{int64(1), int64(1), int64(1), int64(1)})
	})
}

func TestCanCloseAgreesWithCloseEpoch(t *testing.T) {
	n := newOracleNetwork(t)
	s := n.readyStudio(t, defaultMarketID)
	v0, v1 := s.verifiers[0], s.verifiers[1]

	checkNotReady := func(t *testing.T) {
		n.settlement().Invoke(t, false, "canClose", s.key)
		n.registry().Invoke(t, false, "canCloseStudio", s.key)
		n.registry(n.trigger).InvokeFail(t, "threshold not met",
			"closeStudioEpoch", s.key, n.runID)
	}

	checkNotReady(t)

	for _, w := range s.workers {
		n.submitWork(t, s.key, w, 0, randomCID())
	}
	checkNotReady(t)

	n.submitScores(t, s.key, v0, s.workers[0], flatScore(50))
	n.submitScores(t, s.key, v1, s.workers[0], flatScore(50))
	n.submitScores(t, s.key, v0, s.workers[1], flatScore(50))
	n.submitScores(t, s.key, v1, s.workers[1], flatScore(50))
	n.submitScores(t, s.key, v0, s.workers[2], flatScore(50))
	checkNotReady(t) // the third worker has one score, two are required

	n.submitScores(t, s.key, v1, s.workers[2], flatScore(50))

	n.settlement().Invoke(t, true, "canClose", s.key)
	n.registry().Invoke(t, true, "canCloseStudio", s.key)
	n.closeStudio(t, s.key)

	n.settlement().Invoke(t, true, "epochClosed", s.key)
	n.settlement().Invoke(t, false, "canClose", s.key)
	n.registry().Invoke(t, false, "canCloseStudio", s.key)
}

func TestConsensus(t *testing.T) {
	n := newOracleNetwork(t)
	s := n.readyStudio(t, defaultMarketID)
	w0, w1, w2 := s.workers[0], s.workers[1], s.workers[2]
	v0, v1 := s.verifiers[0], s.verifiers[1]

	e0, e1, e2 := randomCID(), randomCID(), randomCID()
	n.submitWork(t, s.key, w0, 0, e0)
	n.submitWork(t, s.key, w1, 1, e1)
	n.submitWork(t, s.key, w2, 1, e2)

	// w0: (320+240)/2 = 280 on "yes".
	n.submitScores(t, s.key, v0, w0, flatScore(80))
	n.submitScores(t, s.key, v1, w0, flatScore(60))
	// w1: (200+201)/2 = 200 on "no", the odd point exercises truncation.
	n.submitScores(t, s.key, v0, w1, flatScore(50))
	n.submitScores(t, s.key, v1, w1, []int64{50, 50, 50, 51})
	// w2: (120+81)/2 = 100 on "no". 280 < 300, "no" wins.
	n.submitScores(t, s.key, v0, w2, flatScore(30))
	n.submitScores(t, s.key, v1, w2, []int64{20, 20, 20, 21})

	n.closeStudio(t, s.key)

	proof := sha256.Sum256([]byte(e0 + e1 + e2))

	st, err := n.market().TestInvoke(t, "getSettlement", int64(defaultMarketID))
	require.NoError(t, err)
	settled := st.Top().Array()
	require.EqualValues(t, defaultMarketID, mustInt(t, settled[0]))
	require.EqualValues(t, 1, mustInt(t, settled[1]))
	require.Equal(t, proof[:], mustBytes(t, settled[2]))

	n.market().Invoke(t, true, "isSettled", int64(defaultMarketID))

	st, err = n.registry().TestInvoke(t, "getStudio", s.key)
	require.NoError(t, err)
	require.True(t, mustBool(t, st.Top().Array()[4]))

	t.Run("settled studio leaves the active set", func(t *testing.T) {
		st, err := n.registry().TestInvoke(t, "getActiveStudios")
		require.NoError(t, err)
		require.Empty(t, st.Top().Array())
	})
}

func TestConsensusTie(t *testing.T) {
	n := newOracleNetwork(t)
	s := n.readyStudio(t, defaultMarketID)

	outcomes := []int64{0, 1, 1}
	for i, w := range s.workers {
		n.submitWork(t, s.key, w, outcomes[i], randomCID())
	}

	// "yes" collects 400, "no" collects 200+200: a tie resolves to the
	// first option.
	n.submitScores(t, s.key, s.verifiers[0], s.workers[0], flatScore(100))
	n.submitScores(t, s.key, s.verifiers[1], s.workers[0], flatScore(100))
	for _, w := range s.workers[1:] {
		n.submitScores(t, s.key, s.verifiers[0], w, flatScore(50))
		n.submitScores(t, s.key, s.verifiers[1], w, flatScore(50))
	}

	n.closeStudio(t, s.key)

	st, err := n.market().TestInvoke(t, "getSettlement", int64(defaultMarketID))
	require.NoError(t, err)
	require.EqualValues(t, 0, mustInt(t, st.Top().Array()[1]))
}

func TestConsensusExcludesNonQualifying(t *testing.T) {
	n := newOracleNetwork(t)
	s := n.readyStudio(t, defaultMarketID)

	w3 := n.e.NewAccount(t)
	n.stake(t, w3, "worker", s.key, settlementconst.WorkerStake)

	e := []string{randomCID(), randomCID(), randomCID()}
	n.submitWork(t, s.key, s.workers[0], 0, e[0])
	n.submitWork(t, s.key, s.workers[1], 1, e[1])
	n.submitWork(t, s.key, s.workers[2], 1, e[2])
	n.submitWork(t, s.key, w3, 1, randomCID())

	for _, v := range s.verifiers {
		n.submitScores(t, s.key, v, s.workers[0], flatScore(75))
		n.submitScores(t, s.key, v, s.workers[1], flatScore(25))
		n.submitScores(t, s.key, v, s.workers[2], flatScore(25))
	}
	// A single perfect score is not enough to qualify: w3 contributes
	// neither weight nor evidence.
	n.submitScores(t, s.key, s.verifiers[0], w3, flatScore(100))

	n.closeStudio(t, s.key)

	proof := sha256.Sum256([]byte(e[0] + e[1] + e[2]))

	st, err := n.market().TestInvoke(t, "getSettlement", int64(defaultMarketID))
	require.NoError(t, err)
	settled := st.Top().Array()
	require.EqualValues(t, 0, mustInt(t, settled[1]))
	require.Equal(t, proof[:], mustBytes(t, settled[2]))
}

func closedStudio(t *testing.T, n *oracleNetwork, marketID int64) *testStudio {
	s := n.readyStudio(t, marketID)
	for _, w := range s.workers {
		n.submitWork(t, s.key, w, 0, randomCID())
		for _, v := range s.verifiers {
			n.submitScores(t, s.key, v, w, flatScore(50))
		}
	}
	n.closeStudio(t, s.key)
	return s
}

func TestClosedEpochGuards(t *testing.T) {
	n := newOracleNetwork(t)
	s := n.readyStudio(t, defaultMarketID)
	w := s.workers[0]

	t.Run("withdraw before close", func(t *testing.T) {
		n.settlement(w).InvokeFail(t, "epoch not closed",
			"withdrawStake", s.key, w.ScriptHash())
	})
	t.Run("direct close is hub-only", func(t *testing.T) {
		n.settlement(n.trigger).InvokeFail(t, "only hub", "closeEpoch", s.key)
	})

	s = closedStudio(t, n, defaultMarketID+1)

	late := n.e.NewAccount(t)
	n.stakeFail(t, "epoch already closed", late, "worker", s.key, settlementconst.WorkerStake)
	n.stakeFail(t, "epoch already closed", late, "verifier", s.key, settlementconst.VerifierStake)

	n.settlement(s.workers[0]).InvokeFail(t, "epoch already closed",
		"submitWork", s.key, s.workers[0].ScriptHash(), int64(0), randomCID())
	n.settlement(s.verifiers[0]).InvokeFail(t, "epoch already closed",
		"submitScores", s.key, s.verifiers[0].ScriptHash(), s.workers[0].ScriptHash(),
		[]any{int64(1), int64(1), int64(1), int64(1)})

	n.registry(n.trigger).InvokeFail(t, "studio already settled",
		"closeStudioEpoch", s.key, n.runID)
}

func TestCloseEpochReentrancy(t *testing.T) {
	n := newOracleNetwork(t)

	deadline := n.chainNow(t) + 1000
	key := n.registerMarketOn(t, n.hostileHash, defaultMarketID, deadline, defaultReward, defaultQuestion, defaultOptions())
	n.waitUntil(t, deadline)
	n.createStudio(t, key)

	workers, verifiers := n.registerCrew(t, key)
	for _, w := range workers {
		n.submitWork(t, key, w, 0, randomCID())
		for _, v := range verifiers {
			n.submitScores(t, key, v, w, flatScore(50))
		}
	}

	// The adapter re-enters closeEpoch from its settlement callback: the
	// nested call is rejected and the whole closing transaction rolls
	// back, leaving the studio open.
	n.e.CommitteeInvoker(n.hostileHash).Invoke(t, stackitem.Null{}, "prime", key, true)
	n.registry(n.trigger).InvokeFail(t, "only hub",
		"closeStudioEpoch", key, n.runID)
	n.settlement().Invoke(t, false, "epochClosed", key)
	n.settlement().Invoke(t, true, "canClose", key)

	// In observe mode the callback sees the closed flag already
	// committed, so a re-entering adapter can never race the consensus.
	n.e.CommitteeInvoker(n.hostileHash).Invoke(t, stackitem.Null{}, "prime", key, false)
	n.closeStudio(t, key)
	n.e.CommitteeInvoker(n.hostileHash).Invoke(t, true, "observedClosed")
	n.settlement().Invoke(t, true, "epochClosed", key)
}

func TestWithdrawStake(t *testing.T) {
	n := newOracleNetwork(t)
	s := closedStudio(t, n, defaultMarketID)
	w := s.workers[0]

	t.Run("witness", func(t *testing.T) {
		n.settlement(s.workers[1]).InvokeFail(t, common.ErrOwnerWitnessFailed,
			"withdrawStake", s.key, w.ScriptHash())
	})
	t.Run("non-participant", func(t *testing.T) {
		outsider := n.e.NewAccount(t)
		n.settlement(outsider).InvokeFail(t, "nothing to withdraw",
			"withdrawStake", s.key, outsider.ScriptHash())
	})

	for _, w := range s.workers {
		n.settlement(w).Invoke(t, stackitem.Null{}, "withdrawStake", s.key, w.ScriptHash())
		n.settlement().Invoke(t, 0, "escrowOf", s.key, w.ScriptHash())
	}
	for _, v := range s.verifiers {
		n.settlement(v).Invoke(t, stackitem.Null{}, "withdrawStake", s.key, v.ScriptHash())
	}

	n.settlement().Invoke(t, 0, "totalEscrow", s.key)
	// Only the undistributed reward remains on the contract.
	require.Equal(t, int64(defaultReward), n.gasBalance(t, n.settlementHash))

	t.Run("double withdraw", func(t *testing.T) {
		n.settlement(w).InvokeFail(t, "nothing to withdraw",
			"withdrawStake", s.key, w.ScriptHash())
	})
}
