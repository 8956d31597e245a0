// Package settlementconst carries deploy-time parameters of the Settlement
// contract that off-chain agents and tests need to know as well.
package settlementconst

const (
	// MinWorkers is the minimum number of registered workers required to
	// close a studio epoch. The same number of workers must also qualify
	// (submit work and collect MinScoresPerWorker distinct scores).
	MinWorkers = 3
	// MinVerifiers is the minimum number of registered verifiers required
	// to close a studio epoch.
	MinVerifiers = 2
	// MinScoresPerWorker is the number of distinct verifier score vectors a
	// worker submission must collect to qualify for consensus.
	MinScoresPerWorker = 2

	// ScoreDimensions is the length of a verifier score vector:
	// accuracy, evidence quality, source diversity, reasoning depth.
	ScoreDimensions = 4
	// MaxScore is the upper bound of a single score dimension.
	MaxScore = 100

	// WorkerStake is the minimum GAS stake of a worker, Fixed8.
	WorkerStake = 50_000_000
	// VerifierStake is the minimum GAS stake of a verifier, Fixed8.
	VerifierStake = 1_00_000_000

	// StudioKeyLen is the length of a settlement key derived from
	// the market contract hash and the per-market id.
	StudioKeyLen = 32
)
