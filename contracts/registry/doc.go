/*
Package registry implements the ChaosOracle Registry contract, the single
addressable entry point of the prediction-market settlement network.

Market contracts register a question for settlement by transferring the
settlement reward (GAS) to the registry; registration arguments ride in the
transfer data. The registry holds every pending registration until the
market's deadline passes, then, on a call from the designated external
trigger, instantiates a settlement studio on the Settlement contract, funds
it with the reward and registers the settlement contract as the authorized
settler on the market. While studios run, the registry aggregates their
scoring progress into events emitted from a single address; once a studio
settles, the registry flags it settled and removes it from the active view.

The two privileged lifecycle methods, createStudioForMarket and
closeStudioEpoch, require the witness of the trigger account and, when a run
id was configured at deploy time, an authorization proof starting with that
exact run id.

# Contract notifications

MarketRegistered notification. Emitted on every accepted registration.

	MarketRegistered:
	  - name: key
	    type: Hash256
	  - name: market
	    type: Hash160
	  - name: marketId
	    type: Integer
	  - name: deadline
	    type: Integer
	  - name: reward
	    type: Integer

StudioCreated notification. Emitted when a settlement studio is instantiated
for a pending market.

	StudioCreated:
	  - name: key
	    type: Hash256
	  - name: id
	    type: Integer
	  - name: market
	    type: Hash160
	  - name: marketId
	    type: Integer

ScoresSubmitted notification. Aggregated scoring progress of a studio,
re-emitted on behalf of the settlement contract.

	ScoresSubmitted:
	  - name: key
	    type: Hash256
	  - name: workersSubmitted
	    type: Integer
	  - name: totalScores
	    type: Integer

StudioSettled notification. Emitted when a studio delivers its final outcome.

	StudioSettled:
	  - name: key
	    type: Hash256
	  - name: outcome
	    type: Integer
	  - name: proofHash
	    type: Hash256
*/
package registry

/*
Contract storage model.

# Summary
Key-value storage format:
 - 't' -> interop.Hash160
   designated trigger account
 - 'r' -> []byte
   expected authorization proof prefix (run id); absent if unrestricted
 - 'l' -> interop.Hash160
   Settlement contract address
 - 'c' -> int
   studio sequence counter
 - 'p' + settlement key -> std.Serialize(PendingMarket)
   markets registered for settlement
 - 's' + settlement key -> std.Serialize(Studio)
   created studios, append-only; a studio record tombstones the pending
   record under the same key

# Lifecycle
Pending markets are immutable. Studio records mutate exactly once, when the
Settled flag is raised by the settlement contract's callback.
*/
