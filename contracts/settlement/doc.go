/*
Package settlement implements the ChaosOracle Settlement contract.

The contract is deployed once and hosts any number of settlement studios, one
per market question. A studio is created by the registry (newStudio), funded
with the market's reward, and then driven entirely by staked participants:
workers research the question and submit an outcome with an evidence
reference, verifiers audit submissions and score them along four quality
dimensions. Participants register by transferring their GAS stake to the
contract with the role and studio key in the transfer data; a stake below the
role's floor faults the transfer.

Once enough workers have submitted and been scored by enough distinct
verifiers, the registry closes the epoch: the contract computes the
score-weighted consensus outcome, reports it to the market contract's
onSettlement callback together with the evidence proof hash, and notifies the
registry. The closed flag is committed before the market callback runs, so a
hostile adapter cannot re-enter the closing path.

Rewards are not distributed by this contract yet; stakes are returned in full
through withdrawStake after the epoch closes.

# Contract notifications

WorkerRegistered notification. Emitted when a worker stake is accepted.

	WorkerRegistered:
	  - name: key
	    type: Hash256
	  - name: account
	    type: Hash160
	  - name: stake
	    type: Integer

VerifierRegistered notification. Emitted when a verifier stake is accepted.

	VerifierRegistered:
	  - name: key
	    type: Hash256
	  - name: account
	    type: Hash160
	  - name: stake
	    type: Integer

WorkSubmitted notification. Emitted on every accepted work submission.

	WorkSubmitted:
	  - name: key
	    type: Hash256
	  - name: worker
	    type: Hash160
	  - name: outcome
	    type: Integer
	  - name: evidence
	    type: String

EpochClosed notification. Emitted when the studio settles.

	EpochClosed:
	  - name: key
	    type: Hash256
	  - name: outcome
	    type: Integer
	  - name: proofHash
	    type: Hash256

StakeWithdrawn notification. Emitted when a participant reclaims its stake.

	StakeWithdrawn:
	  - name: key
	    type: Hash256
	  - name: account
	    type: Hash160
	  - name: amount
	    type: Integer
*/
package settlement

/*
Contract storage model.

# Summary
Key-value storage format, where <key> is the 32-byte settlement key of a
studio and <acc> an account script hash:
 - 'h' -> interop.Hash160
   Registry contract address
 - 'i' + <key> -> std.Serialize(Studio)
   studio state; existence of the record is the initialized flag
 - 'w' + <key> + <acc> / 'v' + <key> + <acc> -> 1
   worker / verifier membership markers, mutually exclusive
 - 'W' + <key> / 'V' + <key> -> std.Serialize([][]byte)
   worker / verifier accounts in registration order
 - 'e' + <key> + <acc> -> int
   escrow balance of the participant
 - 'E' + <key> -> int
   escrow running total; always the sum of all 'e' entries of the studio
 - 's' + <key> + <acc> -> std.Serialize(Submission)
   write-once worker submissions
 - 'c' + <key> + <worker> + <verifier> -> std.Serialize([]int)
   write-once verifier score vectors, four values of [0, 100] each
 - 'n' + <key> + <worker> -> int
   number of distinct verifiers that scored the worker
 - 'm' + <key> -> int
   number of workers that submitted work
 - 'g' + <key> -> int
   total number of score vectors submitted in the studio

# Escrow
Escrow balances are mutated only by the creditEscrow/debitEscrow pair, which
keeps the running total checkable against the sum of individual entries.
*/
