package wallet

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mfactory-lab/ic-solana/solana"
)

// JobState is a stage in a transaction submission's lifecycle.
type JobState string

const (
	// JobBuilding covers blockhash fill and signing.
	JobBuilding = JobState("building")
	// JobSigned means every required signature slot is filled.
	JobSigned = JobState("signed")
	// JobSubmitted means the transaction was accepted by a provider.
	JobSubmitted = JobState("submitted")
	// JobConfirmed is terminal: the cluster confirmed the signature.
	JobConfirmed = JobState("confirmed")
	// JobFailed is terminal. Resubmission starts a new job.
	JobFailed = JobState("failed")
)

// FailureReason names the step a failed job died in.
type FailureReason string

const (
	FailureSigning = FailureReason("signing")
	FailureSubmit  = FailureReason("submit")
	FailureChain   = FailureReason("chain")
	FailureTimeout = FailureReason("timeout")
)

// jobTransitions is the full set of legal state changes. Everything else,
// including re-entering building after signing, is a programming error.
var jobTransitions = map[JobState][]JobState{
	JobBuilding:  {JobSigned, JobFailed},
	JobSigned:    {JobSubmitted, JobFailed},
	JobSubmitted: {JobConfirmed, JobFailed},
}

var jobSequence atomic.Uint64

// Job is the audit record of one transaction submission attempt. It only
// moves forward; a failed job stays failed and a retry is a new job.
type Job struct {
	ID string

	mu        sync.Mutex
	state     JobState
	signature solana.Signature
	failure   FailureReason
	err       error
	updatedAt time.Time
}

func newJob() *Job {
	return &Job{
		ID:        fmt.Sprintf("tx-%d-%d", time.Now().UnixMilli(), jobSequence.Add(1)),
		state:     JobBuilding,
		updatedAt: time.Now(),
	}
}

// State returns the job's current stage.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Signature returns the transaction signature, set once the job is signed.
func (j *Job) Signature() solana.Signature {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.signature
}

// Failure returns the failure reason and error for a failed job.
func (j *Job) Failure() (FailureReason, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failure, j.err
}

func (j *Job) advance(to JobState) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, allowed := range jobTransitions[j.state] {
		if allowed == to {
			j.state = to
			j.updatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("illegal job transition %s -> %s", j.state, to)
}

func (j *Job) setSignature(sig solana.Signature) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.signature = sig
}

// fail moves the job to its terminal failed state, recording the step and
// cause. Failing an already-terminal job is ignored.
func (j *Job) fail(reason FailureReason, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == JobConfirmed || j.state == JobFailed {
		return
	}
	j.state = JobFailed
	j.failure = reason
	j.err = err
	j.updatedAt = time.Now()
}
