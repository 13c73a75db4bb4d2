package keeper

import "github.com/pkg/errors"

var (
	// ErrTransport marks an eligibility call that could not complete on an
	// endpoint. The loop rotates to the next endpoint and retries.
	ErrTransport = errors.New("transport error")
	// ErrAllEndpointsFailed is returned once every endpoint failed within a
	// single cycle.
	ErrAllEndpointsFailed = errors.New("all endpoints failed")
	// ErrNonceFetch abandons the submission for the current cycle.
	ErrNonceFetch = errors.New("nonce fetch failed")
	// ErrSubmission covers signing and broadcast failures.
	ErrSubmission = errors.New("submission failed")
)
