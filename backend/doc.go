// Package backend implements the external submit/wait facade: the one
// surface callers outside this module are expected to use. Submit
// checks the results cache before creating a job, so a caller never
// pays for work that content-addressed caching has already produced.
// WaitForCompletion polls the store for a terminal status, performing
// the same dead-worker reconciliation pass the pool manager runs so a
// caller waiting on a job whose worker died does not wait out the full
// timeout before the pool manager's own supervision tick gets to it.
package backend
