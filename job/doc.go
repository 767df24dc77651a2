// Package job defines the stateful representation of a unit of work in
// the buildqueue orchestration core.
//
// A Job augments a caller-submitted description (job type, input/output
// paths, content hash, payload, priority) with delivery and scheduling
// metadata maintained exclusively by the durable store: Status,
// Attempts, WorkerID, and the created/started/completed timestamps.
//
// Job values returned by store.Observer or store.Dispatcher are
// snapshots of storage state. Mutating fields on a returned Job does not
// change the underlying row; transitions happen only through the store
// interfaces.
package job
