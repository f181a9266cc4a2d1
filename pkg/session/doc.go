/*
Package session implements the snapshot side channel of the engine.

The Manager mirrors each in-progress session into a ports.SnapshotStore after
every successful mutation, decides whether a stored snapshot may be restored
(24-hour window, at least one response), and serializes operations per session
ID with a reference-counted local mutex plus an optional distributed lock.
*/
package session
