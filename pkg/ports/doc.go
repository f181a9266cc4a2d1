/*
Package ports defines the driven ports (interfaces) of the lead-qualification engine.

These interfaces decouple the engine from storage and delivery technology, so the
restore-window policy lives in the session manager and not in any backend.

# Key Interfaces

  - SnapshotStore: the single-slot mirror of an in-progress session.
  - LeadSink / LeadStore: the durable destination of completed leads.
  - ReportSender: the notification collaborator behind "send report".
  - DistributedLocker: serializes a session across replicas.
*/
package ports
