// Package communication contains the domain model of the communication
// orchestration engine: the request/result types, the user preference and
// consent model, the communication history used for frequency caps and
// engagement scoring, and the interfaces of the external collaborators
// (preference store, analytics store, execution substrate).
//
// The package holds no I/O. Repository and gateway implementations live in
// internal/infrastructure; the decision logic that composes them lives in
// internal/application/communication.
package communication
