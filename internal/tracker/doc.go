// Package tracker records aggregate savings statistics per conversion
// event. It is notified by the orchestrator after each successful encode
// and is otherwise read-only: it never influences conversion decisions.
package tracker
