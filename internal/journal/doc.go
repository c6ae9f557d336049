// Package journal records toggle activity to SQLite.
//
// Every attach/detach attempt and every sweep summary is written as one
// row, keyed by the toggle's correlation ID so log lines, journal rows,
// and metric points of a single sweep can be tied together. The journal
// is an observability sink: writes are best-effort from the control
// loop's point of view, and a failed insert never affects a toggle's
// outcome.
//
// The schema is a fixed pair of append-only tables created at open.
package journal
