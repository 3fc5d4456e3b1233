package outbound

// Audit is the append-only audit trail the engine writes to. Logging is
// best-effort: implementations never block or fail the request that
// triggered the record.
type Audit interface {
	// Log appends one record.
	Log(action, user, sourceAddr, details string)

	// Recent returns up to count most recent records, newest last.
	Recent(count int) []string
}
