package wire

// CloseClass partitions WebSocket close conditions into the three reactions
// the session state machine can take.
type CloseClass int

const (
	// CloseNormal is a clean shutdown; no reconnect.
	CloseNormal CloseClass = iota

	// CloseTransient is a network-level drop; eligible for reconnection.
	CloseTransient

	// CloseFatal is an auth or session-expiry close; terminal, never
	// reconnected automatically.
	CloseFatal
)

// String returns the human-readable name of the close class.
func (c CloseClass) String() string {
	switch c {
	case CloseNormal:
		return "normal"
	case CloseTransient:
		return "transient"
	case CloseFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Close codes with protocol-assigned meanings on the voice connection.
const (
	CodeNormalClosure   = 1000
	CodeGoingAway       = 1001
	CodeAbnormalClosure = 1006
	CodePolicyViolation = 1008
	CodeSessionExpired  = 4401
)

// Classify maps a close code onto its [CloseClass]. Codes the protocol does
// not assign a meaning, including the -1 "no status received" value, are
// treated as transient network failures.
func Classify(code int) CloseClass {
	switch code {
	case CodeNormalClosure:
		return CloseNormal
	case CodePolicyViolation, CodeSessionExpired:
		return CloseFatal
	case CodeGoingAway, CodeAbnormalClosure:
		return CloseTransient
	default:
		return CloseTransient
	}
}
