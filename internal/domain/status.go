package domain

// NextStatus returns the inquiry status after a message from sender.
// The machine is keyed only on who spoke last: an admin reply means the inquiry
// awaits the user, anything from the user means it awaits an admin. StatusNew is
// never re-entered.
func NextStatus(sender Sender) InquiryStatus {
	if sender == SenderAdmin {
		return StatusResponded
	}
	return StatusInProgress
}

// IsRespondedEdge reports whether an update moved the inquiry into responded.
// Steady-state responded -> responded writes are not an edge, so consumers that
// notify users on replies do not fire twice for no-op updates.
func IsRespondedEdge(before, after *Inquiry) bool {
	if after == nil || after.Status != StatusResponded {
		return false
	}
	return before == nil || before.Status != StatusResponded
}
