package bot

// User error messages (user mistakes, shown directly)
const (
	MsgNothingPending      = "No messages are waiting for approval"
	MsgDeliveryLogDisabled = "Delivery log is disabled, set DB_PATH to enable it"
)

// System error messages (internal errors, hide details from user)
const (
	MsgInternalError       = "An internal error occurred. Please try again later."
	MsgFailedRenderPending = "Failed to list pending messages. Please try again."
	MsgFailedSendPending   = "Failed to send the pending list. Please try again."
	MsgFailedRenderStart   = "Failed to render the welcome message."
	MsgFailedLoadDelivery  = "Failed to load delivery statistics. Please try again."
)

// Callback answers (shown as a toast to the voter)
const (
	MsgVoteCounted      = "👍 Counted"
	MsgAlreadyVoted     = "You already voted for this message"
	MsgVotingClosed     = "Voting for this message is closed"
	MsgVotingExpired    = "Voting window has expired"
	MsgNotTracked       = "This message is no longer tracked"
	MsgCrosspostStarted = "Threshold reached, cross-posting!"
)

// Group notifications
const (
	MsgCrosspostInitiated = "🚀 Initiating crosspost to platforms..."
	MsgNoPlatforms        = "⚠️ No platforms are enabled, nothing was cross-posted"
	MsgFmtMediaFailed     = "❌ General crosspost error: %s"
)

// maxErrorLength bounds error text shown in group reports.
const maxErrorLength = 100
