package bot

import (
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"
)

// UserError represents an error that should be shown to the user.
// The message is safe to display directly.
type UserError struct {
	Message string // User-friendly message to display
	Cause   error  // Original error for logging (optional)
}

func (e *UserError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

// UserErrorf creates a new user-facing error with a formatted message.
func UserErrorf(format string, args ...any) *UserError {
	return &UserError{
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapUserError wraps an internal error with a user-friendly message.
// Use this when you want to log the original error but show a different message to users.
func WrapUserError(message string, cause error) *UserError {
	return &UserError{
		Message: message,
		Cause:   cause,
	}
}

// IsUserError checks if the given error is a UserError.
func IsUserError(err error) bool {
	var userErr *UserError
	return errors.As(err, &userErr)
}

// GetUserMessage extracts the user-friendly message from an error.
// If the error is a UserError, returns its Message.
// Otherwise, returns a generic internal error message.
func GetUserMessage(err error) string {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Message
	}
	return MsgInternalError
}

// ShouldLog returns true if the error should be logged.
// UserErrors without a cause are user mistakes and don't need logging.
func ShouldLog(err error) bool {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Cause != nil
	}
	return true
}

// HandleErrors replies with the user-facing message of a failed command
// and logs the cause when there is one.
func (b *Bot) HandleErrors() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			if ShouldLog(err) {
				b.logger.Error("command failed",
					"command", c.Text(),
					"chat_id", c.Chat().ID,
					"user_id", c.Sender().ID,
					"error", err,
				)
			}

			if sendErr := c.Send(GetUserMessage(err)); sendErr != nil {
				b.logger.Warn("failed to send error message", "error", sendErr)
			}
			return nil
		}
	}
}

// truncateError shortens err for display in chat.
func truncateError(err error) string {
	msg := err.Error()
	runes := []rune(msg)
	if len(runes) <= maxErrorLength {
		return msg
	}
	return string(runes[:maxErrorLength]) + "…"
}
