package model

import "errors"

// Error taxonomy shared by all components. Match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrBadCredentials    = errors.New("bad credentials")
	ErrAlreadyExists     = errors.New("already exists")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrPremiumLocked     = errors.New("premium content locked")
	ErrNetwork           = errors.New("network failure")
	ErrRemoteWrite       = errors.New("remote write failed")
	ErrMalformedResponse = errors.New("malformed response")
)

// Result is the outcome reported to the presentation layer.
type Result struct {
	Success bool
	Message string
}

// ResultOf converts an operation error into a Result. A nil error yields a
// successful result carrying okMessage.
func ResultOf(err error, okMessage string) Result {
	if err == nil {
		return Result{Success: true, Message: okMessage}
	}
	return Result{Success: false, Message: Message(err)}
}

// Message returns the user-facing text for err.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRemoteWrite):
		return "Failed to save your changes. Please try again."
	case errors.Is(err, ErrNotFound):
		return "User not found. Please register first."
	case errors.Is(err, ErrBadCredentials):
		return "Incorrect password."
	case errors.Is(err, ErrAlreadyExists):
		return "Email already registered."
	case errors.Is(err, ErrUnauthenticated):
		return "Please log in first."
	case errors.Is(err, ErrPremiumLocked):
		return "This is a premium image. Upgrade to Pro to unlock it."
	case errors.Is(err, ErrMalformedResponse):
		return "The server returned an unexpected response. Please try again."
	case errors.Is(err, ErrNetwork):
		return "Network error. Please check your connection and try again."
	default:
		return "Something went wrong. Please try again."
	}
}

// FetchMessage is Message for failed image page loads.
func FetchMessage(err error) string {
	if errors.Is(err, ErrNetwork) && !errors.Is(err, ErrRemoteWrite) {
		return "Failed to fetch images. Please try again."
	}
	return Message(err)
}
