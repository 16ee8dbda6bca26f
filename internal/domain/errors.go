package domain

import "errors"

var (
	// ErrPostFetch is wrapped by fetchers when a tag feed cannot be fetched.
	ErrPostFetch = errors.New("post fetch failed")

	// ErrNoContent may be returned by fetchers that treat an empty feed as
	// an error. It is mapped to ErrorNoContent like an empty result.
	ErrNoContent = errors.New("no content")

	// ErrNoNetwork means a remote call never reached the server.
	ErrNoNetwork = errors.New("no network")

	// ErrRequestFailed means the server rejected or failed a remote call.
	ErrRequestFailed = errors.New("request failed")

	// ErrPostNotFound is returned by PostRepository.GetBlogPost.
	ErrPostNotFound = errors.New("post not found")

	// ErrUnknownAction is returned by Dispatch for an unregistered action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrInvalidAction is returned by Dispatch when an action is missing
	// the arguments its handler needs.
	ErrInvalidAction = errors.New("invalid action")
)

// Message keys surfaced through error message events.
const (
	MessageNoNetwork     = "no_network_message"
	MessageRequestFailed = "reader_error_request_failed_title"
)

// fetchErrorKind maps a fetch failure to the entry error it produces.
func fetchErrorKind(err error) ErrorKind {
	if errors.Is(err, ErrNoContent) {
		return ErrorNoContent
	}
	return ErrorDefault
}

// likeErrorMessage maps a like failure to its user-visible message key.
func likeErrorMessage(err error) string {
	if errors.Is(err, ErrNoNetwork) {
		return MessageNoNetwork
	}
	return MessageRequestFailed
}
