package session

import "errors"

var (
	ErrModelRequired    = errors.New("model required")
	ErrModelIDRequired  = errors.New("model id required")
	ErrSessionNotReady  = errors.New("session not ready")
	ErrSessionFailed    = errors.New("session failed, re-initialize required")
	ErrDocumentNotReady = errors.New("document not active")
	ErrInvalidTurn      = errors.New("invalid turn")
	ErrUnknownDocument  = errors.New("unknown document alias")

	ErrTranscriptsRequired = errors.New("transcript repo required to resume")
	ErrUnknownSession      = errors.New("no transcript for session")
	ErrTranscriptMismatch  = errors.New("transcript does not continue seed history")
)
