package guessdto

const (
	CodeExhaustedAttempts    = "exhausted_attempts"
	CodeFetchFailed          = "fetch_failed"
	CodeFetchInProgress      = "fetch_in_progress"
	CodeStaleFetch           = "stale_fetch"
	CodeEmptyPGN             = "empty_pgn"
	CodeMissingRatingHeaders = "missing_rating_headers"
	CodeTooShort             = "too_short"
	CodeInvalidMovetext      = "invalid_movetext"
	CodeInvalidStage         = "invalid_stage"
	CodeNoGame               = "no_game"
	CodeSessionNotFound      = "session_not_found"
	CodeRoomNotAllowed       = "room_not_allowed"
	CodeInvalidArgument      = "invalid_argument"
	CodeInternal             = "internal"
)

type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "guess service error"
}
