package guess

import (
	"context"
	"errors"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/archive"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/gamesource"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/session"
	"github.com/park285/EloGuess-KakaoTalk-bot/pkg/guessdto"
)

// toDomainError folds every engine error into the single user-facing shape.
func toDomainError(err error) error {
	if err == nil {
		return nil
	}
	var de guessdto.DomainError
	if errors.As(err, &de) {
		return de
	}
	code, retryable := classify(err)
	return guessdto.DomainError{Code: code, Message: err.Error(), Retryable: retryable}
}

func classify(err error) (string, bool) {
	switch {
	case errors.Is(err, gamesource.ErrExhaustedAttempts):
		return guessdto.CodeExhaustedAttempts, true
	case errors.Is(err, session.ErrFetchInProgress):
		return guessdto.CodeFetchInProgress, true
	case errors.Is(err, session.ErrStaleFetch):
		return guessdto.CodeStaleFetch, false
	case errors.Is(err, session.ErrEmptyPGN):
		return guessdto.CodeEmptyPGN, false
	case errors.Is(err, session.ErrMissingRatingHeaders):
		return guessdto.CodeMissingRatingHeaders, false
	case errors.Is(err, session.ErrTooShort):
		return guessdto.CodeTooShort, false
	case errors.Is(err, session.ErrInvalidMovetext):
		return guessdto.CodeInvalidMovetext, false
	case errors.Is(err, session.ErrInvalidStage):
		return guessdto.CodeInvalidStage, false
	case errors.Is(err, session.ErrNoGame):
		return guessdto.CodeNoGame, false
	case errors.Is(err, ErrSessionNotFound):
		return guessdto.CodeSessionNotFound, false
	case errors.Is(err, ErrRoomNotAllowed):
		return guessdto.CodeRoomNotAllowed, false
	case errors.Is(err, gamesource.ErrNoArchives),
		errors.Is(err, archive.ErrNotFound),
		errors.Is(err, context.DeadlineExceeded):
		return guessdto.CodeFetchFailed, true
	}
	var serr *archive.StatusError
	if errors.As(err, &serr) {
		return guessdto.CodeFetchFailed, true
	}
	if isFetchError(err) {
		return guessdto.CodeFetchFailed, true
	}
	return guessdto.CodeInternal, false
}

type fetchError struct{ err error }

func (e fetchError) Error() string { return e.err.Error() }
func (e fetchError) Unwrap() error { return e.err }

func isFetchError(err error) bool {
	var fe fetchError
	return errors.As(err, &fe)
}

// fetcherAdapter tags every game source failure as a retryable fetch error.
type fetcherAdapter struct {
	next session.Fetcher
}

func (f fetcherAdapter) FetchRandomGame(ctx context.Context) (*domain.Game, error) {
	game, err := f.next.FetchRandomGame(ctx)
	if err != nil {
		return nil, fetchError{err: err}
	}
	return game, nil
}
