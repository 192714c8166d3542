package domain

import "errors"

var (
	// ErrMatchNotFound is returned when an event references a room that no longer exists.
	ErrMatchNotFound = errors.New("match not found")
	// ErrPlayerNotInMatch is returned when a user acts on a room they are not part of.
	ErrPlayerNotInMatch = errors.New("player not in match")
	// ErrNoQuestionAvailable indicates the question supply is exhausted for the requested filter.
	ErrNoQuestionAvailable = errors.New("no question available")
	// ErrQuestionNotFound indicates a question ID could not be loaded.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAlreadySettled guards against a second settlement of the same room.
	ErrAlreadySettled = errors.New("match already settled")
	// ErrProfileNotFound indicates the profile store has no row for the user.
	ErrProfileNotFound = errors.New("profile not found")
)
