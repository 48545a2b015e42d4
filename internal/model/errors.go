package model

import "errors"

var (
	// ErrDuplicateEpisode is returned by stores when an episode with the same
	// external identifier already exists.
	ErrDuplicateEpisode = errors.New("duplicate episode")
	// ErrEpisodeNotFound is returned by stores when no episode matches.
	ErrEpisodeNotFound = errors.New("episode not found")
)
