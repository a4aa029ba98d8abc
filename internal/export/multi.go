package export

import (
	"errors"

	"animport/internal/media"
)

// MultiSink fans every row out to all of its sinks in order.
type MultiSink []Sink

func (m MultiSink) WriteAnime(a *media.Anime) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteAnime(a))
	}
	return errors.Join(errs...)
}

func (m MultiSink) WriteEpisode(e media.Episode, r media.Resolution) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteEpisode(e, r))
	}
	return errors.Join(errs...)
}

// Close closes every sink, even when an earlier one fails.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
