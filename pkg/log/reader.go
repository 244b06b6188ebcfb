package log

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events. Zero fields match everything.
type Filter struct {
	SessionID string
	Component *Component
	Category  *Category
	SSID      string

	// TimeStart matches events at or after it; TimeEnd events before it.
	TimeStart *time.Time
	TimeEnd   *time.Time
}

func (f *Filter) matches(event Event) bool {
	if f.SessionID != "" && event.SessionID != f.SessionID {
		return false
	}
	if f.Component != nil && event.Component != *f.Component {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	if f.SSID != "" && eventSSID(event) != f.SSID {
		return false
	}
	return true
}

func eventSSID(e Event) string {
	switch {
	case e.Candidate != nil:
		return e.Candidate.SSID
	case e.Outcome != nil:
		return e.Outcome.SSID
	case e.Status != nil:
		return e.Status.SSID
	}
	return ""
}

// Reader streams events from one trace file, or from a rotated file
// followed by the current one.
type Reader struct {
	paths   []string
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens a trace file for reading every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a trace file for reading events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	return openReader([]string{path}, filter)
}

// NewTraceReader reads the trace at path together with its rotated
// predecessor, oldest first. A missing predecessor is skipped.
func NewTraceReader(path string, filter Filter) (*Reader, error) {
	paths := []string{path}
	if _, err := os.Stat(path + RotatedSuffix); err == nil {
		paths = []string{path + RotatedSuffix, path}
	}
	return openReader(paths, filter)
}

func openReader(paths []string, filter Filter) (*Reader, error) {
	r := &Reader{paths: paths, filter: filter}
	if err := r.advance(); err != nil {
		return nil, err
	}
	return r, nil
}

// advance opens the next file in r.paths, or returns io.EOF.
func (r *Reader) advance() error {
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return err
		}
		r.file = nil
	}
	if len(r.paths) == 0 {
		return io.EOF
	}
	f, err := os.Open(r.paths[0])
	if err != nil {
		return err
	}
	r.paths = r.paths[1:]
	r.file = f
	r.decoder = NewDecoder(f)
	return nil
}

// Next returns the next matching event, or io.EOF after the last file.
func (r *Reader) Next() (Event, error) {
	for {
		if r.file == nil {
			return Event{}, io.EOF
		}
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if !errors.Is(err, io.EOF) {
				return Event{}, err
			}
			if err := r.advance(); err != nil {
				return Event{}, err
			}
			continue
		}
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Close closes the file being read.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
