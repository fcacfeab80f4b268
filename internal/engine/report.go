package engine

import "time"

// FragmentRecord is the archived form of a Fragment.
type FragmentRecord struct {
	ID            string
	Index         int
	Path          string
	Status        Status
	Slow          bool
	WriteDuration time.Duration
	Err           string
}

// Report summarizes a finished (or cancelled) session.
type Report struct {
	SessionID    string
	Volume       string
	Dir          string
	StartedAt    time.Time
	FinishedAt   time.Time
	Requested    int
	Planned      int
	FreeBytes    uint64
	FragmentSize int64
	Digest       string
	Fingerprint  string
	Tally        Tally
	Average      time.Duration
	Cancelled    bool
	Fragments    []FragmentRecord
}

// Elapsed returns the session wall time.
func (r Report) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// BytesProbed returns the bytes covered by classified fragments.
func (r Report) BytesProbed() int64 {
	return int64(r.Tally.Total()) * r.FragmentSize
}

// Complete reports whether every planned fragment was classified.
func (r Report) Complete() bool {
	return !r.Cancelled && r.Tally.Total() == r.Planned
}

func newRecord(f *Fragment) FragmentRecord {
	rec := FragmentRecord{
		ID:            f.ID,
		Index:         f.Index,
		Path:          f.Path,
		Status:        f.Status,
		Slow:          f.Slow,
		WriteDuration: f.WriteDuration,
	}
	if f.Err != nil {
		rec.Err = f.Err.Error()
	}
	return rec
}
