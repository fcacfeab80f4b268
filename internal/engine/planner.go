package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/lumipallolabs/diskprobe/internal/logging"
	"github.com/lumipallolabs/diskprobe/internal/marker"
)

// Planner allocates fragment placeholders.
type Planner struct {
	fs    billy.Filesystem
	newID func() string

	// ChunkSize bounds the zero buffer used when a placeholder has to be written out.
	ChunkSize int
	// OnAllocated is called after each placeholder; optional.
	OnAllocated func(done, total int)

	zeros []byte
}

// NewPlanner returns a planner allocating into the root of fs.
func NewPlanner(fs billy.Filesystem) *Planner {
	return &Planner{fs: fs, newID: uuid.NewString, ChunkSize: defaultBufferSize}
}

// Count returns how many fragments of size fit into free, rounding up.
func Count(free uint64, size int64) int {
	if size <= 0 {
		return 0
	}
	s := uint64(size)
	return int((free + s - 1) / s)
}

// Plan creates up to count zero-filled placeholders of size bytes. The first
// placeholder that cannot be allocated truncates the plan: the returned slice is the
// ground truth of what the volume holds. A nil error with fewer fragments than asked
// is the normal outcome on a nearly full volume.
func (p *Planner) Plan(ctx context.Context, count int, size int64) ([]*Fragment, error) {
	fragments := make([]*Fragment, 0, count)
	chunk := int64(p.ChunkSize)
	if chunk <= 0 {
		chunk = defaultBufferSize
	}
	p.zeros = make([]byte, min(chunk, size))
	defer func() { p.zeros = nil }()

	for j := 0; j < count; j++ {
		if err := ctx.Err(); err != nil {
			return fragments, err
		}

		id := p.newID()
		path := id + string(marker.Placeholder)
		if err := p.allocate(path, size); err != nil {
			logging.Scanner.Debugf("plan truncated at %d/%d: %v", j, count, err)
			break
		}

		fragments = append(fragments, &Fragment{
			ID:     id,
			Index:  j,
			Path:   path,
			Size:   size,
			Status: StatusPlanned,
		})
		if p.OnAllocated != nil {
			p.OnAllocated(j+1, count)
		}
	}
	return fragments, nil
}

func (p *Planner) allocate(path string, size int64) error {
	f, err := p.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFragmentAllocation, err)
	}

	err = preallocate(f, size, p.zeros)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// Leave no half-sized placeholder behind.
		_ = p.fs.Remove(path)
		return fmt.Errorf("%w: %v", ErrFragmentAllocation, err)
	}
	return nil
}
