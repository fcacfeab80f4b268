package scanner

import (
	"context"

	"github.com/lumipallolabs/diskprobe/internal/model"
)

// Progress reports scanning progress
type Progress struct {
	FilesScanned int64
	DirsScanned  int64
	Fragments    int64
	BytesFound   int64
}

// Scanner finds fragment files left behind by probe sessions
type Scanner interface {
	// Scan walks root and returns every fragment file under it
	Scan(ctx context.Context, root string) (*model.Inventory, error)

	// Progress returns a channel that receives progress updates
	Progress() <-chan Progress
}
