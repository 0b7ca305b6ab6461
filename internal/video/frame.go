package video

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultInterval is the spacing LoadFrames assumes between frames.
const DefaultInterval = time.Second

var frameTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// Frame is one still extracted from a video.
type Frame struct {
	Timestamp time.Duration
	Data      []byte
	MIMEType  string
}

// Batch is a run of consecutive frames described together.
type Batch struct {
	Index  int
	Start  time.Duration
	End    time.Duration
	Frames []Frame
}

// Split groups frames into consecutive, non-overlapping batches of at most
// size frames. size <= 0 uses DefaultBatchSize.
func Split(frames []Frame, size int) []Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out []Batch
	for start := 0; start < len(frames); start += size {
		end := min(start+size, len(frames))
		group := frames[start:end]
		out = append(out, Batch{
			Index:  len(out),
			Start:  group[0].Timestamp,
			End:    group[len(group)-1].Timestamp,
			Frames: group,
		})
	}
	return out
}

// LoadFrames reads the image files in dir, sorted by name, as frames spaced
// interval apart. interval <= 0 uses DefaultInterval.
func LoadFrames(dir string, interval time.Duration) ([]Frame, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}
	var frames []Frame
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		mimeType, ok := frameTypes[strings.ToLower(filepath.Ext(e.Name()))]
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read frame %s: %w", e.Name(), err)
		}
		frames = append(frames, Frame{
			Timestamp: time.Duration(len(frames)) * interval,
			Data:      data,
			MIMEType:  mimeType,
		})
	}
	return frames, nil
}

// FormatTimestamp renders d as mm:ss. Minutes are not wrapped into hours.
func FormatTimestamp(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
