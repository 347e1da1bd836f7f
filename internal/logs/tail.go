package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"stageflow/internal/logging"
)

const maxLineBytes = 1024 * 1024

// Last returns up to n trailing lines of path that satisfy keep, together
// with the end offset to resume following from. A missing file yields no
// lines and offset zero.
func Last(path string, n int, keep func(string) bool) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if info, err := file.Stat(); err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	} else if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}

	var ring []string
	next := 0
	offset, err := scan(file, func(line string) {
		if n <= 0 || (keep != nil && !keep(line)) {
			return
		}
		if len(ring) < n {
			ring = append(ring, line)
			return
		}
		ring[next] = line
		next = (next + 1) % n
	})
	if err != nil {
		return nil, 0, err
	}
	if len(ring) < n {
		return ring, offset, nil
	}
	return append(ring[next:], ring[:next]...), offset, nil
}

// Follow polls path from offset and calls emit for every new line that
// satisfies keep, until ctx ends. A file that shrinks is read again from the
// start.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, keep func(string) bool, emit func(string)) error {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, func(line string) {
			if keep == nil || keep(line) {
				emit(line)
			}
		})
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, fn func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	read, err := scan(file, fn)
	if err != nil {
		return offset, err
	}
	return offset + read, nil
}

// scan reports complete lines only; a trailing partial line is left for
// the next read. It returns the number of bytes consumed.
func scan(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return consumed, nil
		}
		if err != nil {
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		if len(line) > maxLineBytes {
			line = line[:maxLineBytes]
		}
		fn(strings.TrimRight(line, "\r\n"))
	}
}

// ForItem returns a filter keeping lines that carry the given work item id.
func ForItem(itemID int64) func(string) bool {
	id := strconv.FormatInt(itemID, 10)
	console := logging.FieldItemID + "=" + id
	return func(line string) bool {
		if strings.HasPrefix(line, "{") {
			var record map[string]any
			if err := json.Unmarshal([]byte(line), &record); err != nil {
				return false
			}
			switch v := record[logging.FieldItemID].(type) {
			case float64:
				return strconv.FormatFloat(v, 'f', -1, 64) == id
			case string:
				return v == id
			}
			return false
		}
		fields := strings.Fields(line)
		for i, field := range fields {
			if field == console || (field == "#"+id && i > 0 && fields[i-1] == "Item") {
				return true
			}
		}
		return false
	}
}
