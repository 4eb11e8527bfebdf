package logs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// anchorSize is how many bytes before the read offset are remembered to
// recognise a log that was truncated and rewritten in place.
const anchorSize = 64

// Position marks how far a log has been read. The zero value reads from the
// start of the file.
type Position struct {
	// Offset is the byte offset just past the last complete line read.
	Offset int64

	file   os.FileInfo
	anchor []byte
}

// Last returns up to limit trailing complete lines of path and the position
// just past them. A trailing line without a newline is left for Follow. A limit
// of 0 or less returns every line. A missing file yields no lines and the zero
// position.
func Last(path string, limit int) ([]string, Position, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Position{}, nil
		}
		return nil, Position{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, Position{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, Position{}, fmt.Errorf("log path %q is a directory", path)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	var ring []string
	if limit > 0 {
		ring = make([]string, 0, limit)
	}
	start := 0
	var offset int64
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, Position{}, fmt.Errorf("read log file: %w", err)
		}
		if !strings.HasSuffix(line, "\n") {
			break
		}
		offset += int64(len(line))
		text := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		switch {
		case limit <= 0 || len(ring) < limit:
			ring = append(ring, text)
		default:
			ring[start] = text
			start = (start + 1) % limit
		}
	}

	lines := make([]string, 0, len(ring))
	lines = append(lines, ring[start:]...)
	lines = append(lines, ring[:start]...)

	return lines, Position{Offset: offset, file: info, anchor: readAnchor(file, offset)}, nil
}

// Follow calls emit for every complete line appended to path after pos,
// polling every interval until ctx is done. The log is read again from the
// start when it shrinks, is replaced by another file, or no longer holds the
// bytes that preceded pos. The returned error is ctx.Err() on cancellation.
func Follow(ctx context.Context, path string, pos Position, interval time.Duration, emit func(string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		lines, next, err := readForward(path, pos)
		if err != nil {
			return err
		}
		for _, line := range lines {
			emit(line)
		}
		pos = next

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// readForward returns complete lines after pos. A trailing partial line is
// left for the next read.
func readForward(path string, pos Position) ([]string, Position, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Position{}, nil
		}
		return nil, pos, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, pos, fmt.Errorf("stat log file: %w", err)
	}
	if rewritten(file, info, pos) {
		pos = Position{}
	}
	if _, err := file.Seek(pos.Offset, io.SeekStart); err != nil {
		return nil, pos, fmt.Errorf("seek log file: %w", err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, pos, fmt.Errorf("read log file: %w", err)
	}

	next := Position{Offset: pos.Offset, file: info, anchor: pos.anchor}
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		if next.anchor == nil {
			next.anchor = readAnchor(file, next.Offset)
		}
		return nil, next, nil
	}
	complete := data[:end]
	lines := make([]string, 0, bytes.Count(complete, []byte{'\n'})+1)
	for _, line := range bytes.Split(complete, []byte{'\n'}) {
		lines = append(lines, string(bytes.TrimSuffix(line, []byte{'\r'})))
	}
	next.Offset += int64(end) + 1
	next.anchor = readAnchor(file, next.Offset)
	return lines, next, nil
}

// rewritten reports whether the file no longer continues the content pos was
// taken from.
func rewritten(file *os.File, info os.FileInfo, pos Position) bool {
	if pos.Offset < 0 || pos.Offset > info.Size() {
		return true
	}
	if pos.file != nil && !os.SameFile(pos.file, info) {
		return true
	}
	if len(pos.anchor) == 0 {
		return false
	}
	return !bytes.Equal(readAnchor(file, pos.Offset), pos.anchor)
}

// readAnchor returns up to anchorSize bytes ending at offset, or nil when
// they cannot be read.
func readAnchor(file *os.File, offset int64) []byte {
	n := int64(anchorSize)
	if offset < n {
		n = offset
	}
	if n <= 0 {
		return nil
	}
	buf := make([]byte, n)
	if _, err := file.ReadAt(buf, offset-n); err != nil {
		return nil
	}
	return buf
}
