package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

const (
	// HashPrefix prefixes every event hash.
	HashPrefix = "sha256:"

	// GenesisHash is the HashPrev of the first event in a log.
	GenesisHash = HashPrefix + "genesis"
)

// maxLine bounds a single audit line when reading a log back.
const maxLine = 1 << 20

// FileWriter appends events to a JSON lines file and fsyncs after each
// one. It is safe for concurrent use.
type FileWriter struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	lastHash string
}

var _ Writer = (*FileWriter)(nil)

// NewFileWriter opens path for appending, creating it if needed. An
// existing log is continued from its last event.
func NewFileWriter(path string) (*FileWriter, error) {
	last, err := lastHash(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &FileWriter{path: path, file: f, lastHash: last}, nil
}

// Write implements Writer.
func (w *FileWriter) Write(event *Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid audit event: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return fmt.Errorf("audit log %s is closed", w.path)
	}

	event.HashPrev = w.lastHash
	hash, err := eventHash(event)
	if err != nil {
		return err
	}
	event.Hash = hash

	line, err := event.JSON()
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	w.lastHash = hash
	return nil
}

// Close implements Writer. Closing twice is a no-op.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// LastHash implements Writer.
func (w *FileWriter) LastHash() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash
}

// Path returns the log file path.
func (w *FileWriter) Path() string { return w.path }

func eventHash(e *Event) (string, error) {
	canonical, err := e.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize audit event: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return HashPrefix + hex.EncodeToString(sum[:]), nil
}

func lastHash(path string) (string, error) {
	last := GenesisHash
	_, err := scanEvents(path, func(_ int, e *Event) error {
		last = e.Hash
		return nil
	})
	if os.IsNotExist(err) {
		return GenesisHash, nil
	}
	if err != nil {
		return "", err
	}
	return last, nil
}

// VerifyChain checks every event of the log at path: each HashPrev must
// equal the previous Hash and each Hash must match the event content. It
// returns the number of events verified before the first failure.
func VerifyChain(path string) (int, error) {
	prev := GenesisHash
	return scanEvents(path, func(line int, e *Event) error {
		if e.HashPrev != prev {
			return fmt.Errorf("line %d: chain broken: hash_prev %s, want %s", line, e.HashPrev, prev)
		}
		want, err := eventHash(e)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if e.Hash != want {
			return fmt.Errorf("line %d: hash mismatch: event content was modified", line)
		}
		prev = e.Hash
		return nil
	})
}

// scanEvents decodes each non-empty line of path and hands it to fn,
// returning how many events fn accepted.
func scanEvents(path string, fn func(line int, e *Event) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	count, line := 0, 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return count, fmt.Errorf("line %d: invalid JSON: %w", line, err)
		}
		if err := fn(line, &e); err != nil {
			return count, err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to read audit log: %w", err)
	}
	return count, nil
}
