package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileStore keeps the conversation log as a JSON array in one file. Every
// mutation rewrites the file under an exclusive file lock, so several
// processes may share it.
type FileStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

type fileLog struct {
	NextID   int64     `json:"next_id"`
	Messages []Message `json:"messages"`
}

// OpenFile opens or creates the log at path.
func OpenFile(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("memory file path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create memory dir: %w", err)
	}
	s := &FileStore{path: path, lock: flock.New(path + ".lock")}
	if _, err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) read() (*fileLog, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &fileLog{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read memory file: %w", err)
	}
	var log fileLog
	if len(data) > 0 {
		if err := json.Unmarshal(data, &log); err != nil {
			return nil, fmt.Errorf("invalid memory file %s: %w", s.path, err)
		}
	}
	return &log, nil
}

func (s *FileStore) write(log *fileLog) error {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("cannot write memory file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("cannot replace memory file: %w", err)
	}
	return nil
}

// withLog runs fn on the current log, writing it back when fn reports a change.
func (s *FileStore) withLog(fn func(*fileLog) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("cannot lock memory file: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	log, err := s.read()
	if err != nil {
		return err
	}
	changed, err := fn(log)
	if err != nil || !changed {
		return err
	}
	return s.write(log)
}

func (s *FileStore) find(log *fileLog, id int64) int {
	for i, m := range log.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (s *FileStore) Append(_ context.Context, msgs ...Message) ([]Message, error) {
	out := make([]Message, len(msgs))
	err := s.withLog(func(log *fileLog) (bool, error) {
		for i, m := range msgs {
			log.NextID++
			m.ID = log.NextID
			if m.CreatedAt.IsZero() {
				m.CreatedAt = time.Now().UTC()
			}
			log.Messages = append(log.Messages, m)
			out[i] = m
		}
		return len(msgs) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileStore) Get(_ context.Context, id int64) (Message, error) {
	var found Message
	err := s.withLog(func(log *fileLog) (bool, error) {
		i := s.find(log, id)
		if i < 0 {
			return false, ErrNotFound
		}
		found = log.Messages[i]
		return false, nil
	})
	return found, err
}

func (s *FileStore) Update(_ context.Context, id int64, content string) error {
	return s.withLog(func(log *fileLog) (bool, error) {
		i := s.find(log, id)
		if i < 0 {
			return false, ErrNotFound
		}
		log.Messages[i].Content = content
		return true, nil
	})
}

func (s *FileStore) Delete(_ context.Context, id int64) error {
	return s.withLog(func(log *fileLog) (bool, error) {
		i := s.find(log, id)
		if i < 0 {
			return false, ErrNotFound
		}
		log.Messages = append(log.Messages[:i], log.Messages[i+1:]...)
		return true, nil
	})
}

func (s *FileStore) All(_ context.Context) ([]Message, error) {
	var out []Message
	err := s.withLog(func(log *fileLog) (bool, error) {
		out = append([]Message(nil), log.Messages...)
		return false, nil
	})
	return out, err
}

func (s *FileStore) Close() error { return nil }
