package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "relaybot/pkg/logx"
)

const fileCompactEvery = 1000

// fileStore persists the in-memory directory through an op journal.
//
// Files:
//   - <prefix>.snapshot.json  (full directory, rewritten on compaction)
//   - <prefix>.journal.jsonl  (one record per mutation since the snapshot)
//   - <prefix>.audit.jsonl    (append-only audit log)
type fileStore struct {
	*Memory
	log logx.Logger

	snapshotPath string
	journal      *os.File // guarded by Memory.mu
	writes       int

	auditMu   sync.Mutex
	auditFile *os.File
}

func openFile(cfg Config, log logx.Logger) (*fileStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	prefix := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".snapshot.json"
	journalPath := prefix + ".journal.jsonl"

	st := newDirState()
	if err := loadSnapshot(snapPath, st); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	n, err := replayJournal(journalPath, st)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("replay journal: %w", err)
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = jf.Close()
		return nil, err
	}

	s := &fileStore{
		Memory:       newMemStore(st),
		log:          log,
		snapshotPath: snapPath,
		journal:      jf,
		writes:       n,
		auditFile:    af,
	}
	s.persist = s.appendJournal
	log.Debug("file store opened", logx.String("prefix", prefix), logx.Int("replayed", n))
	return s, nil
}

// appendJournal runs under Memory.mu.
func (s *fileStore) appendJournal(r record) error {
	if s.journal == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.journal).Encode(r); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	s.writes++
	return nil
}

// Compact writes the current directory to the snapshot and truncates the journal.
func (s *fileStore) Compact(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.compactLocked()
}

func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.st); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	if _, err := s.journal.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	s.writes = 0
	return nil
}

// mutateAndMaybeCompact compacts once the journal holds fileCompactEvery records.
func (s *fileStore) mutateAndMaybeCompact(ctx context.Context, r record, check func(st *dirState) error) error {
	if err := s.Memory.mutateIf(ctx, r, check); err != nil {
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.writes < fileCompactEvery {
		return nil
	}
	if err := s.compactLocked(); err != nil {
		s.log.Warn("journal compact failed", logx.Err(err))
	}
	return nil
}

func (s *fileStore) SetOwner(ctx context.Context, id int64) error {
	return s.mutateAndMaybeCompact(ctx, record{Op: opSetOwner, ID: id}, nil)
}

func (s *fileStore) SaveUser(ctx context.Context, id int64) error {
	return s.mutateAndMaybeCompact(ctx, record{Op: opSaveUser, ID: id}, func(st *dirState) error {
		if st.Users[id] {
			return errUnchanged
		}
		return nil
	})
}

func (s *fileStore) AddAdmin(ctx context.Context, id int64) error {
	return s.mutateAndMaybeCompact(ctx, record{Op: opAddAdmin, ID: id}, nil)
}

func (s *fileStore) RemoveAdmin(ctx context.Context, id int64) error {
	return s.mutateAndMaybeCompact(ctx, record{Op: opRemoveAdmin, ID: id}, nil)
}

func (s *fileStore) SetChat(ctx context.Context, e ChatEntry) error {
	return s.mutateAndMaybeCompact(ctx, record{Op: opSetChat, Chat: &e}, nil)
}

func (s *fileStore) DeleteChat(ctx context.Context, name string) error {
	return s.mutateAndMaybeCompact(ctx, record{Op: opDeleteChat, Name: name}, chatExists(name))
}

func (s *fileStore) SaveMessage(ctx context.Context, id int, text string) error {
	return s.mutateAndMaybeCompact(ctx, record{Op: opSaveMessage, ID: int64(id), Text: text}, nil)
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	if s.auditFile == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	var errs []error
	if !s.closed && s.journal != nil {
		if s.writes > 0 {
			errs = append(errs, s.compactLocked())
		}
		errs = append(errs, s.journal.Close())
		s.journal = nil
	}
	s.closed = true
	s.mu.Unlock()

	s.auditMu.Lock()
	if s.auditFile != nil {
		errs = append(errs, s.auditFile.Close())
		s.auditFile = nil
	}
	s.auditMu.Unlock()
	return errors.Join(errs...)
}

func loadSnapshot(path string, st *dirState) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(st); err != nil {
		return err
	}
	st.fill()
	return nil
}

// replayJournal applies every decodable record; a torn last line is skipped.
func replayJournal(path string, st *dirState) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var r record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.Op == "" {
			continue
		}
		st.apply(r)
		n++
	}
	return n, sc.Err()
}
