// Package artifacts persists fetched statement documents: one file per
// distinct content hash under a per-account directory, a document-store
// record per statement and an optional object-storage copy.
package artifacts

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sameep-scrape/docstore"
	"github.com/sameep-scrape/model"
	"github.com/sirupsen/logrus"
)

// Outcome tells what Save did with a document
type Outcome int

const (
	Saved Outcome = iota
	Duplicate
)

func (o Outcome) String() string {
	if o == Duplicate {
		return "duplicate"
	}
	return "saved"
}

// Mirror receives a copy of every new artifact
type Mirror interface {
	Put(ctx context.Context, name string, data []byte) error
	Close() error
}

// Store writes artifacts below dir. docs and mirror may be nil.
type Store struct {
	dir    string
	docs   docstore.Store
	mirror Mirror
	logger logrus.FieldLogger

	mu    sync.Mutex
	index map[string]string // hash -> path
}

// New creates a Store. The hash index of existing files is built on first use.
func New(dir string, docs docstore.Store, mirror Mirror, logger logrus.FieldLogger) *Store {
	return &Store{
		dir:    dir,
		docs:   docs,
		mirror: mirror,
		logger: logger.WithField("component", "artifacts"),
	}
}

// Hash is the content hash used for deduplication
func Hash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Save stores the document of st. When the same content was stored before,
// in this directory or in the document store, no file is written and
// Duplicate is returned. st.Hash (and st.FilePath when the file is known
// locally) is set only once the file and its records are stored, so a
// failed Save leaves the statement pending.
func (s *Store) Save(ctx context.Context, acc *model.Account, sp *model.SupplyPoint, st *model.Statement, data []byte) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadIndex(); err != nil {
		return Saved, err
	}

	hash := Hash(data)
	log := s.logger.WithFields(logrus.Fields{"invoice": st.InvoiceNumber, "hash": hash})

	known, err := s.storedHash(ctx, hash)
	if err != nil {
		return Saved, err
	}

	if path, ok := s.index[hash]; ok {
		// A file without a record is left over from a failed Save
		if !known {
			if err := s.record(ctx, acc, sp, st, hash, path, data); err != nil {
				return Saved, err
			}
			log.Infof("Recorded existing file %s", path)
		} else {
			log.Infof("Duplicate of %s, skipped", path)
		}
		st.Hash, st.FilePath = hash, path
		return Duplicate, nil
	}
	if known {
		st.Hash = hash
		log.Info("Already in document store, skipped")
		return Duplicate, nil
	}

	path, err := s.write(acc, st, hash, data)
	if err != nil {
		return Saved, err
	}
	s.index[hash] = path

	if err := s.record(ctx, acc, sp, st, hash, path, data); err != nil {
		return Saved, err
	}
	st.Hash, st.FilePath = hash, path
	log.Infof("Saved %s (%d bytes)", path, len(data))

	if s.mirror != nil {
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		if err := s.mirror.Put(ctx, rel, data); err != nil {
			log.Warnf("Mirror upload failed: %v", err)
		}
	}
	return Saved, nil
}

// storedHash reports whether the document store already has a statement
// with this content. Without a document store it is always false.
func (s *Store) storedHash(ctx context.Context, hash string) (bool, error) {
	if s.docs == nil {
		return false, nil
	}
	return s.docs.HasStatementHash(ctx, hash)
}

// record upserts the account and supply point of st and inserts its
// statement record. st itself is not modified.
func (s *Store) record(ctx context.Context, acc *model.Account, sp *model.SupplyPoint, st *model.Statement, hash, path string, data []byte) error {
	if s.docs == nil {
		return nil
	}
	if err := s.docs.UpsertAccount(ctx, acc); err != nil {
		return err
	}
	if err := s.docs.UpsertSupplyPoint(ctx, sp); err != nil {
		return err
	}
	rec := *st
	rec.Hash, rec.FilePath, rec.Content = hash, path, data
	_, err := s.docs.InsertStatement(ctx, &rec)
	return err
}

// SyncStructure upserts every account and supply point of run
func (s *Store) SyncStructure(ctx context.Context, run *model.CollectionRun) error {
	if s.docs == nil {
		return nil
	}
	for _, acc := range run.Accounts {
		if err := s.docs.UpsertAccount(ctx, acc); err != nil {
			return err
		}
		for _, sp := range acc.SupplyPoints {
			if err := s.docs.UpsertSupplyPoint(ctx, sp); err != nil {
				return err
			}
		}
	}
	return nil
}

// Dir returns the artifact root directory
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) write(acc *model.Account, st *model.Statement, hash string, data []byte) (string, error) {
	folder := filepath.Join(s.dir, model.SanitizeFilename(acc.DisplayName))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", folder, err)
	}

	name := st.SuggestedFilename
	if name == "" {
		name = model.SuggestedFilename(st.InvoiceNumber)
	}
	path := filepath.Join(folder, name)
	if _, err := os.Stat(path); err == nil {
		ext := filepath.Ext(name)
		path = filepath.Join(folder, strings.TrimSuffix(name, ext)+"_"+hash[:8]+ext)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// loadIndex hashes the files already present below dir
func (s *Store) loadIndex() error {
	if s.index != nil {
		return nil
	}
	index := map[string]string{}
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		index[Hash(data)] = path
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", s.dir, err)
	}
	s.index = index
	s.logger.Debugf("Indexed %d existing artifact(s)", len(index))
	return nil
}
