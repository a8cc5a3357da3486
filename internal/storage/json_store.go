// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package storage

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/npcforge/npcforge/internal/xdg"
)

// FormatVersion is written into every document this package saves.
const FormatVersion = "1.0.0"

// supportedFormats is the range of document versions that can be read.
const supportedFormats = "^1"

// DefaultFileName is the document name inside the data directory.
const DefaultFileName = "entities.json"

const backupSuffix = ".bak"

// document is the on-disk envelope. Older files are a bare id→record map.
type document struct {
	Version  string                     `json:"version"`
	Entities map[string]json.RawMessage `json:"entities"`
}

// Problem describes one stored record that could not be decoded.
type Problem struct {
	Key string
	Err error
}

// Report is the result of inspecting a document.
type Report struct {
	Version  string
	Legacy   bool
	Records  []Record
	Problems []Problem
}

// parseDocument splits a document into its version and raw records.
// Bare id→record maps are reported as legacy and their records upgraded
// to the current body shape.
func parseDocument(data []byte) (version string, entries map[string]json.RawMessage, legacy bool, err error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return FormatVersion, map[string]json.RawMessage{}, false, nil
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return "", nil, false, oops.Code(CodeStoreReadFailed).Wrapf(err, "document is not a JSON object")
	}
	_, hasVersion := top["version"]
	_, hasEntities := top["entities"]
	if !hasVersion || !hasEntities {
		for key, raw := range top {
			top[key] = upgradeLegacyRecord(raw)
		}
		return "", top, true, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", nil, false, oops.Code(CodeStoreReadFailed).Wrapf(err, "decoding document envelope")
	}
	if err := checkVersion(doc.Version); err != nil {
		return "", nil, false, err
	}
	if doc.Entities == nil {
		doc.Entities = map[string]json.RawMessage{}
	}
	return doc.Version, doc.Entities, false, nil
}

// legacyOnlyFields appear in legacy record bodies but not in Record.
var legacyOnlyFields = []string{"id", "professionName"}

// upgradeLegacyRecord drops fields the legacy writer duplicated into each
// body and turns list-encoded metadata (an empty map serialised as [])
// into an object keyed by index. Bodies that are not objects are returned
// unchanged and fail validation later.
func upgradeLegacyRecord(raw json.RawMessage) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return raw
	}
	for _, f := range legacyOnlyFields {
		delete(fields, f)
	}
	if meta, ok := fields["metadata"]; ok {
		var list []json.RawMessage
		if err := json.Unmarshal(meta, &list); err == nil {
			obj := make(map[string]json.RawMessage, len(list))
			for i, v := range list {
				obj[strconv.Itoa(i)] = v
			}
			encoded, err := json.Marshal(obj)
			if err != nil {
				return raw
			}
			fields["metadata"] = encoded
		}
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return raw
	}
	return out
}

// Inspect parses a document, decoding every valid record and listing the
// rest as problems. Only envelope-level failures return an error.
func Inspect(data []byte) (Report, error) {
	version, entries, legacy, err := parseDocument(data)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Version: version, Legacy: legacy}

	keys := slices.Sorted(maps.Keys(entries))
	for _, key := range keys {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			rep.Problems = append(rep.Problems, Problem{
				Key: key,
				Err: oops.Code(CodeRecordInvalid).With("key", key).Errorf("record key is not a positive integer id"),
			})
			continue
		}
		rec, err := DecodeRecord(id, entries[key])
		if err != nil {
			rep.Problems = append(rep.Problems, Problem{Key: key, Err: err})
			continue
		}
		rep.Records = append(rep.Records, rec)
	}
	slices.SortFunc(rep.Records, func(a, b Record) int { return cmp.Compare(a.ID, b.ID) })
	return rep, nil
}

func checkVersion(v string) error {
	ver, err := semver.NewVersion(v)
	if err != nil {
		return oops.Code(CodeStoreVersionUnsupported).With("version", v).Wrapf(err, "document version is not semver")
	}
	c, err := semver.NewConstraint(supportedFormats)
	if err != nil {
		return oops.Wrapf(err, "parsing supported format range")
	}
	if !c.Check(ver) {
		return oops.Code(CodeStoreVersionUnsupported).
			With("version", v).
			With("supported", supportedFormats).
			Errorf("document version %s is not supported", v)
	}
	return nil
}

// JSONStore keeps all records in a single JSON document. Every write
// replaces the file atomically. Safe for concurrent use.
type JSONStore struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// JSONOption configures a JSONStore.
type JSONOption func(*JSONStore)

// WithStoreLogger sets the logger used for skipped records.
func WithStoreLogger(l *slog.Logger) JSONOption {
	return func(s *JSONStore) { s.logger = l }
}

// WithStoreClock overrides the clock used to name backups.
func WithStoreClock(now func() time.Time) JSONOption {
	return func(s *JSONStore) { s.now = now }
}

// DefaultPath returns the document path inside the XDG data directory.
func DefaultPath() string {
	return filepath.Join(xdg.DataDir(), DefaultFileName)
}

// NewJSONStore creates a store backed by the document at path. An empty
// path uses DefaultPath. The file is created on first write.
func NewJSONStore(path string, opts ...JSONOption) *JSONStore {
	if path == "" {
		path = DefaultPath()
	}
	s := &JSONStore{path: path, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the document location.
func (s *JSONStore) Path() string { return s.path }

func (s *JSONStore) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, oops.Code(CodeStoreReadFailed).With("path", s.path).Wrap(err)
	}
	_, entries, _, err := parseDocument(data)
	if err != nil {
		return nil, oops.With("path", s.path).Wrap(err)
	}
	return entries, nil
}

func (s *JSONStore) write(entries map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(document{Version: FormatVersion, Entities: entries}, "", "  ")
	if err != nil {
		return oops.Code(CodeStoreWriteFailed).With("path", s.path).Wrap(err)
	}
	return writeAtomic(s.path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := xdg.EnsureDir(dir); err != nil {
		return oops.Code(CodeStoreWriteFailed).With("path", path).Wrap(err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return oops.Code(CodeStoreWriteFailed).With("path", path).Wrap(err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // already renamed on success

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error takes precedence
		return oops.Code(CodeStoreWriteFailed).With("path", path).Wrap(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close() //nolint:errcheck // sync error takes precedence
		return oops.Code(CodeStoreWriteFailed).With("path", path).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code(CodeStoreWriteFailed).With("path", path).Wrap(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return oops.Code(CodeStoreWriteFailed).With("path", path).Wrap(err)
	}
	return nil
}

// Save inserts or replaces one record.
func (s *JSONStore) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return oops.Code(CodeStoreWriteFailed).With("id", rec.ID).Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read()
	if err != nil {
		return err
	}
	entries[strconv.FormatInt(rec.ID, 10)] = body
	return s.write(entries)
}

// Delete removes one record and reports whether it was present.
func (s *JSONStore) Delete(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read()
	if err != nil {
		return false, err
	}
	key := strconv.FormatInt(id, 10)
	if _, ok := entries[key]; !ok {
		return false, nil
	}
	delete(entries, key)
	return true, s.write(entries)
}

// LoadAll decodes every valid record. Invalid records are logged and
// skipped so one bad entry cannot block the rest.
func (s *JSONStore) LoadAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code(CodeStoreReadFailed).With("path", s.path).Wrap(err)
	}

	rep, err := Inspect(data)
	if err != nil {
		return nil, oops.With("path", s.path).Wrap(err)
	}
	for _, p := range rep.Problems {
		s.logger.WarnContext(ctx, "skipping unreadable entity record",
			"path", s.path,
			"key", p.Key,
			"error", p.Err)
	}
	return rep.Records, nil
}

// ClearAll removes every record.
func (s *JSONStore) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(map[string]json.RawMessage{})
}

// Count returns the number of stored records, valid or not.
func (s *JSONStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Backup copies the current document next to it with a timestamp suffix
// and returns the backup path. A missing document yields an empty backup.
func (s *JSONStore) Backup(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = json.Marshal(document{Version: FormatVersion, Entities: map[string]json.RawMessage{}})
	}
	if err != nil {
		return "", oops.Code(CodeStoreReadFailed).With("path", s.path).Wrap(err)
	}
	dst := s.path + "." + s.now().UTC().Format("20060102T150405.000000000Z") + backupSuffix
	if err := writeAtomic(dst, data); err != nil {
		return "", err
	}
	return dst, nil
}

// Backups lists backup files for this document, oldest first.
func (s *JSONStore) Backups() ([]string, error) {
	matches, err := filepath.Glob(s.path + ".*" + backupSuffix)
	if err != nil {
		return nil, oops.Code(CodeStoreReadFailed).With("path", s.path).Wrap(err)
	}
	slices.Sort(matches)
	return matches, nil
}
