package binder

import (
	"encoding/json"
	"sort"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/openbracket/tourneysync/internal/domain/auditlog"
	"github.com/openbracket/tourneysync/internal/domain/collection"
)

// state is the per-collection storage strategy, fixed at construction.
// mapState keys records by logical id; listState keeps append order;
// auditState keeps newest first with a hard cap.
type state interface {
	replace(records []json.RawMessage)
	replaceSerialized(data []byte) error
	upsert(key string, record json.RawMessage)
	remove(key string)
	snapshot() []json.RawMessage
	serialized() ([]byte, error)
}

func newState(c collection.Name) state {
	switch {
	case c == collection.AuditLogs:
		return &auditState{cap: auditlog.MaxEntries}
	case c.MapShaped():
		return &mapState{records: make(map[string]json.RawMessage)}
	default:
		return &listState{}
	}
}

// recordIdent pulls the logical key out of an otherwise opaque record.
// Access-code keyed collections (teams, managers) carry accessCode; the
// rest carry id.
type recordIdent struct {
	ID         string `json:"id"`
	AccessCode string `json:"accessCode"`
}

func recordKey(record json.RawMessage) string {
	var ident recordIdent
	if err := sonic.Unmarshal(record, &ident); err != nil {
		return ""
	}
	if ident.AccessCode != "" {
		return ident.AccessCode
	}
	return ident.ID
}

type mapState struct {
	records map[string]json.RawMessage
}

func (s *mapState) replace(records []json.RawMessage) {
	next := make(map[string]json.RawMessage, len(records))
	for _, record := range records {
		if key := recordKey(record); key != "" {
			next[key] = record
		}
	}
	s.records = next
}

func (s *mapState) replaceSerialized(data []byte) error {
	next := make(map[string]json.RawMessage)
	if err := sonic.Unmarshal(data, &next); err != nil {
		return err
	}
	s.records = next
	return nil
}

func (s *mapState) upsert(key string, record json.RawMessage) {
	if key == "" {
		key = recordKey(record)
	}
	if key == "" {
		return
	}
	s.records[key] = record
}

func (s *mapState) remove(key string) {
	delete(s.records, key)
}

func (s *mapState) snapshot() []json.RawMessage {
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]json.RawMessage, 0, len(keys))
	for _, key := range keys {
		out = append(out, s.records[key])
	}
	return out
}

func (s *mapState) serialized() ([]byte, error) {
	return sonic.Marshal(s.records)
}

type listState struct {
	records []json.RawMessage
}

func (s *listState) replace(records []json.RawMessage) {
	s.records = append([]json.RawMessage(nil), records...)
}

func (s *listState) replaceSerialized(data []byte) error {
	var next []json.RawMessage
	if err := sonic.Unmarshal(data, &next); err != nil {
		return err
	}
	s.records = next
	return nil
}

func (s *listState) upsert(key string, record json.RawMessage) {
	if key == "" {
		key = recordKey(record)
	}
	for i, existing := range s.records {
		if recordKey(existing) == key && key != "" {
			s.records[i] = record
			return
		}
	}
	s.records = append(s.records, record)
}

func (s *listState) remove(key string) {
	if key == "" {
		return
	}
	for i, existing := range s.records {
		if recordKey(existing) == key {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return
		}
	}
}

func (s *listState) snapshot() []json.RawMessage {
	return append([]json.RawMessage(nil), s.records...)
}

func (s *listState) serialized() ([]byte, error) {
	if s.records == nil {
		return sonic.Marshal([]json.RawMessage{})
	}
	return sonic.Marshal(s.records)
}

// auditState is a listState that inserts at the head and trims to cap.
type auditState struct {
	listState
	cap int
}

func (s *auditState) upsert(key string, record json.RawMessage) {
	if key == "" {
		key = recordKey(record)
	}
	for i, existing := range s.records {
		if recordKey(existing) == key && key != "" {
			s.records[i] = record
			return
		}
	}

	s.records = append([]json.RawMessage{record}, s.records...)
	if len(s.records) > s.cap {
		s.records = s.records[:s.cap]
	}
}

func (s *auditState) replace(records []json.RawMessage) {
	s.listState.replace(records)
	s.normalize()
}

func (s *auditState) replaceSerialized(data []byte) error {
	if err := s.listState.replaceSerialized(data); err != nil {
		return err
	}
	s.normalize()
	return nil
}

// normalize restores the audit invariant after any bulk swap: entries sit
// newest first regardless of the order the source returned them in, and the
// trim to cap drops the oldest.
func (s *auditState) normalize() {
	sort.SliceStable(s.records, func(i, j int) bool {
		return auditCreatedAt(s.records[i]).After(auditCreatedAt(s.records[j]))
	})
	if len(s.records) > s.cap {
		s.records = s.records[:s.cap]
	}
}

func auditCreatedAt(record json.RawMessage) time.Time {
	var stamp struct {
		CreatedAt time.Time `json:"createdAt"`
	}
	if err := sonic.Unmarshal(record, &stamp); err != nil {
		return time.Time{}
	}
	return stamp.CreatedAt
}
