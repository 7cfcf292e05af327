package events

import (
	"encoding/json"

	sonic "github.com/bytedance/sonic"

	"github.com/openbracket/tourneysync/internal/domain/collection"
)

// Wire payloads key the record by the singular entity name:
// created/updated carry {"team": {...}}, deleted carries {"teamId": "..."}.

func EncodeUpsert(c collection.Name, record []byte) ([]byte, error) {
	return sonic.Marshal(map[string]json.RawMessage{
		c.Singular(): record,
	})
}

func EncodeDelete(c collection.Name, id string) ([]byte, error) {
	return sonic.Marshal(map[string]string{
		c.Singular() + "Id": id,
	})
}

// DecodeRecord extracts the record from a created/updated payload.
func DecodeRecord(c collection.Name, payload []byte) ([]byte, bool) {
	var envelope map[string]json.RawMessage
	if err := sonic.Unmarshal(payload, &envelope); err != nil {
		return nil, false
	}
	record, ok := envelope[c.Singular()]
	if !ok || len(record) == 0 {
		return nil, false
	}
	return record, true
}

// InferCollection recovers the collection from a payload alone, for legacy
// bare-verb events that carry no collection in the subject. The envelope key
// is the singular entity name, so the first collection whose key (or its Id
// and Code delete variants) appears wins.
func InferCollection(payload []byte) (collection.Name, bool) {
	var envelope map[string]json.RawMessage
	if err := sonic.Unmarshal(payload, &envelope); err != nil {
		return "", false
	}
	for _, c := range collection.All() {
		singular := c.Singular()
		for _, key := range []string{singular, singular + "Id", singular + "Code"} {
			if _, ok := envelope[key]; ok {
				return c, true
			}
		}
	}
	return "", false
}

// DecodeDeletedID extracts the record id or code from a deleted payload.
func DecodeDeletedID(c collection.Name, payload []byte) (string, bool) {
	var envelope map[string]json.RawMessage
	if err := sonic.Unmarshal(payload, &envelope); err != nil {
		return "", false
	}
	for _, key := range []string{c.Singular() + "Id", c.Singular() + "Code", "id"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var id string
		if err := sonic.Unmarshal(raw, &id); err != nil {
			continue
		}
		if id != "" {
			return id, true
		}
	}
	return "", false
}
