package rpcclient

import "encoding/json"

// syncState decodes eth_syncing's response, which is either the JSON
// literal `false` (not syncing) or a sync-info object (syncing).
type syncState struct {
	isSyncing bool
	raw       json.RawMessage
}

func (s *syncState) UnmarshalJSON(data []byte) error {
	var asBool bool
	if err := json.Unmarshal(data, &asBool); err == nil {
		s.isSyncing = asBool
		return nil
	}
	s.isSyncing = true
	s.raw = append(json.RawMessage{}, data...)
	return nil
}

func (s *syncState) unmarshalInto(v interface{}) error {
	return json.Unmarshal(s.raw, v)
}
