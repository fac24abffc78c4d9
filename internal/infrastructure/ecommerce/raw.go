package ecommerce

import (
	"bytes"
	"encoding/json"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
)

// decodeRawItems decodes a JSON array of objects. Anything that is not an
// array yields nil so callers can treat a malformed list as an empty page.
// Array elements that are not objects are skipped.
func decodeRawItems(data json.RawMessage) []marketplace.RawItem {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil
	}
	items := make([]marketplace.RawItem, 0, len(elems))
	for _, elem := range elems {
		item, ok := decodeRawItem(elem)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items
}

// decodeRawItem decodes one JSON object keeping numbers as json.Number
func decodeRawItem(data json.RawMessage) (marketplace.RawItem, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var item marketplace.RawItem
	if err := dec.Decode(&item); err != nil {
		return nil, false
	}
	return item, true
}
