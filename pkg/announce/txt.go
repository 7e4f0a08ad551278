// Package announce publishes a scanned hub inventory over mDNS so control
// UIs on the LAN can find the machine holding the dongle.
package announce

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wedo-robotics/wedo-go/pkg/hub"
)

// TXT record keys of the inventory service.
const (
	// TXTKeyVersion is the TXT schema version.
	TXTKeyVersion = "v"

	// TXTKeyCount is the number of hubs in the inventory.
	TXTKeyCount = "n"

	// txtKeyHubPrefix prefixes the per-hub records: h0, h1, ...
	txtKeyHubPrefix = "h"
)

// TXTVersion is the schema version this package emits.
const TXTVersion = "1"

// hubRecordSep separates address from label inside one per-hub record. The
// address never contains it; the label may, so splitting stops at the first
// occurrence.
const hubRecordSep = "|"

// Errors of the TXT codec.
var (
	ErrMissingRequired  = errors.New("missing required TXT record")
	ErrInvalidTXTRecord = errors.New("invalid TXT record")
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// TXTRecordsToStrings converts a record map to the "key=value" strings
// zeroconf publishes.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	out := make([]string, 0, len(txt))
	for k, v := range txt {
		out = append(out, k+"="+v)
	}
	return out
}

// StringsToTXTRecords parses "key=value" strings into a record map. Strings
// without a separator are ignored.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(strs))
	for _, s := range strs {
		k, v, ok := strings.Cut(s, "=")
		if !ok {
			continue
		}
		txt[k] = v
	}
	return txt
}

// HubRecord is one hub as carried in TXT records.
type HubRecord struct {
	Address string
	Label   string
}

// EncodeInventoryTXT creates the TXT records for a hub inventory.
func EncodeInventoryTXT(hubs []hub.Hub) TXTRecordMap {
	txt := make(TXTRecordMap)
	txt[TXTKeyVersion] = TXTVersion
	txt[TXTKeyCount] = strconv.Itoa(len(hubs))
	for i, h := range hubs {
		key := txtKeyHubPrefix + strconv.Itoa(i)
		txt[key] = h.Address + hubRecordSep + h.Label
	}
	return txt
}

// DecodeInventoryTXT parses inventory TXT records back into hub records, in
// the order they were published.
func DecodeInventoryTXT(txt TXTRecordMap) ([]HubRecord, error) {
	if v, ok := txt[TXTKeyVersion]; !ok || v != TXTVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidTXTRecord, txt[TXTKeyVersion])
	}

	countStr, ok := txt[TXTKeyCount]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyCount)
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 0 {
		return nil, fmt.Errorf("%w: bad hub count %q", ErrInvalidTXTRecord, countStr)
	}

	records := make([]HubRecord, 0, count)
	for i := 0; i < count; i++ {
		key := txtKeyHubPrefix + strconv.Itoa(i)
		value, ok := txt[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingRequired, key)
		}
		addr, label, ok := strings.Cut(value, hubRecordSep)
		if !ok {
			return nil, fmt.Errorf("%w: malformed hub record %q", ErrInvalidTXTRecord, value)
		}
		records = append(records, HubRecord{Address: addr, Label: label})
	}
	return records, nil
}
