package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// Service is the DNS-SD service type of door lock nodes.
const Service = "_z-wave._udp"

// DefaultDomain is the mDNS domain.
const DefaultDomain = "local."

// TXT record keys.
const (
	TXTKeyNodeID         = "id"
	TXTKeyCommandClasses = "cc"
	TXTKeyMaxUsers       = "users"
)

// NodeTXT holds the TXT records of a node.
type NodeTXT struct {
	NodeID uint16
	// CommandClasses lists the supported command classes, e.g. 0x83.
	CommandClasses []uint8
	MaxUsers       uint16
}

// Validate checks the fields required for advertising.
func (t NodeTXT) Validate() error {
	if t.NodeID == 0 {
		return ErrInvalidNodeID
	}
	return nil
}

// Encode returns the TXT records, e.g. ["id=12", "cc=83", "users=20"].
// Command classes are comma-separated hex.
func (t NodeTXT) Encode() []string {
	classes := make([]string, len(t.CommandClasses))
	for i, cc := range t.CommandClasses {
		classes[i] = fmt.Sprintf("%02X", cc)
	}
	return []string{
		TXTKeyNodeID + "=" + strconv.FormatUint(uint64(t.NodeID), 10),
		TXTKeyCommandClasses + "=" + strings.Join(classes, ","),
		TXTKeyMaxUsers + "=" + strconv.FormatUint(uint64(t.MaxUsers), 10),
	}
}

// Supports reports whether the node lists command class cc.
func (t NodeTXT) Supports(cc uint8) bool {
	for _, c := range t.CommandClasses {
		if c == cc {
			return true
		}
	}
	return false
}

// ParseTXT parses TXT records into a key-value map.
// Records without an '=' are ignored.
func ParseTXT(records []string) map[string]string {
	result := make(map[string]string)
	for _, record := range records {
		if idx := strings.IndexByte(record, '='); idx > 0 {
			result[record[:idx]] = record[idx+1:]
		}
	}
	return result
}

// ParseNodeTXT parses raw TXT records into NodeTXT.
func ParseNodeTXT(records []string) (NodeTXT, error) {
	m := ParseTXT(records)
	var txt NodeTXT

	id, err := strconv.ParseUint(m[TXTKeyNodeID], 10, 16)
	if err != nil || id == 0 {
		return NodeTXT{}, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyNodeID, m[TXTKeyNodeID])
	}
	txt.NodeID = uint16(id)

	if v := m[TXTKeyCommandClasses]; v != "" {
		for _, s := range strings.Split(v, ",") {
			cc, err := strconv.ParseUint(s, 16, 8)
			if err != nil {
				return NodeTXT{}, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyCommandClasses, v)
			}
			txt.CommandClasses = append(txt.CommandClasses, uint8(cc))
		}
	}

	if v, ok := m[TXTKeyMaxUsers]; ok {
		users, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return NodeTXT{}, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyMaxUsers, v)
		}
		txt.MaxUsers = uint16(users)
	}
	return txt, nil
}
