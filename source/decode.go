package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	nsview "github.com/frobware/go-nsview"
)

// lsnsOutput is the top-level object of `lsns --json -t net`.
type lsnsOutput struct {
	Namespaces []lsnsEntry `json:"namespaces"`
}

// lsnsEntry covers both old (all strings) and new (numeric) lsns
// output, hence json.RawMessage for the id-like columns.
type lsnsEntry struct {
	NS      json.RawMessage `json:"ns"`
	Type    string          `json:"type"`
	PID     json.RawMessage `json:"pid"`
	Command string          `json:"command"`
	NetnsID json.RawMessage `json:"netnsid"`
	NSFS    *string         `json:"nsfs"`
}

// DecodeNamespaces parses `lsns --json -t net` output. Entries without
// an nsfs mount are addressed through their first process.
func DecodeNamespaces(data []byte) ([]nsview.NamespaceRecord, error) {
	var out lsnsOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode namespace listing: %w", err)
	}

	records := make([]nsview.NamespaceRecord, 0, len(out.Namespaces))
	for i, e := range out.Namespaces {
		if e.Type != "" && e.Type != "net" {
			continue
		}

		id, err := scalar(e.NS)
		if err != nil || id == "" {
			return nil, fmt.Errorf("decode namespace listing: entry %d: missing ns", i)
		}
		rec := nsview.NamespaceRecord{ID: id, Command: e.Command}

		if pid, err := scalar(e.PID); err == nil && pid != "" {
			rec.PID, err = strconv.Atoi(pid)
			if err != nil {
				return nil, fmt.Errorf("decode namespace listing: ns %s: pid %q: %w", id, pid, err)
			}
		}

		netnsid, err := scalar(e.NetnsID)
		if err != nil {
			return nil, fmt.Errorf("decode namespace listing: ns %s: netnsid: %w", id, err)
		}
		if netnsid != "" && netnsid != "unassigned" {
			n, err := strconv.Atoi(netnsid)
			if err != nil {
				return nil, fmt.Errorf("decode namespace listing: ns %s: netnsid %q: %w", id, netnsid, err)
			}
			rec.NetnsID = &n
		}

		switch {
		case e.NSFS != nil && *e.NSFS != "":
			// lsns may list several mounts of the same nsfs, one per line.
			rec.Handle = strings.SplitN(*e.NSFS, "\n", 2)[0]
		case rec.PID > 0:
			rec.Handle = fmt.Sprintf("/proc/%d/ns/net", rec.PID)
		default:
			// The empty handle means the observer; never guess it.
			return nil, fmt.Errorf("decode namespace listing: ns %s: no nsfs mount or pid to enter it by", id)
		}

		records = append(records, rec)
	}
	return records, nil
}

// scalar returns a JSON string or number as text; null and absent
// values return "".
func scalar(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

type ipAddrInfo struct {
	Family string `json:"family"`
	Local  string `json:"local"`
}

type ipLink struct {
	Ifindex     int          `json:"ifindex"`
	Ifname      string       `json:"ifname"`
	AddrInfo    []ipAddrInfo `json:"addr_info"`
	Link        *string      `json:"link"`
	LinkNetnsID *int         `json:"link_netnsid"`
	LinkIndex   *int         `json:"link_index"`
}

// DecodeInterfaces parses `ip -j addr` output.
func DecodeInterfaces(data []byte) ([]nsview.Interface, error) {
	var links []ipLink
	if err := json.Unmarshal(data, &links); err != nil {
		return nil, fmt.Errorf("decode interface listing: %w", err)
	}

	ifaces := make([]nsview.Interface, 0, len(links))
	for _, l := range links {
		iface := nsview.Interface{Index: l.Ifindex, Name: l.Ifname}
		for _, ai := range l.AddrInfo {
			iface.Addresses = append(iface.Addresses, nsview.Address{Family: ai.Family, Local: ai.Local})
		}
		if l.Link != nil {
			iface.LinkName = *l.Link
		}
		if l.LinkNetnsID != nil && l.LinkIndex != nil {
			iface.Peer = &nsview.CrossPeer{NetnsID: *l.LinkNetnsID, Index: *l.LinkIndex}
		}
		ifaces = append(ifaces, iface)
	}
	return ifaces, nil
}

type bpftoolProg struct {
	DevName string `json:"devname"`
	Ifindex int    `json:"ifindex"`
	Kind    string `json:"kind"`
	Mode    string `json:"mode"`
	Name    string `json:"name"`
	ID      uint32 `json:"id"`
}

// DecodePrograms parses `bpftool -j net show` output: an array whose
// first element maps each hook family to its attachments. Families are
// returned in the order bpftool printed them.
func DecodePrograms(data []byte) ([]nsview.ProgramRecord, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decode program listing: %w", err)
	}
	if len(top) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(top[0]))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var records []nsview.ProgramRecord
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode program listing: %w", err)
		}
		kind, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode program listing: unexpected token %v", tok)
		}

		var progs []bpftoolProg
		if err := dec.Decode(&progs); err != nil {
			return nil, fmt.Errorf("decode program listing: %s: %w", kind, err)
		}
		for _, p := range progs {
			// flow_dissector and netfilter attach to the namespace,
			// not to a device.
			if p.DevName == "" && p.Ifindex == 0 {
				continue
			}
			subtype := p.Kind
			if subtype == "" {
				subtype = p.Mode
			}
			// xdp entries carry only the program id.
			name := p.Name
			if name == "" {
				name = "id" + strconv.FormatUint(uint64(p.ID), 10)
			}
			records = append(records, nsview.ProgramRecord{
				Kind:    kind,
				DevName: p.DevName,
				Ifindex: p.Ifindex,
				Subtype: subtype,
				Name:    name,
			})
		}
	}
	return records, expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode program listing: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("decode program listing: expected %q, got %v", want, tok)
	}
	return nil
}
