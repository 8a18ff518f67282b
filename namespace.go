package nsview

import "strconv"

// NamespaceRecord is one network namespace as reported by a namespace
// listing. The same namespace reported from two observers has the same
// ID but possibly different NetnsIDs.
type NamespaceRecord struct {
	ID string `json:"ns"`

	// NetnsID is the id the observing namespace assigned to this
	// namespace, or nil when unassigned.
	NetnsID *int `json:"netnsid,omitempty"`

	// Handle addresses commands into the namespace (an nsfs mount or a
	// /proc/<pid>/ns/net path).
	Handle string `json:"nsfs"`

	PID     int    `json:"pid,omitempty"`
	Command string `json:"command,omitempty"`
}

// RelativeID formats NetnsID the way the namespace listing does.
func (r NamespaceRecord) RelativeID() string {
	if r.NetnsID == nil {
		return "unassigned"
	}
	return strconv.Itoa(*r.NetnsID)
}
