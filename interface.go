// Package nsview holds the records shared by the discovery, topology
// and rendering packages: interfaces, namespaces and attached programs
// as reported by the listing collaborators.
package nsview

// Address is a single address assigned to an interface.
type Address struct {
	Family string `json:"family"`
	Local  string `json:"local"`
}

// String renders the address as "family/address".
func (a Address) String() string {
	return a.Family + "/" + a.Local
}

// CrossPeer locates the other end of a link that lives in a different
// namespace. NetnsID is relative to the namespace that reported the
// interface and is meaningless anywhere else.
type CrossPeer struct {
	NetnsID int `json:"netnsid"`
	Index   int `json:"ifindex"`
}

// Interface is one network device inside a namespace.
type Interface struct {
	Index     int       `json:"ifindex"`
	Name      string    `json:"ifname"`
	Addresses []Address `json:"addresses,omitempty"`

	// Peer is set only when both the relative namespace id and the
	// peer ifindex were reported.
	Peer *CrossPeer `json:"peer,omitempty"`

	// LinkName names a peer device in the same namespace.
	LinkName string `json:"link,omitempty"`

	// Programs is filled in after the interface has been indexed.
	Programs []Program `json:"programs,omitempty"`
}
