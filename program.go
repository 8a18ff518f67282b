package nsview

// Program describes a packet-processing program attached to an
// interface. Kind is the hook family the listing grouped it under
// (xdp, tc, tcx, ...), Subtype the attachment detail within it.
type Program struct {
	Kind    string `json:"kind"`
	Subtype string `json:"subtype"`
	Name    string `json:"name"`
}

// String renders the program as "kind-subtype-name".
func (p Program) String() string {
	return p.Kind + "-" + p.Subtype + "-" + p.Name
}

// ProgramRecord is a single attachment as reported by the program
// listing. DevName and Ifindex both identify the target interface and
// must agree.
type ProgramRecord struct {
	Kind    string
	DevName string
	Ifindex int
	Subtype string
	Name    string
}

// Program returns the descriptor stored on the target interface.
func (r ProgramRecord) Program() Program {
	return Program{Kind: r.Kind, Subtype: r.Subtype, Name: r.Name}
}

// ProgramListing is the result of asking a namespace for its attached
// programs. Listing programs is best effort: when the tool or kernel
// support is missing, Unavailable is set and Records is empty.
type ProgramListing struct {
	Records     []ProgramRecord
	Unavailable error
}

// ProgramsUnavailable builds a listing that reports why programs could
// not be queried in the namespace at handle.
func ProgramsUnavailable(handle string, err error) ProgramListing {
	return ProgramListing{Unavailable: &ProgramQueryError{Handle: handle, Err: err}}
}

// Available reports whether the listing was obtained.
func (l ProgramListing) Available() bool {
	return l.Unavailable == nil
}
