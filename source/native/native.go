// Package native implements source.Source without external tools. It
// reads namespaces from procfs and /run/netns, devices and tc filters
// over netlink, and TCX attachments with the BPF prog query command.
package native

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/vishvananda/netlink"
	vnetns "github.com/vishvananda/netns"

	nsview "github.com/frobware/go-nsview"
	"github.com/frobware/go-nsview/netns"
	"github.com/frobware/go-nsview/source"
)

const (
	defaultProcRoot  = "/proc"
	defaultNetnsRoot = "/run/netns"
)

// XDP attach modes as reported in IFLA_XDP_ATTACHED.
const (
	xdpAttachedDrv   = 1
	xdpAttachedSkb   = 2
	xdpAttachedHw    = 3
	xdpAttachedMulti = 4
)

// Source reads the host directly. It needs CAP_SYS_ADMIN to enter other
// namespaces and CAP_BPF (or root) to inspect programs.
type Source struct {
	procRoot  string
	netnsRoot string
	logger    *slog.Logger
}

var _ source.Source = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// WithRoots overrides where processes and named namespaces are found.
func WithRoots(procRoot, netnsRoot string) Option {
	return func(s *Source) {
		s.procRoot = procRoot
		s.netnsRoot = netnsRoot
	}
}

// New returns a Source reading the live host.
func New(opts ...Option) *Source {
	s := &Source{
		procRoot:  defaultProcRoot,
		netnsRoot: defaultNetnsRoot,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "native")
	return s
}

// openHandle returns a netlink handle bound to the namespace at path.
func openHandle(path string) (*netlink.Handle, error) {
	if path == "" {
		return netlink.NewHandle()
	}
	ns, err := vnetns.GetFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("open netns %s: %w", path, err)
	}
	defer ns.Close()
	return netlink.NewHandleAt(ns)
}

// nsEntry is one namespace found while scanning.
type nsEntry struct {
	inode   uint64
	pid     int
	command string
	nsfs    string
}

func (e *nsEntry) path() string {
	if e.nsfs != "" {
		return e.nsfs
	}
	return fmt.Sprintf("/proc/%d/ns/net", e.pid)
}

// scan collects every namespace reachable through a process or a
// /run/netns mount, ordered by inode like lsns.
func (s *Source) scan() ([]*nsEntry, error) {
	byInode := make(map[uint64]*nsEntry)

	procs, err := os.ReadDir(s.procRoot)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.procRoot, err)
	}
	for _, p := range procs {
		pid, err := strconv.Atoi(p.Name())
		if err != nil {
			continue
		}
		// Processes exit while we scan; skip the ones that are gone.
		ino, err := netns.Inode(filepath.Join(s.procRoot, p.Name(), "ns", "net"))
		if err != nil {
			continue
		}
		e, ok := byInode[ino]
		if !ok {
			e = &nsEntry{inode: ino}
			byInode[ino] = e
		}
		if e.pid == 0 || pid < e.pid {
			e.pid = pid
			comm, _ := os.ReadFile(filepath.Join(s.procRoot, p.Name(), "comm"))
			e.command = strings.TrimSpace(string(comm))
		}
	}

	mounts, err := os.ReadDir(s.netnsRoot)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", s.netnsRoot, err)
	}
	for _, m := range mounts {
		path := filepath.Join(s.netnsRoot, m.Name())
		ino, err := netns.Inode(path)
		if err != nil {
			continue
		}
		e, ok := byInode[ino]
		if !ok {
			e = &nsEntry{inode: ino}
			byInode[ino] = e
		}
		if e.nsfs == "" {
			e.nsfs = path
		}
	}

	entries := make([]*nsEntry, 0, len(byInode))
	for _, e := range byInode {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].inode < entries[j].inode })
	return entries, nil
}

// Namespaces implements source.Source. Relative ids come from asking
// the observer's kernel namespace which id it assigned to each peer.
func (s *Source) Namespaces(ctx context.Context, handle string) ([]nsview.NamespaceRecord, error) {
	entries, err := s.scan()
	if err != nil {
		return nil, err
	}

	h, err := openHandle(handle)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	records := make([]nsview.NamespaceRecord, 0, len(entries))
	for _, e := range entries {
		rec := nsview.NamespaceRecord{
			ID:      strconv.FormatUint(e.inode, 10),
			Handle:  e.path(),
			PID:     e.pid,
			Command: e.command,
		}
		if id, ok := s.relativeID(h, rec.Handle); ok {
			rec.NetnsID = &id
		}
		records = append(records, rec)
	}
	return records, nil
}

// relativeID returns the id the observer behind h uses for the
// namespace at path. Unassigned ids and lookup failures report false.
func (s *Source) relativeID(h *netlink.Handle, path string) (int, bool) {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Debug("cannot open namespace for nsid lookup", "path", path, "error", err)
		return 0, false
	}
	defer f.Close()

	id, err := h.GetNetNsIdByFd(int(f.Fd()))
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// Interfaces implements source.Source.
func (s *Source) Interfaces(ctx context.Context, handle string) ([]nsview.Interface, error) {
	h, err := openHandle(handle)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	links, err := h.LinkList()
	if err != nil {
		return nil, fmt.Errorf("list links in %q: %w", handle, err)
	}

	names := make(map[int]string, len(links))
	for _, l := range links {
		names[l.Attrs().Index] = l.Attrs().Name
	}

	ifaces := make([]nsview.Interface, 0, len(links))
	for _, l := range links {
		attrs := l.Attrs()
		iface := nsview.Interface{Index: attrs.Index, Name: attrs.Name}

		addrs, err := h.AddrList(l, netlink.FAMILY_ALL)
		if err != nil {
			return nil, fmt.Errorf("list addresses of %s in %q: %w", attrs.Name, handle, err)
		}
		for _, a := range addrs {
			family := "inet6"
			if a.IP.To4() != nil {
				family = "inet"
			}
			iface.Addresses = append(iface.Addresses, nsview.Address{Family: family, Local: a.IP.String()})
		}

		if attrs.ParentIndex != 0 {
			if attrs.NetNsID >= 0 {
				iface.Peer = &nsview.CrossPeer{NetnsID: attrs.NetNsID, Index: attrs.ParentIndex}
			} else {
				iface.LinkName = names[attrs.ParentIndex]
			}
		}
		ifaces = append(ifaces, iface)
	}
	return ifaces, nil
}

// Programs implements source.Source. Any failure, typically missing
// privileges, yields an unavailable listing.
func (s *Source) Programs(ctx context.Context, handle string) nsview.ProgramListing {
	records, err := s.programs(handle)
	if err != nil {
		return nsview.ProgramsUnavailable(handle, err)
	}
	return nsview.ProgramListing{Records: records}
}

func (s *Source) programs(handle string) ([]nsview.ProgramRecord, error) {
	h, err := openHandle(handle)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	links, err := h.LinkList()
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	var xdp, tc, tcx []nsview.ProgramRecord
	for _, l := range links {
		attrs := l.Attrs()

		if attrs.Xdp != nil && attrs.Xdp.Attached {
			xdp = append(xdp, nsview.ProgramRecord{
				Kind:    "xdp",
				DevName: attrs.Name,
				Ifindex: attrs.Index,
				Subtype: xdpMode(attrs.Xdp.AttachMode),
				Name:    programName(ebpf.ProgramID(attrs.Xdp.ProgId), ""),
			})
		}

		for _, hook := range []struct {
			parent uint32
			name   string
		}{
			{netlink.HANDLE_MIN_INGRESS, "clsact/ingress"},
			{netlink.HANDLE_MIN_EGRESS, "clsact/egress"},
		} {
			filters, err := h.FilterList(l, hook.parent)
			if err != nil {
				// No clsact qdisc on this device.
				continue
			}
			for _, f := range filters {
				bf, ok := f.(*netlink.BpfFilter)
				if !ok {
					continue
				}
				tc = append(tc, nsview.ProgramRecord{
					Kind:    "tc",
					DevName: attrs.Name,
					Ifindex: attrs.Index,
					Subtype: hook.name,
					Name:    programName(ebpf.ProgramID(bf.Id), bf.Name),
				})
			}
		}
	}

	// The prog query resolves ifindex in the calling thread's namespace.
	err = netns.Run(handle, func() error {
		for _, l := range links {
			attrs := l.Attrs()
			for _, hook := range []struct {
				attach ebpf.AttachType
				name   string
			}{
				{ebpf.AttachTCXIngress, "ingress"},
				{ebpf.AttachTCXEgress, "egress"},
			} {
				res, err := link.QueryPrograms(link.QueryOptions{Target: attrs.Index, Attach: hook.attach})
				if err != nil {
					// Kernels without TCX reject the query.
					continue
				}
				for _, p := range res.Programs {
					tcx = append(tcx, nsview.ProgramRecord{
						Kind:    "tcx",
						DevName: attrs.Name,
						Ifindex: attrs.Index,
						Subtype: hook.name,
						Name:    programName(p.ID, ""),
					})
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	records := append(xdp, tc...)
	return append(records, tcx...), nil
}

// programName looks up the kernel name of a program, falling back to
// fallback and then to "id<N>".
func programName(id ebpf.ProgramID, fallback string) string {
	if prog, err := ebpf.NewProgramFromID(id); err == nil {
		defer prog.Close()
		if info, err := prog.Info(); err == nil && info.Name != "" {
			return info.Name
		}
	}
	if fallback != "" {
		return fallback
	}
	return "id" + strconv.FormatUint(uint64(id), 10)
}

func xdpMode(mode uint32) string {
	switch mode {
	case xdpAttachedDrv:
		return "driver"
	case xdpAttachedSkb:
		return "generic"
	case xdpAttachedHw:
		return "offload"
	case xdpAttachedMulti:
		return "multi"
	default:
		return "unknown"
	}
}
