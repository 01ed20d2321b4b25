package service

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"github.com/zxhio/pktprobe/pkg/hook"
	"github.com/zxhio/pktprobe/pkg/netutil"
	"golang.org/x/sys/unix"
)

const (
	LinkKindXDP     = "xdp"
	LinkKindTCX     = "tcx"
	LinkKindNetlink = "netlink"
)

// Attached is a program bound to an interface hook.
type Attached struct {
	Kind      string
	ProgramID uint32
	Close     func() error
}

// Attacher binds programs to interface hooks.
type Attacher interface {
	LinkIndex(name string) (int, error)
	AttachXDP(prog *ebpf.Program, name string, index int, mode hook.XDPAttachMode) (*Attached, error)
	AttachTC(prog *ebpf.Program, index int, dir hook.TCDirection) (*Attached, error)
}

type kernelAttacher struct{}

func (kernelAttacher) LinkIndex(name string) (int, error) {
	l, err := netlink.LinkByName(name)
	if err != nil {
		return 0, errors.Wrap(err, "netlink.LinkByName")
	}
	logrus.WithFields(logrus.Fields{
		"iface": l.Attrs().Name,
		"index": l.Attrs().Index,
		"type":  l.Type(),
	}).Info("Detected network link")
	return l.Attrs().Index, nil
}

func (kernelAttacher) AttachXDP(prog *ebpf.Program, name string, index int, mode hook.XDPAttachMode) (*Attached, error) {
	// Virtual devices rarely have a native driver hook.
	if mode == hook.XDPAttachModeUnspec && !netutil.IsPhyNic(name) {
		mode = hook.XDPAttachModeGeneric
	}

	l, err := link.AttachXDP(link.XDPOptions{
		Program:   prog,
		Interface: index,
		Flags:     link.XDPAttachFlags(mode),
	})
	if err != nil {
		return nil, errors.Wrap(err, "link.AttachXDP")
	}
	return &Attached{Kind: LinkKindXDP, ProgramID: programID(prog), Close: l.Close}, nil
}

func (kernelAttacher) AttachTC(prog *ebpf.Program, index int, dir hook.TCDirection) (*Attached, error) {
	attach := ebpf.AttachTCXIngress
	if dir == hook.TCDirectionEgress {
		attach = ebpf.AttachTCXEgress
	}

	l, err := link.AttachTCX(link.TCXOptions{
		Program:   prog,
		Attach:    attach,
		Interface: index,
	})
	if err == nil {
		return &Attached{Kind: LinkKindTCX, ProgramID: programID(prog), Close: l.Close}, nil
	}
	if !errors.Is(err, ebpf.ErrNotSupported) {
		return nil, errors.Wrap(err, "link.AttachTCX")
	}

	logrus.WithError(err).WithField("index", index).Info("TCX not supported, using clsact qdisc")
	return attachClsact(prog, index, dir)
}

// attachClsact installs a direct-action filter on the clsact qdisc of the
// interface, adding the qdisc when missing. Closing removes only the
// filter.
func attachClsact(prog *ebpf.Program, index int, dir hook.TCDirection) (*Attached, error) {
	qdisc := &netlink.Clsact{
		QdiscAttrs: netlink.QdiscAttrs{
			LinkIndex: index,
			Handle:    netlink.MakeHandle(0xffff, 0),
			Parent:    netlink.HANDLE_CLSACT,
		},
	}
	if err := netlink.QdiscAdd(qdisc); err != nil && !errors.Is(err, unix.EEXIST) {
		return nil, errors.Wrap(err, "netlink.QdiscAdd")
	}

	parent := uint32(netlink.HANDLE_MIN_INGRESS)
	if dir == hook.TCDirectionEgress {
		parent = netlink.HANDLE_MIN_EGRESS
	}
	filter := &netlink.BpfFilter{
		FilterAttrs: netlink.FilterAttrs{
			LinkIndex: index,
			Parent:    parent,
			Handle:    1,
			Protocol:  unix.ETH_P_ALL,
			Priority:  1,
		},
		Fd:           prog.FD(),
		Name:         "pktprobe",
		DirectAction: true,
	}
	if err := netlink.FilterAdd(filter); err != nil {
		return nil, errors.Wrap(err, "netlink.FilterAdd")
	}

	return &Attached{
		Kind:      LinkKindNetlink,
		ProgramID: programID(prog),
		Close:     func() error { return errors.Wrap(netlink.FilterDel(filter), "netlink.FilterDel") },
	}, nil
}

func programID(prog *ebpf.Program) uint32 {
	info, err := prog.Info()
	if err != nil {
		return 0
	}
	id, _ := info.ID()
	return uint32(id)
}
