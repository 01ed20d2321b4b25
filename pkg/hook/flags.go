package hook

import (
	"encoding/json"
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind is the hook point a probe program attaches to. All flag types here
// implement pflag.Value.
type Kind int

const (
	KindUnspec Kind = iota
	KindXDP
	KindTC
)

const (
	KindStrXDP = "xdp"
	KindStrTC  = "tc"
)

var kindLookup = map[string]Kind{
	KindStrXDP: KindXDP,
	KindStrTC:  KindTC,
}

var kindStrLookup = map[Kind]string{
	KindXDP: KindStrXDP,
	KindTC:  KindStrTC,
}

func (k Kind) String() string { return kindStrLookup[k] }
func (k *Kind) Type() string  { return "hook" }

func (k *Kind) Set(s string) error {
	kind, ok := kindLookup[s]
	if !ok {
		return fmt.Errorf("invalid hook: %s", s)
	}
	*k = kind
	return nil
}

func (k Kind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return k.Set(s)
}

type XDPAttachMode int

const (
	XDPAttachModeUnspec  XDPAttachMode = 0
	XDPAttachModeGeneric XDPAttachMode = unix.XDP_FLAGS_SKB_MODE
	XDPAttachModeNative  XDPAttachMode = unix.XDP_FLAGS_DRV_MODE
	XDPAttachModeOffload XDPAttachMode = unix.XDP_FLAGS_HW_MODE
)

const (
	XDPAttachModeStrUnspec  = ""
	XDPAttachModeStrGeneric = "generic"
	XDPAttachModeStrNative  = "native"
	XDPAttachModeStrOffload = "offload"
)

var attachModeLookup = map[string]XDPAttachMode{
	XDPAttachModeStrUnspec:  XDPAttachModeUnspec,
	XDPAttachModeStrGeneric: XDPAttachModeGeneric,
	XDPAttachModeStrNative:  XDPAttachModeNative,
	XDPAttachModeStrOffload: XDPAttachModeOffload,
}

var attachModeStrLookup = map[XDPAttachMode]string{
	XDPAttachModeUnspec:  XDPAttachModeStrUnspec,
	XDPAttachModeGeneric: XDPAttachModeStrGeneric,
	XDPAttachModeNative:  XDPAttachModeStrNative,
	XDPAttachModeOffload: XDPAttachModeStrOffload,
}

func (m XDPAttachMode) String() string { return attachModeStrLookup[m] }
func (m *XDPAttachMode) Type() string  { return "mode" }

func (m *XDPAttachMode) Set(s string) error {
	mode, ok := attachModeLookup[s]
	if !ok {
		return fmt.Errorf("invalid xdp attach mode: %s", s)
	}
	*m = mode
	return nil
}

func (m XDPAttachMode) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

func (m *XDPAttachMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return m.Set(s)
}

// TCDirection selects the clsact side a tc program runs on.
type TCDirection int

const (
	TCDirectionIngress TCDirection = iota
	TCDirectionEgress
)

const (
	TCDirectionStrIngress = "ingress"
	TCDirectionStrEgress  = "egress"
)

func (d TCDirection) String() string {
	if d == TCDirectionEgress {
		return TCDirectionStrEgress
	}
	return TCDirectionStrIngress
}

func (d *TCDirection) Type() string { return "direction" }

func (d *TCDirection) Set(s string) error {
	switch s {
	case TCDirectionStrIngress, "":
		*d = TCDirectionIngress
	case TCDirectionStrEgress:
		*d = TCDirectionEgress
	default:
		return fmt.Errorf("invalid tc direction: %s", s)
	}
	return nil
}

func (d TCDirection) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *TCDirection) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.Set(s)
}
