package model

import (
	"github.com/zxhio/pktprobe/pkg/hook"
)

// Attachment is the probe program bound to one hook of an interface. An
// interface carries at most one attachment per hook and direction.
type Attachment struct {
	Name      string             `json:"name"`
	Index     int                `json:"index,omitempty"`
	Hook      hook.Kind          `json:"hook"`
	Mode      hook.XDPAttachMode `json:"mode,omitempty"`
	Direction hook.TCDirection   `json:"direction,omitempty"`
	LinkKind  string             `json:"link_kind,omitempty"` // xdp, tcx or netlink
	ProgramID uint32             `json:"program_id,omitempty"`
}

// Key identifies the attachment among all attachments of the daemon.
func (a *Attachment) Key() string {
	if a.Hook == hook.KindTC {
		return a.Name + "/" + a.Hook.String() + "/" + a.Direction.String()
	}
	return a.Name + "/" + a.Hook.String()
}

// RunPacketReq asks the daemon to test-run one packet.
type RunPacketReq struct {
	Hook hook.Kind `json:"hook"`
	Data []byte    `json:"data"` // base64 in JSON
}

type RunPacketResp struct {
	Verdict string `json:"verdict"`
	Code    uint32 `json:"code"`
}

type VerifierLogResp struct {
	Hook  hook.Kind `json:"hook"`
	Log   string    `json:"log"`
	Error string    `json:"error,omitempty"`
}
