package service

import (
	"fmt"
	"testing"

	"github.com/cilium/ebpf"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxhio/pktprobe/internal/errcode"
	"github.com/zxhio/pktprobe/internal/model"
	"github.com/zxhio/pktprobe/internal/probe"
	"github.com/zxhio/pktprobe/pkg/hook"
)

type fakePrograms struct {
	runs     []hook.Kind
	rejected bool
}

func (p *fakePrograms) Program(hook.Kind) *ebpf.Program { return nil }

func (p *fakePrograms) Run(kind hook.Kind, data []byte) (uint32, error) {
	p.runs = append(p.runs, kind)
	if kind == hook.KindXDP {
		return probe.XDP(probe.NewXDPContext(data), nopLogger{}), nil
	}
	return uint32(probe.TC(probe.NewSKBContext(data), nopLogger{})), nil
}

func (p *fakePrograms) VerifierLog(kind hook.Kind) (string, error) {
	if p.rejected {
		return "R2 invalid mem access 'scalar'", errors.New("verifier: permission denied")
	}
	return fmt.Sprintf("%s: processed 42 insns", kind), nil
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any) {}

type fakeAttacher struct {
	links    map[string]int
	attached []string
	closed   []string
	failTC   bool
	noXDP    bool
}

func (f *fakeAttacher) LinkIndex(name string) (int, error) {
	idx, ok := f.links[name]
	if !ok {
		return 0, errors.Errorf("Link not found: %s", name)
	}
	return idx, nil
}

func (f *fakeAttacher) attach(kind, key string) *Attached {
	f.attached = append(f.attached, key)
	return &Attached{Kind: kind, ProgramID: 7, Close: func() error {
		f.closed = append(f.closed, key)
		return nil
	}}
}

func (f *fakeAttacher) AttachXDP(_ *ebpf.Program, name string, _ int, mode hook.XDPAttachMode) (*Attached, error) {
	if f.noXDP {
		return nil, errors.Wrap(ebpf.ErrNotSupported, "link.AttachXDP")
	}
	return f.attach(LinkKindXDP, name+"/xdp/"+mode.String()), nil
}

func (f *fakeAttacher) AttachTC(_ *ebpf.Program, index int, dir hook.TCDirection) (*Attached, error) {
	if f.failTC {
		return nil, errors.New("operation not supported")
	}
	return f.attach(LinkKindTCX, fmt.Sprintf("%d/tc/%s", index, dir)), nil
}

func newTestService(t *testing.T) (*AttachmentService, *fakeAttacher, *fakePrograms) {
	attacher := &fakeAttacher{links: map[string]int{"eth0": 2, "veth1": 5}}
	progs := &fakePrograms{}
	s, err := NewAttachmentService(progs, WithAttacher(attacher))
	require.NoError(t, err)
	return s, attacher, progs
}

func TestAddAttachment(t *testing.T) {
	s, attacher, _ := newTestService(t)

	require.NoError(t, s.AddAttachment(&model.Attachment{Name: "eth0", Hook: hook.KindXDP, Mode: hook.XDPAttachModeNative}))
	require.NoError(t, s.AddAttachment(&model.Attachment{Name: "eth0", Hook: hook.KindTC}))
	require.NoError(t, s.AddAttachment(&model.Attachment{Name: "eth0", Hook: hook.KindTC, Direction: hook.TCDirectionEgress}))
	assert.Equal(t, []string{"eth0/xdp/native", "2/tc/ingress", "2/tc/egress"}, attacher.attached)

	err := s.AddAttachment(&model.Attachment{Name: "eth0", Hook: hook.KindXDP})
	assert.True(t, errcode.Is(err, errcode.CodeExist), err)

	err = s.AddAttachment(&model.Attachment{Name: "eth9", Hook: hook.KindXDP})
	assert.True(t, errcode.Is(err, errcode.CodeNotExist), err)

	err = s.AddAttachment(&model.Attachment{Name: "eth0"})
	assert.True(t, errcode.Is(err, errcode.CodeInvalid), err)

	attachments, err := s.QueryAttachment("eth0")
	require.NoError(t, err)
	require.Len(t, attachments, 3)
	assert.Equal(t, 2, attachments[0].Index)
	assert.Equal(t, LinkKindXDP, attachments[0].LinkKind)
	assert.Equal(t, uint32(7), attachments[0].ProgramID)
	assert.Equal(t, LinkKindTCX, attachments[1].LinkKind)
}

func TestAddAttachmentNormalizes(t *testing.T) {
	s, _, _ := newTestService(t)

	xdp := &model.Attachment{Name: "veth1", Hook: hook.KindXDP, Direction: hook.TCDirectionEgress}
	require.NoError(t, s.AddAttachment(xdp))
	assert.Equal(t, hook.TCDirectionIngress, xdp.Direction)

	tc := &model.Attachment{Name: "veth1", Hook: hook.KindTC, Mode: hook.XDPAttachModeGeneric}
	require.NoError(t, s.AddAttachment(tc))
	assert.Equal(t, hook.XDPAttachModeUnspec, tc.Mode)
}

func TestAddAttachmentFailure(t *testing.T) {
	s, attacher, _ := newTestService(t)
	attacher.failTC = true

	err := s.AddAttachment(&model.Attachment{Name: "eth0", Hook: hook.KindTC})
	assert.True(t, errcode.Is(err, errcode.CodeInternal), err)

	attacher.noXDP = true
	err = s.AddAttachment(&model.Attachment{Name: "eth0", Hook: hook.KindXDP})
	assert.True(t, errcode.Is(err, errcode.CodeUnsupported), err)

	_, total, err := s.QueryAttachments(1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDeleteAttachment(t *testing.T) {
	s, attacher, _ := newTestService(t)

	require.NoError(t, s.AddAttachment(&model.Attachment{Name: "eth0", Hook: hook.KindTC, Direction: hook.TCDirectionEgress}))
	require.NoError(t, s.AddAttachment(&model.Attachment{Name: "eth0", Hook: hook.KindXDP}))

	err := s.DeleteAttachment("eth0", hook.KindTC, hook.TCDirectionIngress)
	assert.True(t, errcode.Is(err, errcode.CodeNotExist), err)

	require.NoError(t, s.DeleteAttachment("eth0", hook.KindTC, hook.TCDirectionEgress))
	assert.Equal(t, []string{"2/tc/egress"}, attacher.closed)

	// Direction means nothing for XDP.
	require.NoError(t, s.DeleteAttachment("eth0", hook.KindXDP, hook.TCDirectionEgress))

	_, err = s.QueryAttachment("eth0")
	assert.True(t, errcode.Is(err, errcode.CodeNotExist), err)
}

func TestQueryAttachments(t *testing.T) {
	s, _, _ := newTestService(t)

	for _, name := range []string{"eth0", "veth1"} {
		for _, kind := range []hook.Kind{hook.KindXDP, hook.KindTC} {
			require.NoError(t, s.AddAttachment(&model.Attachment{Name: name, Hook: kind}))
		}
	}

	page, total, err := s.QueryAttachments(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 1)
	assert.Equal(t, "veth1", page[0].Name)
	assert.Equal(t, hook.KindTC, page[0].Hook)
}

func TestClose(t *testing.T) {
	s, attacher, _ := newTestService(t)

	require.NoError(t, s.AddAttachment(&model.Attachment{Name: "eth0", Hook: hook.KindXDP}))
	require.NoError(t, s.AddAttachment(&model.Attachment{Name: "veth1", Hook: hook.KindTC}))
	require.NoError(t, s.Close())
	assert.Equal(t, []string{"5/tc/ingress", "eth0/xdp/"}, attacher.closed)

	_, total, _ := s.QueryAttachments(1, 10)
	assert.Zero(t, total)
}

func TestRunPacket(t *testing.T) {
	s, _, progs := newTestService(t)

	// 14 byte frame tagged ARP: accepted without touching the payload.
	frame := make([]byte, 14)
	frame[12], frame[13] = 0x08, 0x06

	resp, err := s.RunPacket(hook.KindXDP, frame)
	require.NoError(t, err)
	assert.Equal(t, "XDP_PASS", resp.Verdict)
	assert.Equal(t, probe.XDPPass, resp.Code)

	resp, err = s.RunPacket(hook.KindTC, frame)
	require.NoError(t, err)
	assert.Equal(t, "TC_ACT_PIPE", resp.Verdict)

	_, err = s.RunPacket(hook.KindTC, frame[:10])
	assert.True(t, errcode.Is(err, errcode.CodeInvalid), err)

	_, err = s.RunPacket(hook.KindUnspec, frame)
	assert.True(t, errcode.Is(err, errcode.CodeInvalid), err)

	assert.Equal(t, []hook.Kind{hook.KindXDP, hook.KindTC}, progs.runs)
}

func TestRunPacketTruncatedIPv4(t *testing.T) {
	s, _, progs := newTestService(t)

	// Tagged IPv4, cut inside the network header.
	frame := make([]byte, 34)
	frame[12], frame[13] = 0x08, 0x00

	for _, n := range []int{14, 24, 33} {
		resp, err := s.RunPacket(hook.KindXDP, frame[:n])
		require.NoError(t, err)
		assert.Equal(t, "XDP_ABORTED", resp.Verdict)

		_, err = s.RunPacket(hook.KindTC, frame[:n])
		assert.True(t, errcode.Is(err, errcode.CodeInvalid), err)
		assert.ErrorContains(t, err, "tc test run needs at least 34")
	}

	// A full header with an unset protocol is dropped.
	resp, err := s.RunPacket(hook.KindTC, frame)
	require.NoError(t, err)
	assert.Equal(t, "TC_ACT_SHOT", resp.Verdict)

	assert.Equal(t, []hook.Kind{hook.KindXDP, hook.KindXDP, hook.KindXDP, hook.KindTC}, progs.runs)
}

func TestVerifierLog(t *testing.T) {
	s, _, _ := newTestService(t)

	resp, err := s.VerifierLog(hook.KindTC)
	require.NoError(t, err)
	assert.Equal(t, "tc: processed 42 insns", resp.Log)

	_, err = s.VerifierLog(hook.KindUnspec)
	assert.True(t, errcode.Is(err, errcode.CodeInvalid), err)
}

func TestVerifierLogRejected(t *testing.T) {
	s, _, progs := newTestService(t)
	progs.rejected = true

	resp, err := s.VerifierLog(hook.KindXDP)
	require.NoError(t, err)
	assert.Equal(t, "R2 invalid mem access 'scalar'", resp.Log)
	assert.Equal(t, "verifier: permission denied", resp.Error)
}
