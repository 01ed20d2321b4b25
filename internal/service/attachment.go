package service

import (
	"slices"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zxhio/pktprobe/internal/errcode"
	"github.com/zxhio/pktprobe/internal/model"
	"github.com/zxhio/pktprobe/internal/probeprog"
	"github.com/zxhio/pktprobe/pkg/hook"
	"github.com/zxhio/pktprobe/pkg/utils"
)

// Programs are the loaded probe programs, shared by all attachments.
type Programs interface {
	Program(kind hook.Kind) *ebpf.Program
	Run(kind hook.Kind, data []byte) (uint32, error)
	VerifierLog(kind hook.Kind) (string, error)
}

type AttachmentService struct {
	progs    Programs
	attacher Attacher

	mu          *sync.RWMutex
	attachments []*Attachment
}

type ServiceOpt func(*AttachmentService)

func WithAttacher(a Attacher) ServiceOpt {
	return func(s *AttachmentService) { s.attacher = a }
}

func NewAttachmentService(progs Programs, opts ...ServiceOpt) (*AttachmentService, error) {
	s := &AttachmentService{
		progs:    progs,
		attacher: kernelAttacher{},
		mu:       &sync.RWMutex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type Attachment struct {
	*model.Attachment
	closers utils.NamedClosers
	log     *logrus.Entry
}

func (a *Attachment) Close() error {
	a.closers.Close(&utils.CloseOpt{
		ReverseOrder: true,
		Output:       a.log.Info,
		ErrorOutput:  a.log.Error,
	})
	return nil
}

func (s *AttachmentService) AddAttachment(a *model.Attachment) error {
	l := logrus.WithFields(logrus.Fields{"name": a.Name, "hook": a.Hook})
	l.WithFields(logrus.Fields{"mode": a.Mode, "direction": a.Direction}).Info("Adding attachment")

	if a.Hook != hook.KindXDP && a.Hook != hook.KindTC {
		return errcode.New(errcode.CodeInvalid, "hook: %s", a.Hook)
	}
	prog := s.progs.Program(a.Hook)
	if a.Hook != hook.KindTC {
		a.Direction = hook.TCDirectionIngress
	}
	if a.Hook != hook.KindXDP {
		a.Mode = hook.XDPAttachModeUnspec
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.Key()
	if slices.ContainsFunc(s.attachments, func(att *Attachment) bool { return att.Key() == key }) {
		return errcode.New(errcode.CodeExist, "attachment: %s", key)
	}

	index, err := s.attacher.LinkIndex(a.Name)
	if err != nil {
		return errcode.NewError(errcode.CodeNotExist, err)
	}
	a.Index = index

	var attached *Attached
	switch a.Hook {
	case hook.KindXDP:
		attached, err = s.attacher.AttachXDP(prog, a.Name, index, a.Mode)
	case hook.KindTC:
		attached, err = s.attacher.AttachTC(prog, index, a.Direction)
	}
	if err != nil {
		l.WithError(err).Error("Fail to add attachment")
		if errors.Is(err, ebpf.ErrNotSupported) {
			return errcode.NewError(errcode.CodeUnsupported, err)
		}
		return errcode.NewError(errcode.CodeInternal, err)
	}
	a.LinkKind = attached.Kind
	a.ProgramID = attached.ProgramID

	s.attachments = append(s.attachments, &Attachment{
		Attachment: a,
		closers:    utils.NamedClosers{{Name: "link(" + attached.Kind + ")", Close: attached.Close}},
		log:        l,
	})
	l.WithFields(logrus.Fields{"link": a.LinkKind, "prog_id": a.ProgramID}).Info("Added attachment")
	return nil
}

func (s *AttachmentService) DeleteAttachment(name string, kind hook.Kind, dir hook.TCDirection) error {
	key := (&model.Attachment{Name: name, Hook: kind, Direction: dir}).Key()
	logrus.WithField("key", key).Info("Deleting attachment")

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.attachments, func(att *Attachment) bool { return att.Key() == key })
	if idx == -1 {
		return errcode.New(errcode.CodeNotExist, "attachment: %s", key)
	}

	s.attachments[idx].Close()
	s.attachments = slices.Delete(s.attachments, idx, idx+1)

	logrus.WithField("key", key).Info("Deleted attachment")
	return nil
}

// QueryAttachment returns every attachment on the named interface.
func (s *AttachmentService) QueryAttachment(name string) ([]*model.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*model.Attachment
	for _, a := range s.attachments {
		if a.Name == name {
			res = append(res, a.Attachment)
		}
	}
	if len(res) == 0 {
		return nil, errcode.New(errcode.CodeNotExist, "attachment: %s", name)
	}
	return res, nil
}

func (s *AttachmentService) QueryAttachments(page, limit int) ([]*model.Attachment, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sls, total := utils.LimitPageSlice(s.attachments, page, limit)

	attachments := make([]*model.Attachment, 0, len(sls))
	for _, a := range sls {
		attachments = append(attachments, a.Attachment)
	}
	return attachments, total, nil
}

// RunPacket passes data once through the loaded program for kind.
func (s *AttachmentService) RunPacket(kind hook.Kind, data []byte) (*model.RunPacketResp, error) {
	if kind != hook.KindXDP && kind != hook.KindTC {
		return nil, errcode.New(errcode.CodeInvalid, "hook: %s", kind)
	}
	if n := probeprog.MinRunLen(kind, data); len(data) < n {
		return nil, errcode.New(errcode.CodeInvalid, "packet of %d bytes, %s test run needs at least %d", len(data), kind, n)
	}

	code, err := s.progs.Run(kind, data)
	if err != nil {
		return nil, errcode.NewError(errcode.CodeInternal, err)
	}
	return &model.RunPacketResp{Verdict: probeprog.VerdictString(kind, code), Code: code}, nil
}

func (s *AttachmentService) VerifierLog(kind hook.Kind) (*model.VerifierLogResp, error) {
	if kind != hook.KindXDP && kind != hook.KindTC {
		return nil, errcode.New(errcode.CodeInvalid, "hook: %s", kind)
	}
	// A rejected program still has a log, and it is the one worth reading.
	log, err := s.progs.VerifierLog(kind)
	resp := &model.VerifierLogResp{Hook: kind, Log: log}
	if err != nil {
		resp.Error = err.Error()
		if log == "" {
			return nil, errcode.NewError(errcode.CodeInternal, err)
		}
		logrus.WithField("hook", kind).WithError(err).Warn("Program rejected by verifier")
	}
	return resp, nil
}

// Close detaches everything, most recent first.
func (s *AttachmentService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.attachments) - 1; i >= 0; i-- {
		s.attachments[i].Close()
	}
	s.attachments = nil
	return nil
}
