package api

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/zxhio/pktprobe/internal/errcode"
	"github.com/zxhio/pktprobe/internal/model"
	"github.com/zxhio/pktprobe/pkg/hook"
)

type ProbeAPI interface {
	RunPacket(kind hook.Kind, data []byte) (*model.RunPacketResp, error)
	VerifierLog(kind hook.Kind) (*model.VerifierLogResp, error)
}

type httpProbeWrapper struct {
	impl ProbeAPI
}

func (w httpProbeWrapper) RunPacket(c *gin.Context) {
	var req model.RunPacketReq
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, errcode.CodeInvalid, errors.Wrap(err, "json.Unmarshal"))
		return
	}

	resp, err := w.impl.RunPacket(req.Hook, req.Data)
	if err != nil {
		Error(c, errcode.CodeInternal, err)
		return
	}
	Success(c, resp)
}

func (w httpProbeWrapper) VerifierLog(c *gin.Context) {
	var kind hook.Kind
	if err := kind.Set(c.Param("hook")); err != nil {
		Error(c, errcode.CodeInvalid, err)
		return
	}

	resp, err := w.impl.VerifierLog(kind)
	if err != nil {
		Error(c, errcode.CodeInternal, err)
		return
	}
	Success(c, resp)
}
