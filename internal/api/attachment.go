package api

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/zxhio/pktprobe/internal/errcode"
	"github.com/zxhio/pktprobe/internal/model"
	"github.com/zxhio/pktprobe/pkg/hook"
)

type AddAttachmentReq struct {
	Interface string             `json:"interface" binding:"required"`
	Hook      hook.Kind          `json:"hook"`
	Mode      hook.XDPAttachMode `json:"mode,omitempty"`
	Direction hook.TCDirection   `json:"direction,omitempty"`
}

type AddAttachmentResp model.Attachment

type DeleteAttachmentResp struct{}

type QueryAttachmentsResp QueryPageResp[*model.Attachment]

type AttachmentAPI interface {
	AddAttachment(*model.Attachment) error
	DeleteAttachment(name string, kind hook.Kind, dir hook.TCDirection) error
	QueryAttachment(name string) ([]*model.Attachment, error)
	QueryAttachments(page, limit int) ([]*model.Attachment, int, error)
}

type httpAttachmentWrapper struct {
	impl AttachmentAPI
}

func (w httpAttachmentWrapper) AddAttachment(c *gin.Context) {
	var req AddAttachmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, errcode.CodeInvalid, errors.Wrap(err, "json.Unmarshal"))
		return
	}
	if req.Hook == hook.KindUnspec {
		req.Hook = hook.KindXDP
	}

	a := &model.Attachment{
		Name:      req.Interface,
		Hook:      req.Hook,
		Mode:      req.Mode,
		Direction: req.Direction,
	}
	if err := w.impl.AddAttachment(a); err != nil {
		Error(c, errcode.CodeInternal, err)
		return
	}
	Success(c, (*AddAttachmentResp)(a))
}

func (w httpAttachmentWrapper) DeleteAttachment(c *gin.Context) {
	var (
		kind = hook.KindXDP
		dir  hook.TCDirection
	)
	if s := c.Query("hook"); s != "" {
		if err := kind.Set(s); err != nil {
			Error(c, errcode.CodeInvalid, err)
			return
		}
	}
	if err := dir.Set(c.Query("direction")); err != nil {
		Error(c, errcode.CodeInvalid, err)
		return
	}

	if err := w.impl.DeleteAttachment(c.Param("name"), kind, dir); err != nil {
		Error(c, errcode.CodeInternal, err)
		return
	}
	Success(c, DeleteAttachmentResp{})
}

func (w httpAttachmentWrapper) QueryAttachments(c *gin.Context) {
	var resp QueryAttachmentsResp

	if name := c.Query("name"); name != "" {
		attachments, err := w.impl.QueryAttachment(name)
		if err != nil {
			Error(c, errcode.CodeInternal, err)
			return
		}
		resp.Data = attachments
		resp.Total = len(attachments)
	} else {
		resp.QueryPage = NewPageFromRequest(c.Request)
		attachments, total, err := w.impl.QueryAttachments(resp.Page, resp.Limit)
		if err != nil {
			Error(c, errcode.CodeInternal, err)
			return
		}
		resp.Data = attachments
		resp.Total = total
	}
	Success(c, resp)
}
