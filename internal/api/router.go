package api

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultAPIAddr is where pktprobed listens unless told otherwise.
const DefaultAPIAddr = "127.0.0.1:9931"

const (
	APIPathQueryAttachments = "/api/attachments"
	APIPathAddAttachment    = "/api/attachments"
	APIPathDeleteAttachment = "/api/attachments/:name"

	APIPathRunPacket   = "/api/probe/run"
	APIPathVerifierLog = "/api/probe/verifier/:hook"
)

func SetAttachmentRouter(g *gin.Engine, impl AttachmentAPI) {
	w := httpAttachmentWrapper{impl: impl}
	g.GET(APIPathQueryAttachments, w.QueryAttachments)
	g.POST(APIPathAddAttachment, w.AddAttachment)
	g.DELETE(APIPathDeleteAttachment, w.DeleteAttachment)
}

func SetProbeRouter(g *gin.Engine, impl ProbeAPI) {
	w := httpProbeWrapper{impl: impl}
	g.POST(APIPathRunPacket, w.RunPacket)
	g.GET(APIPathVerifierLog, w.VerifierLog)
}

func InstantiateAPIURL(apiPath string, params map[string]string) string {
	for k, v := range params {
		apiPath = strings.ReplaceAll(apiPath, k, v)
	}
	return strings.TrimSuffix(apiPath, "/")
}
