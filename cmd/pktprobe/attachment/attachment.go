package attachment

import (
	"net/http"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"github.com/zxhio/pktprobe/internal/api"
	"github.com/zxhio/pktprobe/internal/model"
	"github.com/zxhio/pktprobe/pkg/hook"
	"github.com/zxhio/pktprobe/pkg/utils"
)

var group = &cobra.Group{ID: "attachment", Title: "Attachment commands:"}

var attachmentCmd = &cobra.Command{
	Use:   "attachment",
	Short: "Manage probe program attachments",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var attachCmd = &cobra.Command{
	Use:     "attach <interface>",
	Short:   "Attach probe program to interface",
	Aliases: []string{"attachment attach"},
	GroupID: group.ID,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := utils.NewHTTPRequestMessage[api.AddAttachmentResp](
			api.APIPathAddAttachment,
			api.GetBodyData,
			utils.WithReqAddr(api.DefaultAPIAddr),
			utils.WithReqMethod(http.MethodPost),
			utils.WithReqJSON(api.AddAttachmentReq{
				Interface: args[0],
				Hook:      attachHook,
				Mode:      attachMode,
				Direction: attachDirection,
			}),
		)
		utils.CheckErrorAndExit(err, "Add attachment failed")
		utils.VerbosePrintln("Attached %s to %s via %s, program id %d", resp.Hook, resp.Name, resp.LinkKind, resp.ProgramID)
	},
}

var detachCmd = &cobra.Command{
	Use:     "detach <interface>",
	Short:   "Detach probe program from interface",
	Aliases: []string{"attachment detach"},
	GroupID: group.ID,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, err := utils.NewHTTPRequestMessage[api.DeleteAttachmentResp](
			api.InstantiateAPIURL(api.APIPathDeleteAttachment, map[string]string{":name": args[0]}),
			api.GetBodyData,
			utils.WithReqAddr(api.DefaultAPIAddr),
			utils.WithReqMethod(http.MethodDelete),
			utils.WithReqQueryKV("hook", attachHook),
			utils.WithReqQueryKV("direction", attachDirection),
		)
		utils.CheckErrorAndExit(err, "Delete attachment failed")
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List attachments",
	Aliases: []string{"ls", "attachment list", "attachment ls"},
	GroupID: group.ID,
	Run: func(cmd *cobra.Command, args []string) {
		attachments, _, err := List(listAll, listPage, listLimit)
		utils.CheckErrorAndExit(err, "Query attachment failed")
		display(attachments)
	},
}

var (
	// attach, detach
	attachHook      = hook.KindXDP
	attachMode      hook.XDPAttachMode
	attachDirection hook.TCDirection

	// list
	listPage  int
	listLimit int
	listAll   bool
)

func init() {
	attachmentCmd.AddGroup(group)

	for _, cmd := range []*cobra.Command{attachCmd, detachCmd} {
		cmd.Flags().VarP(&attachHook, "hook", "k", "Hook to attach at, xdp or tc")
		cmd.Flags().VarP(&attachDirection, "direction", "d", "tc direction, ingress or egress")
	}
	attachCmd.Flags().VarP(&attachMode, "mode", "m", "XDP attach mode, generic, native or offload")

	listCmd.Flags().IntVar(&listPage, "page", 1, "Page number to list")
	listCmd.Flags().IntVar(&listLimit, "limit", 100, "Limit size per page")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "List all attachments")
}

func Export(parent *cobra.Command) {
	parent.AddGroup(group)
	parent.AddCommand(attachmentCmd, attachCmd, detachCmd, listCmd)
	attachmentCmd.AddCommand(attachCmd, detachCmd, listCmd)
}

func List(all bool, page, limit int) ([]*model.Attachment, int, error) {
	var (
		attachments []*model.Attachment
		total       int
	)

	if all {
		page = 1
		limit = 100
	}
	for {
		resp, err := utils.NewHTTPRequestMessage[api.QueryAttachmentsResp](
			api.APIPathQueryAttachments,
			api.GetBodyData,
			utils.WithReqAddr(api.DefaultAPIAddr),
			utils.WithReqQuery(api.QueryPage{Page: page, Limit: limit}.ToQuery()),
		)
		if err != nil {
			return nil, 0, err
		}

		total += len(resp.Data)
		attachments = append(attachments, resp.Data...)
		if total >= resp.Total || !all || len(resp.Data) == 0 {
			break
		}
		page++
	}
	return attachments, total, nil
}

func display(attachments []*model.Attachment) {
	data := [][]any{}
	for _, a := range attachments {
		mode, direction := "-", "-"
		switch a.Hook {
		case hook.KindXDP:
			mode = a.Mode.String()
			if mode == "" {
				mode = "auto"
			}
		case hook.KindTC:
			direction = a.Direction.String()
		}
		data = append(data, []any{a.Name, strconv.Itoa(a.Index), a.Hook.String(), mode, direction, a.LinkKind, strconv.FormatUint(uint64(a.ProgramID), 10)})
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.SeparatorsNone,
				Lines:      tw.LinesNone,
			},
		})),
	)
	table.Header("Name", "Index", "Hook", "Mode", "Direction", "Link", "Program")
	table.Bulk(data)
	table.Render()
}
