package packet

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/zxhio/pktprobe/internal/api"
	"github.com/zxhio/pktprobe/internal/model"
	"github.com/zxhio/pktprobe/pkg/fastpkt"
	"github.com/zxhio/pktprobe/pkg/utils"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Test-run captured packets through the loaded kernel program",
	GroupID: group.ID,
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.Open(pcapFile)
		utils.CheckErrorAndExit(err, "Open pcap failed")
		defer f.Close()

		var results []result
		err = readPcap(f, func(no int, data []byte) error {
			resp, err := utils.NewHTTPRequestMessage[model.RunPacketResp](
				api.APIPathRunPacket,
				api.GetBodyData,
				utils.WithReqAddr(api.DefaultAPIAddr),
				utils.WithReqMethod(http.MethodPost),
				utils.WithReqJSON(model.RunPacketReq{Hook: probeHook, Data: data}),
			)
			r := result{no: no, summary: fastpkt.Summary(data)}
			if err != nil {
				r.verdict = err.Error()
			} else {
				r.verdict, r.accept = verdictOf(probeHook, resp.Code)
			}
			results = append(results, r)
			return nil
		})
		utils.CheckErrorAndExit(err, "Read pcap failed")
		display(os.Stdout, probeHook, results)
	},
}
