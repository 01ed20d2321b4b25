package packet

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/zxhio/pktprobe/internal/api"
	"github.com/zxhio/pktprobe/internal/model"
	"github.com/zxhio/pktprobe/internal/probeprog"
	"github.com/zxhio/pktprobe/pkg/utils"
)

var verifyCmd = &cobra.Command{
	Use:     "verify",
	Short:   "Load the probe program and print the verifier log",
	GroupID: group.ID,
	Run: func(cmd *cobra.Command, args []string) {
		if daemon {
			resp, err := utils.NewHTTPRequestMessage[model.VerifierLogResp](
				api.InstantiateAPIURL(api.APIPathVerifierLog, map[string]string{":hook": probeHook.String()}),
				api.GetBodyData,
				utils.WithReqAddr(api.DefaultAPIAddr),
			)
			utils.CheckErrorAndExit(err, "Query verifier log failed")
			fmt.Println(resp.Log)
			if resp.Error != "" {
				utils.CheckErrorAndExit(errors.New(resp.Error), "Verify program failed")
			}
			return
		}

		log, err := probeprog.VerifierLog(probeHook, probeprog.WithTrace(trace))
		if log != "" {
			fmt.Println(log)
		}
		utils.CheckErrorAndExit(err, "Verify program failed")
	},
}
