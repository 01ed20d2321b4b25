package packet

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/zxhio/pktprobe/internal/probe"
	"github.com/zxhio/pktprobe/pkg/fastpkt"
	"github.com/zxhio/pktprobe/pkg/hook"
	"github.com/zxhio/pktprobe/pkg/utils"
)

var walkCmd = &cobra.Command{
	Use:     "walk",
	Short:   "Walk captured packets in userspace and print verdicts",
	GroupID: group.ID,
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.Open(pcapFile)
		utils.CheckErrorAndExit(err, "Open pcap failed")
		defer f.Close()

		var results []result
		err = readPcap(f, func(no int, data []byte) error {
			results = append(results, walkPacket(probeHook, no, data))
			return nil
		})
		utils.CheckErrorAndExit(err, "Read pcap failed")
		display(os.Stdout, probeHook, results)
	},
}

func walkPacket(kind hook.Kind, no int, data []byte) result {
	var (
		log  valueLogger
		code uint32
	)
	switch kind {
	case hook.KindTC:
		code = uint32(probe.TC(probe.NewSKBContext(data), &log))
	default:
		code = probe.XDP(probe.NewXDPContext(data), &log)
	}

	verdict, accept := verdictOf(kind, code)
	return result{
		no:      no,
		summary: fastpkt.Summary(data),
		verdict: verdict,
		accept:  accept,
		values:  log.values,
	}
}
