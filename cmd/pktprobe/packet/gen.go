package packet

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zxhio/pktprobe/pkg/utils"
)

var genCmd = &cobra.Command{
	Use:     "gen",
	Short:   "Write a pcap of sample packets covering every probe branch",
	GroupID: group.ID,
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.Create(pcapFile)
		utils.CheckErrorAndExit(err, "Create pcap failed")
		defer f.Close()

		samples := Samples()
		err = writePcap(f, samples, time.Now())
		utils.CheckErrorAndExit(err, "Write pcap failed")
		utils.VerbosePrintln("Wrote %d packets to %s", len(samples), pcapFile)
	},
}
