package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zxhio/pktprobe/cmd/pktprobe/attachment"
	"github.com/zxhio/pktprobe/cmd/pktprobe/packet"
	"github.com/zxhio/pktprobe/pkg/builder"
	"github.com/zxhio/pktprobe/pkg/utils"
)

var (
	verbose bool
	version bool
)

const logoAscii = `
       |   |
 _ \ | / _ \ _ \ _ \ _ \ -_)
.__/_\_\_|  _|\___/.__/\___|
_|             _|         `

var rootCmd = &cobra.Command{
	Use:   "pktprobe",
	Short: "pktprobe command line tool\n\n" + color.HiBlueString(logoAscii),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.SetVerbose(verbose)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if version {
			fmt.Println(builder.BuildInfo())
			os.Exit(0)
		}
		cmd.Help()
	},
}

func main() {
	cobra.EnableTraverseRunHooks = true
	attachment.Export(rootCmd)
	packet.Export(rootCmd)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.Flags().BoolVarP(&version, "version", "V", false, "Print version")
	rootCmd.Execute()
}
