package packet

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"github.com/zxhio/pktprobe/internal/probeprog"
	"github.com/zxhio/pktprobe/pkg/hook"
)

var group = &cobra.Group{ID: "probe", Title: "Probe commands:"}

var (
	probeHook = hook.KindXDP
	pcapFile  string
	trace     bool
	daemon    bool
)

func init() {
	for _, cmd := range []*cobra.Command{runCmd, walkCmd, verifyCmd} {
		cmd.Flags().VarP(&probeHook, "hook", "k", "Hook whose verdicts to produce, xdp or tc")
	}
	for _, cmd := range []*cobra.Command{runCmd, walkCmd} {
		cmd.Flags().StringVarP(&pcapFile, "pcap", "r", "", "Ethernet pcap file to read")
		cmd.MarkFlagRequired("pcap")
	}
	genCmd.Flags().StringVarP(&pcapFile, "out", "w", "pktprobe.pcap", "pcap file to write")
	verifyCmd.Flags().BoolVar(&trace, "trace", true, "Verify the program with its trace calls")
	verifyCmd.Flags().BoolVar(&daemon, "daemon", false, "Ask the daemon instead of loading locally")
}

func Export(parent *cobra.Command) {
	parent.AddGroup(group)
	parent.AddCommand(runCmd, walkCmd, genCmd, verifyCmd)
}

// result is one row of run and walk output.
type result struct {
	no      int
	summary string
	verdict string
	accept  bool
	values  []uint64
}

// valueLogger collects the payload values logged by the walk.
type valueLogger struct {
	values []uint64
}

func (l *valueLogger) Infof(format string, args ...any) {
	for _, arg := range args {
		if v, ok := arg.(uint64); ok {
			l.values = append(l.values, v)
		}
	}
}

func display(w io.Writer, kind hook.Kind, results []result) {
	data := [][]any{}
	for _, r := range results {
		verdict := color.RedString(r.verdict)
		if r.accept {
			verdict = color.GreenString(r.verdict)
		}

		var values []string
		for _, v := range r.values {
			values = append(values, fmt.Sprintf("%#016x", v))
		}
		data = append(data, []any{fmt.Sprint(r.no), r.summary, verdict, strings.Join(values, " ")})
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.SeparatorsNone,
				Lines:      tw.LinesNone,
			},
		})),
	)
	table.Header("No.", "Packet", strings.ToUpper(kind.String()), "Payload")
	table.Bulk(data)
	table.Render()
}

func verdictOf(kind hook.Kind, code uint32) (string, bool) {
	return probeprog.VerdictString(kind, code), probeprog.Accepted(kind, code)
}
