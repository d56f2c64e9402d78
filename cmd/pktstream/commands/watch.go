package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/livp123/pktstream/internal/capture"
	"github.com/livp123/pktstream/internal/utils/fmtutil"
	"github.com/nxadm/tail"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Print records from a capture file",
	// Short: 打印抓包文件中的记录
	Long: `Read an existing capture file, print each record and a summary of the
top source addresses and protocols. With --follow, keep reading as the file grows.
读取抓包文件并打印每条记录及统计摘要；使用 --follow 持续跟踪文件。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")
		top, _ := cmd.Flags().GetInt("top")
		filterSrc, _ := cmd.Flags().GetString("filter")

		filter, err := capture.NewFilter(filterSrc)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, args[0], follow, top, filter, cmd.OutOrStdout())
	},
}

func init() {
	watchCmd.Flags().BoolP("follow", "f", false, "Keep reading as the file grows")
	watchCmd.Flags().IntP("top", "n", capture.DefaultTopN, "Number of source addresses in the summary")
	watchCmd.Flags().String("filter", "", "expr filter applied to each record")
}

func runWatch(ctx context.Context, path string, follow bool, top int, filter *capture.Filter, out io.Writer) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: !follow,
		Poll:      true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return err
	}
	defer t.Cleanup()

	tracker := capture.NewTracker()
	skipped := 0

loop:
	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			break loop
		case line, ok := <-t.Lines:
			if !ok {
				break loop
			}
			if line.Err != nil {
				continue
			}
			r, ok := capture.Parse(line.Text)
			if !ok {
				skipped++
				continue
			}
			if !filter.Match(r) {
				continue
			}
			tracker.AddRecord(r)
			printRecord(out, r)
		}
	}

	printSummary(out, tracker, top, skipped)
	return nil
}

func printRecord(out io.Writer, r capture.Record) {
	fmt.Fprintf(out, "#%-6s %-15s -> %-15s %-8s %s\n", r.ID, r.SrcIP, r.DstIP, capture.ProtocolLabel(r.Protocol), r.Hostname)
}

func printSummary(out io.Writer, tracker *capture.Tracker, top, skipped int) {
	fmt.Fprintf(out, "\n📊 %s records (%d malformed lines skipped)\n", fmtutil.FormatCount(tracker.Total()), skipped)
	fmt.Fprintln(out, "Top source addresses:")
	for _, c := range tracker.TopAddresses(top) {
		fmt.Fprintf(out, "  %-15s %d\n", c.Key, c.Count)
	}
	fmt.Fprintln(out, "Protocols:")
	for _, c := range sortedCounts(tracker.ProtocolSummary()) {
		fmt.Fprintf(out, "  %-15s %d\n", c.Key, c.Count)
	}
}

func sortedCounts(m map[string]uint64) []capture.Count {
	out := make([]capture.Count, 0, len(m))
	for k, v := range m {
		out = append(out, capture.Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
