package persist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"pinwall/svc/util"
)

// writeRenders dumps the ledger and metrics as formatted text next to the
// snapshot, for the host to read directly. Failures are logged and ignored;
// these files are diagnostic output, not durable state.
func (m *Manager) writeRenders(save StateSave) {
	dir := filepath.Dir(m.path)
	if err := renderMessages(filepath.Join(dir, "messages.txt"), save); err != nil {
		util.Warn().Err(err).Msg("failed to render message dump")
	}
	if err := renderMetrics(filepath.Join(dir, "metrics.txt"), save); err != nil {
		util.Warn().Err(err).Msg("failed to render metrics dump")
	}
}

func renderMessages(path string, save StateSave) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)

	ips := make([]string, 0, len(save.Messages))
	for ip := range save.Messages {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	for _, ip := range ips {
		fmt.Fprintf(bw, "%s:\n", ip)
		for _, msg := range save.Messages[ip].Messages {
			fmt.Fprintf(bw, "\t[ %s ]: %s\n", msg.Timestamp.Local().Format("2006-1-2: 3:04:05PM"), msg.Text)
		}
	}
	return bw.Flush()
}

func renderMetrics(path string, save StateSave) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)

	var reqCount uint64
	for _, rec := range save.UniqueUsers {
		reqCount += rec.RequestCount
	}
	fmt.Fprintf(bw, "Unique view count: %d\n", len(save.UniqueUsers))
	fmt.Fprintf(bw, "Request count: %d\n", reqCount)

	ips := make([]string, 0, len(save.UniqueUsers))
	for ip := range save.UniqueUsers {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	for _, ip := range ips {
		fmt.Fprintf(bw, "%s:\n\t%d\n", ip, save.UniqueUsers[ip].RequestCount)
	}
	return bw.Flush()
}
