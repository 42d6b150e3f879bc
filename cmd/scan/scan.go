// Package scan implements `prowl scan`: run a compiled ruleset over the
// packets of a pcap file and print the candidate signatures per packet.
package scan

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/endorses/prowl/internal/pkg/detect"
	"github.com/endorses/prowl/internal/pkg/httpbuf"
	"github.com/endorses/prowl/internal/pkg/logger"
	"github.com/endorses/prowl/internal/pkg/ruleset"
	"github.com/endorses/prowl/internal/pkg/sigs"
)

var ScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a pcap file against a ruleset",
	Long: `Read packets from a pcap file, extract the per-context buffers from
each application payload, and print the signatures whose fast pattern
occurred. The output is the candidate worklist a full evaluator would
receive; it can contain false positives, never false negatives.`,
	RunE: run,
}

var (
	rulesFile string
	pcapFile  string
	group     string
)

func run(cmd *cobra.Command, args []string) error {
	reg := sigs.NewContextRegistry()
	loaded, _, err := ruleset.LoadFile(rulesFile, reg)
	if err != nil {
		return err
	}

	engine := detect.NewEngine(reg, detect.Options{
		Backend:         viper.GetString("mpm.backend"),
		CaseInsensitive: viper.GetBool("mpm.nocase"),
	})
	report, err := engine.Reload(loaded)
	if err != nil {
		return err
	}
	logger.Info("scanning", "pcap", pcapFile, "build_id", report.BuildID, "signatures", report.Loaded)

	f, err := os.Open(pcapFile)
	if err != nil {
		return fmt.Errorf("opening pcap: %w", err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading pcap: %w", err)
	}

	packetNum := 0
	for {
		data, _, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading packet %d: %w", packetNum+1, err)
		}
		packetNum++

		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.Default)
		app := packet.ApplicationLayer()
		if app == nil {
			continue
		}

		bufs := httpbuf.Extract(app.Payload())
		candidates, err := engine.Scan(group, bufs)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			continue
		}

		fmt.Printf("packet %d: candidates %v\n", packetNum, candidates)
		for _, sid := range candidates {
			if sig, ok := engine.Signature(sid); ok && sig.Msg != "" {
				fmt.Printf("  sid %d: %s\n", sid, sig.Msg)
			}
		}
	}
	return nil
}

func init() {
	ScanCmd.Flags().StringVarP(&rulesFile, "rules", "r", "", "ruleset YAML file")
	ScanCmd.Flags().StringVarP(&pcapFile, "read-file", "f", "", "pcap file to scan")
	ScanCmd.Flags().StringVarP(&group, "group", "g", "", "signature group to scan (default group when empty)")
	ScanCmd.MarkFlagRequired("rules")
	ScanCmd.MarkFlagRequired("read-file")
}
