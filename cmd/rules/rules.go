// Package rules implements `prowl rules`: load a ruleset and print each
// signature's selected fast pattern, flags and chop range.
package rules

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/endorses/prowl/internal/pkg/detect"
	"github.com/endorses/prowl/internal/pkg/fastpattern"
	"github.com/endorses/prowl/internal/pkg/ruleset"
	"github.com/endorses/prowl/internal/pkg/sigs"
)

var RulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect fast-pattern selection for a ruleset",
	Long: `Load a ruleset and print, per signature and buffer context, which
content pattern was selected as the fast pattern, its flags and its
strength score. Rejected signatures are listed with the violated
constraint.`,
	RunE: run,
}

var rulesFile string

func run(cmd *cobra.Command, args []string) error {
	reg := sigs.NewContextRegistry()
	loaded, dropped, err := ruleset.LoadFile(rulesFile, reg)
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

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "SID\tGROUP\tCONTEXT\tFAST PATTERN\tFLAGS\tSCORE")
	for _, sig := range loaded {
		if _, ok := engine.Signature(sig.SID); !ok {
			continue
		}
		for _, entry := range reg.Entries() {
			cp := sig.FastPattern(entry.Context)
			if cp == nil {
				continue
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%q\t%s\t%d\n",
				sig.SID, groupName(sig.Group), entry.Name,
				cp.NeedleBytes(), flags(cp), fastpattern.Score(cp.Bytes))
		}
	}
	w.Flush()

	for _, d := range dropped {
		fmt.Fprintf(os.Stderr, "dropped sid %d: %v\n", d.SID, d.Err)
	}
	for _, r := range report.Rejections {
		fmt.Fprintf(os.Stderr, "rejected sid %d: %v\n", r.SID, r.Reason)
	}
	fmt.Fprintf(os.Stderr, "build %s: %d loaded, %d rejected, %d groups\n",
		report.BuildID, report.Loaded, len(report.Rejections)+len(dropped), report.Groups)
	return nil
}

func groupName(g string) string {
	if g == "" {
		return "default"
	}
	return g
}

func flags(cp *sigs.ContentPattern) string {
	out := "fast_pattern"
	if cp.Fast.Only {
		out += ",only"
	}
	if cp.Fast.Chop != nil {
		out += ",chop:" + strconv.Itoa(int(cp.Fast.Chop.Offset)) + "," + strconv.Itoa(int(cp.Fast.Chop.Length))
	}
	if cp.Negated {
		out += ",negated"
	}
	return out
}

func init() {
	RulesCmd.Flags().StringVarP(&rulesFile, "rules", "r", "", "ruleset YAML file")
	RulesCmd.MarkFlagRequired("rules")
}
