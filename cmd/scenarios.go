package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fogsim/fogsim/sim/workload"
)

// scenariosCmd lists the built-in scenarios, or dumps one as topology YAML
var scenariosCmd = &cobra.Command{
	Use:   "scenarios [name]",
	Short: "List built-in scenarios or print one as topology YAML",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			listScenarios(os.Stdout)
			return
		}
		if err := dumpScenario(os.Stdout, args[0]); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func listScenarios(w io.Writer) {
	for _, name := range workload.ScenarioNames() {
		spec, _ := workload.Scenario(name)
		_, _ = fmt.Fprintf(w, "%-8s units=%d requests=%d instances=%d containers=%d ticks=%d\n",
			name, len(spec.Units), len(spec.Requests), len(spec.Instances), len(spec.Containers), spec.Ticks)
	}
}

// dumpScenario writes the named preset in the format LoadTopologySpec reads.
func dumpScenario(w io.Writer, name string) error {
	spec, err := workload.Scenario(name)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(spec); err != nil {
		return fmt.Errorf("encoding scenario %q: %w", name, err)
	}
	return enc.Close()
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
}
