package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/cluster"
	"github.com/fogsim/fogsim/sim/trace"
	"github.com/fogsim/fogsim/sim/workload"
)

const (
	defaultSeed     = 42
	defaultTicks    = 5
	defaultScenario = "onco"
	envPrefix       = "FOGSIM"
)

var (
	// CLI flags for the run
	seed             int64  // Master seed for every randomness subsystem
	ticks            int    // Number of ticks to simulate (0 = topology default)
	logLevel         string // Log verbosity level
	scenarioName     string // Built-in scenario preset
	topologyPath     string // Topology YAML file (overrides --scenario)
	policyConfigPath string // Policy bundle YAML file
	outputPath       string // JSONL tick record destination ("" or "-" = stdout)
	metricsPath      string // Prometheus textfile destination ("" = disabled)

	// Policy overrides
	weightAdapter      string  // Weight adapter name
	placementPolicy    string  // Placement policy name
	costLens           string  // Reporting cost lens name
	jitterName         string  // Workload jitter name
	capacityPolicy     string  // Capacity policy between ticks
	retentionThreshold float64 // Retention cost threshold
	pressureHigh       float64 // Autoscaler scale-up threshold
	pressureLow        float64 // Autoscaler scale-down threshold
	onlinePolicy       bool    // Fold each tick's placements into the learned prior

	// Decision trace
	traceLevel      string // Trace verbosity level
	counterfactualK int    // Number of counterfactual candidates per placement
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "fogsim",
	Short: "Discrete-tick simulator for edge and fog workload placement",
}

// runCmd executes the simulation using parameters from flags, environment and files
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the placement simulation",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		v, err := newSettings(cmd)
		if err != nil {
			logrus.Fatalf("binding flags: %v", err)
		}

		spec, err := loadTopologySpec(v.GetString("scenario"), v.GetString("topology"))
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		topo, err := spec.Build()
		if err != nil {
			logrus.Fatalf("invalid topology: %v", err)
		}
		policy, err := buildPolicy(spec, v.GetString("policy-config"), v)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		config, runSeed := buildConfig(spec, policy, v)
		if !trace.IsValidTraceLevel(string(config.Trace.Level)) {
			logrus.Fatalf("Unknown trace level %q. Valid: none, decisions", config.Trace.Level)
		}
		if !workload.IsValidJitter(config.Jitter) {
			logrus.Fatalf("Unknown jitter %q. Valid: %s", config.Jitter, strings.Join(workload.ValidJitterNames(), ", "))
		}

		logrus.Infof("Starting simulation %q: ticks=%d seed=%d units=%d requests=%d weights=%s placement=%s lens=%s capacity=%s",
			topo.Name, config.Ticks, runSeed, len(topo.Units), len(topo.Requests),
			policy.WeightAdapter, policy.Placement, policy.CostLens, policy.CapacityPolicy)

		s := cluster.NewSimulator(config, topo, sim.NewPartitionedRNG(sim.NewSimulationKey(runSeed)))
		records := s.Run()

		if err := emitRecords(v.GetString("output"), records); err != nil {
			logrus.Fatalf("%v", err)
		}
		metrics := cluster.CollectRunMetrics(records)
		logRunMetrics(metrics)
		if st := s.Trace(); st != nil {
			logTraceSummary(trace.Summarize(st))
		}
		if path := v.GetString("metrics-path"); path != "" {
			exporter := cluster.NewExporter()
			exporter.Observe(metrics)
			if err := exporter.WriteTextfile(path); err != nil {
				logrus.Fatalf("%v", err)
			}
			logrus.Infof("Metrics written to %s", path)
		}

		logrus.Info("Simulation complete.")
	},
}

// newSettings layers FOGSIM_* environment variables under the command's
// flags. Explicitly changed flags win over the environment.
func newSettings(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return v, nil
}

// loadTopologySpec returns the topology from path, or the named scenario
// when path is empty. An empty scenario means the default preset.
func loadTopologySpec(scenario, path string) (*workload.TopologySpec, error) {
	if path != "" {
		spec, err := workload.LoadTopologySpec(path)
		if err != nil {
			return nil, fmt.Errorf("loading topology: %w", err)
		}
		return spec, nil
	}
	if scenario == "" {
		scenario = defaultScenario
	}
	return workload.Scenario(scenario)
}

// buildPolicy resolves the policy: the topology's policy section, then the
// policy file, then flag and environment overrides.
func buildPolicy(spec *workload.TopologySpec, policyPath string, v *viper.Viper) (sim.PolicyConfig, error) {
	bundle := &sim.PolicyBundle{}
	bundle.Merge(spec.Policy)
	if policyPath != "" {
		fromFile, err := sim.LoadPolicyBundle(policyPath)
		if err != nil {
			return sim.PolicyConfig{}, fmt.Errorf("loading policy config: %w", err)
		}
		bundle.Merge(fromFile)
	}
	bundle.Merge(policyOverrides(v))
	if err := bundle.Validate(); err != nil {
		return sim.PolicyConfig{}, fmt.Errorf("invalid policy: %w", err)
	}
	return bundle.Resolve(), nil
}

// policyOverrides collects the policy settings given by flag or environment.
func policyOverrides(v *viper.Viper) *sim.PolicyBundle {
	b := &sim.PolicyBundle{}
	if v.IsSet("weights") {
		b.WeightAdapter = v.GetString("weights")
	}
	if v.IsSet("placement") {
		b.Placement = v.GetString("placement")
	}
	if v.IsSet("lens") {
		b.CostLens = v.GetString("lens")
	}
	if v.IsSet("capacity-policy") {
		b.CapacityPolicy = v.GetString("capacity-policy")
	}
	setFloat := func(key string, dst **float64) {
		if v.IsSet(key) {
			f := v.GetFloat64(key)
			*dst = &f
		}
	}
	setFloat("retention-threshold", &b.RetentionThreshold)
	setFloat("pressure-high", &b.PressureHigh)
	setFloat("pressure-low", &b.PressureLow)
	if v.IsSet("online-policy") {
		b.OnlinePolicy = v.GetBool("online-policy")
	}
	return b
}

// buildConfig assembles the simulator config and the effective seed.
// Flags and environment override the topology's ticks, seed and jitter.
func buildConfig(spec *workload.TopologySpec, policy sim.PolicyConfig, v *viper.Viper) (cluster.Config, int64) {
	config := cluster.Config{
		Ticks:  spec.Ticks,
		Jitter: spec.Jitter,
		Policy: policy,
		Trace: trace.TraceConfig{
			Level:           trace.TraceLevel(v.GetString("trace-level")),
			CounterfactualK: v.GetInt("counterfactual-k"),
		},
	}
	if v.IsSet("ticks") || config.Ticks == 0 {
		config.Ticks = v.GetInt("ticks")
	}
	if config.Ticks <= 0 {
		config.Ticks = defaultTicks
	}
	if v.IsSet("jitter") {
		config.Jitter = v.GetString("jitter")
	}

	runSeed := v.GetInt64("seed")
	if !v.IsSet("seed") && spec.Seed != 0 {
		runSeed = spec.Seed
	}
	return config, runSeed
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerRunFlags defines the run command's flags on fs
func registerRunFlags(fs *pflag.FlagSet) {
	fs.Int64Var(&seed, "seed", defaultSeed, "Master seed for all randomness")
	fs.IntVar(&ticks, "ticks", 0, "Number of ticks to simulate (0 = topology default)")
	fs.StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Input
	fs.StringVar(&scenarioName, "scenario", defaultScenario, "Built-in scenario ("+strings.Join(workload.ScenarioNames(), ", ")+")")
	fs.StringVar(&topologyPath, "topology", "", "Topology YAML file; overrides --scenario")
	fs.StringVar(&policyConfigPath, "policy-config", "", "Policy bundle YAML file")

	// Policy overrides
	fs.StringVar(&weightAdapter, "weights", "", "Weight adapter ("+strings.Join(sim.ValidWeightAdapterNames(), ", ")+")")
	fs.StringVar(&placementPolicy, "placement", "", "Placement policy ("+strings.Join(sim.ValidPlacementPolicyNames(), ", ")+")")
	fs.StringVar(&costLens, "lens", "", "Reporting cost lens ("+strings.Join(sim.ValidCostLensNames(), ", ")+")")
	fs.StringVar(&jitterName, "jitter", "", "Workload jitter ("+strings.Join(workload.ValidJitterNames(), ", ")+")")
	fs.StringVar(&capacityPolicy, "capacity-policy", "", "Capacity between ticks (persist, reset)")
	fs.Float64Var(&retentionThreshold, "retention-threshold", sim.DefaultRetentionThreshold, "Retention cost threshold")
	fs.Float64Var(&pressureHigh, "pressure-high", sim.DefaultPressureHigh, "Autoscaler scale-up pressure threshold")
	fs.Float64Var(&pressureLow, "pressure-low", sim.DefaultPressureLow, "Autoscaler scale-down pressure threshold")
	fs.BoolVar(&onlinePolicy, "online-policy", false, "Update the learned placement prior after every tick")

	// Output
	fs.StringVar(&outputPath, "output", "", "JSON Lines tick record file (default stdout)")
	fs.StringVar(&metricsPath, "metrics-path", "", "Write run metrics as a Prometheus textfile")
	fs.StringVar(&traceLevel, "trace-level", "none", "Decision trace level (none, decisions)")
	fs.IntVar(&counterfactualK, "counterfactual-k", 0, "Counterfactual candidates recorded per placement")
}

// init sets up CLI flags and subcommands
func init() {
	registerRunFlags(runCmd.Flags())

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
