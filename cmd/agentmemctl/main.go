// Command agentmemctl is an operator CLI over an agentmem Engine: the
// maintenance-cycle triggers (decay, summarize, consolidate, reflect)
// and tenant inspection commands (stats, clear) spec.md §7/§9 name as
// operable outside of the library API.
//
// Grounded on _examples/liliang-cn-sqvect/cmd/sqvect/main.go's cobra
// idiom: package-level command vars, flags wired in init(), a
// JSON-or-table output toggle, and a per-invocation setup helper that
// builds the engine fresh from the environment.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/oceanbase/agentmem/pkg/engine"
	"github.com/oceanbase/agentmem/pkg/maintenance"
	"github.com/oceanbase/agentmem/pkg/reflection"
)

var (
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "agentmemctl",
	Short: "Operate an agentmem engine: trigger maintenance cycles and inspect tenants",
}

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Run one importance-decay cycle across every known tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, _ := cmd.Flags().GetFloat64("rate")
		accessStats, _ := cmd.Flags().GetBool("access-stats")

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		worker := maintenance.NewDecayWorker(eng.Records())
		stats, err := worker.RunDecayCycle(cmd.Context(), nil, rate, accessStats)
		if err != nil {
			return err
		}
		return printResult(stats)
	},
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate <tenant> <project> <agent>",
	Short: "Consolidate a tenant/project/agent's working-memory promotion candidates into long-term memory",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		asSemantic, _ := cmd.Flags().GetBool("semantic")
		tombstone, _ := cmd.Flags().GetBool("tombstone")

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		n, err := eng.Consolidate(cmd.Context(), args[0], args[1], args[2], asSemantic, tombstone)
		if err != nil {
			return err
		}
		return printResult(map[string]int{"consolidated": n})
	},
}

var reflectCmd = &cobra.Command{
	Use:   "reflect <tenant> <project> <agent>",
	Short: "Run one dreaming cycle: generate a reflection from recent high-importance memories",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		lookbackHours, _ := cmd.Flags().GetInt("lookback-hours")
		minImportance, _ := cmd.Flags().GetFloat64("min-importance")
		maxSamples, _ := cmd.Flags().GetInt("max-samples")

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		reflector := reflection.NewEngine(eng.Records(), eng.LLMProvider())
		worker := maintenance.NewDreamingWorker(eng.Records(), reflector, true)
		results, err := worker.RunDreamingCycle(cmd.Context(), args[0], args[1], args[2], lookbackHours, minImportance, maxSamples)
		if err != nil {
			return err
		}
		return printResult(map[string]int{"reflections_generated": len(results)})
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <tenant> <project> <agent>",
	Short: "Merge aging episodic clusters into LLM-synthesized summaries",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxTokens, _ := cmd.Flags().GetInt("max-tokens")

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		worker := maintenance.NewSummarizationWorker(eng.Records(), eng.LLMProvider())
		n, err := worker.RunSummarizationCycle(cmd.Context(), args[0], args[1], args[2], 0, maxTokens)
		if err != nil {
			return err
		}
		return printResult(map[string]int{"summaries_produced": n})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <tenant>",
	Short: "Report per-layer memory counts for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		stats, err := eng.GetStatistics(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(stats)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear <tenant>",
	Short: "Delete every memory belonging to a tenant across storage, vector index, and graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to clear tenant %q without --yes", args[0])
		}

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := eng.Clear(cmd.Context(), args[0]); err != nil {
			return err
		}
		return printResult(map[string]string{"cleared": args[0]})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON instead of a plain summary")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	decayCmd.Flags().Float64("rate", 0.01, "base decay rate applied per cycle")
	decayCmd.Flags().Bool("access-stats", true, "slow decay for recently-accessed memories")

	consolidateCmd.Flags().Bool("semantic", true, "write the consolidated record to the semantic layer instead of episodic")
	consolidateCmd.Flags().Bool("tombstone", true, "tombstone the source records after consolidation")

	reflectCmd.Flags().Int("lookback-hours", 24, "how far back to look for candidate memories")
	reflectCmd.Flags().Float64("min-importance", 0.6, "minimum importance a memory needs to seed a reflection")
	reflectCmd.Flags().Int("max-samples", 20, "maximum number of seed memories to consider")

	summarizeCmd.Flags().Int("max-tokens", 0, "maximum token budget per summary (0 uses the worker default)")

	clearCmd.Flags().Bool("yes", false, "confirm the destructive clear")

	rootCmd.AddCommand(decayCmd, consolidateCmd, reflectCmd, summarizeCmd, statsCmd, clearCmd)
}

// openEngine builds a fresh *engine.Engine from the environment for a
// single CLI invocation, following the teacher's openStore-per-call
// pattern rather than keeping a long-lived daemon handle.
func openEngine() (*engine.Engine, error) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg, err := engine.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return engine.NewEngine(cfg)
}

func printResult(v any) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Printf("%+v\n", v)
	return nil
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("agentmemctl failed")
	}
}
