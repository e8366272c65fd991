package main

import (
	"errors"
	goflag "flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/refseg/refseg/pkg/align"
	"github.com/refseg/refseg/pkg/engine"
	"github.com/refseg/refseg/pkg/index"
)

var rootCmd = &cobra.Command{
	Use:   "refseg",
	Short: "Segment captured point clouds against a reference model",
	Long: `refseg assigns each point of a captured 3D point cloud to an element of
a reference model. It aligns the cloud to the model, classifies every
point by distance to the nearest model surface, and reports per-element
segment groups with residual and coverage statistics.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Expose the logging flags (-v, -logtostderr, ...) on every command.
	rootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)
}

// Exit codes: 1 for I/O and internal failures, 2 for unusable input
// (empty cloud, no usable reference geometry), 3 for alignment that
// failed to converge under --on-divergence=abort.
func exitCode(err error) int {
	var emptyCloud *engine.EmptyPointCloudError
	var emptyIndex *index.EmptyIndexError
	if errors.As(err, &emptyCloud) || errors.As(err, &emptyIndex) {
		return 2
	}
	var div *align.AlignmentDivergenceError
	if errors.As(err, &div) {
		return 3
	}
	return 1
}

func main() {
	// glog reads its configuration from the standard flag set.
	goflag.CommandLine.Parse(nil)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
