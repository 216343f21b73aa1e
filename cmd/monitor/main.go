// Command monitor re-evaluates a saved run's stage results offline. It
// reads the stage map from a JSON file (as written by the pipeline's
// -report flag or captured from the audit stream) and prints the full
// monitoring report.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline/monitor"
)

func main() {
	inputPath := flag.String("input", "", "path to a JSON file with stage results")
	ceiling := flag.Duration("duration-ceiling", 30*time.Minute, "duration warning threshold")
	withResources := flag.Bool("resources", false, "include a host resource snapshot")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: monitor -input <stage-results.json>")
		os.Exit(2)
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading input: %v\n", err)
		os.Exit(1)
	}

	results, err := decodeStageResults(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing input: %v\n", err)
		os.Exit(1)
	}

	opts := []monitor.Option{monitor.WithDurationCeiling(*ceiling)}
	if *withResources {
		opts = append(opts, monitor.WithResourceSnapshot(monitor.HostSnapshot))
	}
	report := monitor.NewEngine(opts...).Evaluate(results)

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

// decodeStageResults accepts either a bare stage map or a full run report
// containing a "stages" field.
func decodeStageResults(data []byte) (map[string]pipeline.StageResult, error) {
	var wrapped struct {
		Stages map[string]pipeline.StageResult `json:"stages"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Stages) > 0 {
		return wrapped.Stages, nil
	}

	var results map[string]pipeline.StageResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, err
	}
	return results, nil
}
