// replay re-runs thrust allocation over a recorded cycle log and reports
// how the logged and recomputed forces compare. Useful after retuning the
// allocator (damping, weights, bounds) to see what a dive would have done.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"

	"gca-engine/alloc"
	"gca-engine/config"
	"gca-engine/record"
	"gca-engine/vehicle"
)

func main() {
	logPath := flag.String("log", "", "Input cycle log")
	cfgPath := flag.String("config", "gca.yaml", "Configuration with thruster geometry")
	outPath := flag.String("out", "replay.csv", "Output CSV path")
	flag.Parse()

	if *logPath == "" {
		fmt.Println("--log required")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Printf("config load failed: %v\n", err)
		os.Exit(1)
	}

	parser := record.NewParser(*logPath)
	if err := parser.Parse(); err != nil {
		fmt.Printf("parse log failed: %v\n", err)
		os.Exit(1)
	}
	if parser.Thrusters != len(cfg.Thrusters) {
		fmt.Printf("log has %d thrusters, config has %d\n", parser.Thrusters, len(cfg.Thrusters))
		os.Exit(1)
	}

	ac, err := alloc.NewConfig(cfg.Thrusters, cfg.Alloc)
	if err != nil {
		fmt.Printf("thruster geometry invalid: %v\n", err)
		os.Exit(1)
	}
	allocator := alloc.New(ac)

	f, err := os.Create(*outPath)
	if err != nil {
		fmt.Printf("create output failed: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	hdr := []string{"ts", "mode", "fault", "status"}
	for i := range cfg.Thrusters {
		hdr = append(hdr, fmt.Sprintf("f%d_logged", i), fmt.Sprintf("f%d_replay", i))
	}
	w.Write(hdr)

	var (
		cycles    int
		partial   int
		saturated int
		sumSq     float64
		sumN      int
	)
	for _, rec := range parser.Records {
		cmd, _ := allocator.Allocate(rec.Wrench, rec.Stamp)

		row := []string{
			strconv.FormatFloat(float64(rec.Stamp.UnixNano())/1e9, 'f', 3, 64),
			rec.Mode.String(),
			rec.Fault.String(),
			cmd.Status.String(),
		}
		for i := range cmd.Forces {
			row = append(row,
				strconv.FormatFloat(rec.Forces[i], 'f', 3, 64),
				strconv.FormatFloat(cmd.Forces[i], 'f', 3, 64))
			d := cmd.Forces[i] - rec.Forces[i]
			sumSq += d * d
			sumN++
			if atBound(ac, i, cmd.Forces[i]) {
				saturated++
			}
		}
		w.Write(row)

		cycles++
		if cmd.Status == vehicle.AllocPartial {
			partial++
		}
	}

	rmse := 0.0
	if sumN > 0 {
		rmse = math.Sqrt(sumSq / float64(sumN))
	}
	fmt.Printf("cycles:        %d over %s\n", cycles, parser.Duration())
	fmt.Printf("partial:       %d (%.1f%%)\n", partial, pct(partial, cycles))
	fmt.Printf("saturated:     %d thruster-cycles (%.1f%%)\n", saturated, pct(saturated, sumN))
	fmt.Printf("force rmse:    %.4f N vs logged\n", rmse)
	fmt.Printf("output:        %s\n", *outPath)
}

func atBound(ac *alloc.Config, i int, f float64) bool {
	const eps = 1e-9
	t := ac.Thrusters[i]
	return f <= t.Min+eps || f >= t.Max-eps
}

func pct(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return 100 * float64(n) / float64(d)
}
