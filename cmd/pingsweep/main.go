// Command pingsweep probes every usable host in a subnet for liveness and
// writes the results to CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrelsec/netcontrol/pkg/pingcmd"
	"github.com/kestrelsec/netcontrol/pkg/probe"
	"github.com/kestrelsec/netcontrol/pkg/report"
	"github.com/kestrelsec/netcontrol/pkg/targets"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)

	var (
		output      = flag.String("o", "", "Output CSV file (optional).")
		concurrency = flag.Int("t", 100, "Maximum simultaneous probes.")
		timeout     = flag.Duration("timeout", time.Second, "Per-host echo timeout.")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: pingsweep [-o live_hosts.csv] [-t 100] <subnet, e.g. 192.168.1.0/24>")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var expander targets.Expander
	addrs, err := expander.Expand(ctx, flag.Arg(0))
	if err != nil {
		log.Fatalf("expand subnet: %v", err)
	}

	units := make([]probe.Unit, 0, len(addrs))
	for _, addr := range addrs {
		units = append(units, probe.Unit{Address: addr, Kind: probe.ICMPEcho, Timeout: *timeout})
	}

	log.Printf("sweeping %d hosts with %d workers", len(units), *concurrency)

	exec := probe.NewExecutor(probe.NewNetProber(pingcmd.New()), *concurrency)
	rep := exec.Run(ctx, units, func(res probe.Result) {
		if res.Reachable {
			log.Printf("%s is up (%.2f ms)", res.Unit.Address, float64(res.Latency.Microseconds())/1000.0)
		}
	})

	if *output != "" {
		if err := report.WriteLivenessCSV(*output, rep.Results); err != nil {
			log.Fatalf("write report: %v", err)
		}
		log.Printf("results saved to %s", *output)
	}

	log.Printf("sweep %s complete in %s: %d/%d hosts alive",
		rep.ID, rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond), rep.ReachableCount, rep.TotalUnits)
}
