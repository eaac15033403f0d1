// Command portwatch scans a target's ports and reports drift against a
// persisted baseline: newly opened ports and ports that have closed.
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

	"github.com/kestrelsec/netcontrol/pkg/baseline"
	"github.com/kestrelsec/netcontrol/pkg/ports"
	"github.com/kestrelsec/netcontrol/pkg/probe"
	"github.com/kestrelsec/netcontrol/pkg/report"
	"github.com/kestrelsec/netcontrol/pkg/targets"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)

	var (
		portSpec     = flag.String("p", "", "Comma-separated ports or ranges (required).")
		baselinePath = flag.String("b", "portwatch_baseline.json", "Baseline file.")
		output       = flag.String("o", "", "CSV diff output file (optional).")
		concurrency  = flag.Int("t", 100, "Maximum simultaneous probes.")
		timeout      = flag.Duration("timeout", time.Second, "Per-probe timeout.")
		saveNew      = flag.Bool("save-new", false, "Overwrite the baseline with the current state after the scan.")
	)
	flag.Parse()

	if flag.NArg() != 1 || *portSpec == "" {
		fmt.Fprintln(os.Stderr, "usage: portwatch -p 22,80,1000-1100 [-b baseline.json] [-o diff.csv] [-save-new] <target>")
		os.Exit(2)
	}
	target := flag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	portSet, err := ports.Parse(*portSpec)
	if err != nil {
		log.Fatalf("parse ports: %v", err)
	}

	expander := targets.Expander{OnSkip: func(entry string, err error) {
		log.Printf("skipping %s: %v", entry, err)
	}}
	addrs, err := expander.Expand(ctx, target)
	if err != nil {
		log.Fatalf("expand target: %v", err)
	}
	if len(addrs) == 0 {
		log.Fatalf("could not resolve target %s", target)
	}
	addr := addrs[0]

	units := make([]probe.Unit, 0, len(portSet))
	for _, p := range portSet {
		units = append(units, probe.Unit{Address: addr, Port: p, Kind: probe.TCPConnect, Timeout: *timeout})
	}

	log.Printf("scanning %s on %d ports", target, len(portSet))
	exec := probe.NewExecutor(probe.NewNetProber(nil), *concurrency)
	rep := exec.Run(ctx, units, nil)
	open := report.OpenPorts(rep.Results)
	log.Printf("found %d open ports", len(open))

	mapping, existed, err := baseline.Load(*baselinePath)
	if err != nil {
		log.Fatalf("load baseline: %v", err)
	}
	_, known := mapping[target]

	if !existed || !known {
		// First scan of this target defines the baseline; reporting every
		// port as NEW would only train operators to ignore alarms.
		mapping.Set(target, open, time.Now())
		if err := baseline.Save(mapping, *baselinePath); err != nil {
			log.Fatalf("save baseline: %v", err)
		}
		log.Printf("initial baseline for %s: %d ports recorded in %s", target, len(open), *baselinePath)
		return
	}

	prev := mapping.Get(target)
	d := baseline.Compute(prev.OpenPorts, open)
	if d.Empty() {
		log.Printf("no changes against baseline from %s", prev.LastUpdated.Format(time.RFC3339))
	} else {
		log.Printf("new open ports: %v", d.Added)
		log.Printf("closed ports: %v", d.Removed)
	}

	if *output != "" {
		if err := report.WriteDiffCSV(*output, d); err != nil {
			log.Fatalf("write diff: %v", err)
		}
		log.Printf("diff saved to %s", *output)
	}

	if *saveNew {
		mapping.Set(target, open, time.Now())
		if err := baseline.Save(mapping, *baselinePath); err != nil {
			log.Fatalf("save baseline: %v", err)
		}
		log.Printf("baseline updated: %s", *baselinePath)
	}
}
