// Command portscan scans one or more targets for open TCP ports, grabbing
// service banners, and writes the report to CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kestrelsec/netcontrol/pkg/ports"
	"github.com/kestrelsec/netcontrol/pkg/probe"
	"github.com/kestrelsec/netcontrol/pkg/report"
	"github.com/kestrelsec/netcontrol/pkg/targets"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)

	var (
		targetFile  = flag.String("f", "targets.txt", "File with one IP or hostname per line.")
		portSpec    = flag.String("p", "", "Comma-separated ports or ranges (e.g. 22,80,1000-2000). Empty scans all 65535 ports.")
		fast        = flag.Bool("fast", false, "Scan only the well-known port preset.")
		output      = flag.String("o", "", "CSV output file (required).")
		concurrency = flag.Int("t", 100, "Maximum simultaneous probes.")
		timeout     = flag.Duration("timeout", time.Second, "Per-probe timeout.")
		filter      = flag.String("filter", "", "Only report banners containing this keyword.")
		noBanner    = flag.Bool("no-banner", false, "Skip banner grabbing; plain connect scan.")
	)
	flag.Parse()

	if *output == "" {
		fmt.Fprintln(os.Stderr, "usage: portscan -f targets.txt -o report.csv [-p ports] [-fast]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entries, err := targets.LoadFile(*targetFile)
	if os.IsNotExist(err) {
		if werr := targets.WriteTemplate(*targetFile, "Add one IP or hostname per line"); werr != nil {
			log.Fatalf("create %s: %v", *targetFile, werr)
		}
		log.Fatalf("%s did not exist; a template was created, add targets and re-run", *targetFile)
	}
	if err != nil {
		log.Fatalf("load targets: %v", err)
	}
	if len(entries) == 0 {
		log.Fatalf("%s has no targets", *targetFile)
	}

	expander := targets.Expander{OnSkip: func(entry string, err error) {
		log.Printf("skipping %s: %v", entry, err)
	}}
	addrs, err := expander.Expand(ctx, strings.Join(entries, ","))
	if err != nil {
		log.Fatalf("expand targets: %v", err)
	}
	if len(addrs) == 0 {
		log.Fatal("no targets resolved")
	}

	spec := *portSpec
	if *fast {
		spec = ports.FastSpec
	}
	portSet, err := ports.Parse(spec)
	if err != nil {
		log.Fatalf("parse ports: %v", err)
	}
	if spec == "" {
		log.Printf("no ports specified, scanning all %d TCP ports; this may take a while", len(portSet))
	}

	kind := probe.TCPBanner
	if *noBanner {
		kind = probe.TCPConnect
	}
	units := make([]probe.Unit, 0, len(addrs)*len(portSet))
	for _, addr := range addrs {
		for _, p := range portSet {
			units = append(units, probe.Unit{Address: addr, Port: p, Kind: kind, Timeout: *timeout})
		}
	}

	log.Printf("scanning %d targets on %d ports each", len(addrs), len(portSet))

	exec := probe.NewExecutor(probe.NewNetProber(nil), *concurrency)
	rep := exec.Run(ctx, units, func(res probe.Result) {
		if res.Reachable {
			log.Printf("%s:%d open | %s | %.60s", res.Unit.Address, res.Unit.Port, probe.ServiceName(res.Unit.Port), res.Detail)
		}
	})

	open := report.Reachable(rep.Results)
	if *filter != "" {
		open = report.FilterBanner(open, *filter)
	}

	if err := report.WriteScanCSV(*output, open); err != nil {
		log.Fatalf("write report: %v", err)
	}

	log.Printf("scan %s complete in %s: %d open ports across %d targets, report saved to %s",
		rep.ID, rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond), len(open), len(addrs), *output)
}
