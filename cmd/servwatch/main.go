// Command servwatch monitors a list of host:port services for uptime,
// appending one row per check to a CSV log and, when configured, to Postgres
// and a Pub/Sub topic.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/kestrelsec/netcontrol/pkg/monitor"
	"github.com/kestrelsec/netcontrol/pkg/probe"
	"github.com/kestrelsec/netcontrol/pkg/publish"
	"github.com/kestrelsec/netcontrol/pkg/report"
	pgstore "github.com/kestrelsec/netcontrol/pkg/storage/postgres"
	"github.com/kestrelsec/netcontrol/pkg/targets"
)

type config struct {
	ProjectID   string
	TopicID     string
	DatabaseURL string
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)

	var (
		serviceFile = flag.String("f", "services.txt", "File with one host:port entry per line.")
		interval    = flag.Duration("i", 30*time.Second, "Check interval.")
		output      = flag.String("o", "service_log.csv", "CSV log file (appended across runs).")
		concurrency = flag.Int("t", 10, "Maximum simultaneous checks.")
		timeout     = flag.Duration("timeout", 2*time.Second, "Per-check timeout.")
	)
	flag.Parse()

	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entries, err := targets.LoadFile(*serviceFile)
	if os.IsNotExist(err) {
		if werr := targets.WriteTemplate(*serviceFile, "Add one host:port entry per line, e.g. 192.168.1.1:22"); werr != nil {
			log.Fatalf("create %s: %v", *serviceFile, werr)
		}
		log.Fatalf("%s did not exist; a template was created, add services and re-run", *serviceFile)
	}
	if err != nil {
		log.Fatalf("load services: %v", err)
	}
	if len(entries) == 0 {
		log.Fatalf("%s has no services", *serviceFile)
	}

	units := make([]probe.Unit, 0, len(entries))
	for _, entry := range entries {
		svc, err := targets.ParseService(entry)
		if err != nil {
			log.Fatalf("parse services: %v", err)
		}
		units = append(units, probe.Unit{Address: svc.Host, Port: svc.Port, Kind: probe.TCPConnect, Timeout: *timeout})
	}

	sinks := []monitor.Sink{monitor.CSV(report.NewCSVAppender(*output, true))}

	if cfg.DatabaseURL != "" {
		pool, err := pgstore.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer pool.Close()
		if err := pgstore.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("db schema: %v", err)
		}
		sinks = append(sinks, monitor.Repo(pgstore.NewRepository(pool)))
		log.Print("postgres sink enabled")
	}

	if cfg.TopicID != "" {
		client, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			log.Fatalf("pubsub client: %v", err)
		}
		defer client.Close()
		sinks = append(sinks, monitor.Pub(publish.NewPubSubPublisher(client.Topic(cfg.TopicID))))
		log.Printf("pubsub sink enabled project=%s topic=%s", cfg.ProjectID, cfg.TopicID)
	}

	exec := probe.NewExecutor(probe.NewNetProber(nil), *concurrency)
	m := monitor.New(exec, units, *interval, sinks...)

	log.Printf("monitoring %d services every %s, logging to %s", len(units), *interval, *output)
	m.Run(ctx)
	log.Print("monitor stopped")
}

func loadConfig() config {
	return config{
		ProjectID:   getEnv("PUBSUB_PROJECT_ID", "test-project"),
		TopicID:     getEnv("PUBSUB_RESULT_TOPIC", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
