package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ghalamif/SensorFlow"
)

const defaultConfigPath = "/etc/sensorflow/config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "create":
		err = createCommand(os.Args[2:], os.Stdin)
	case "read":
		err = readCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("sensorflow %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := sensorflow.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func createCommand(args []string, stdin io.Reader) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sensorflow.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !*yes {
		fmt.Printf("This will create (and possibly overwrite) the %s database for %d metric(s). Continue? [y/N] ",
			cfg.Sink.Kind, len(cfg.MetricKeys()))
		answer, _ := bufio.NewReader(stdin).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
		default:
			fmt.Println("aborted")
			return nil
		}
	}

	rt, err := sensorflow.NewRuntime(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	defer rt.Shutdown(ctx)

	if err := rt.CreateDatabase(ctx); err != nil {
		return err
	}
	fmt.Println("database created")
	return nil
}

func readCommand(args []string) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sensorflow.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rt, err := sensorflow.NewRuntime(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer rt.Shutdown(context.Background())

	specs := rt.Sensors()
	for i, r := range rt.ReadSensors(ctx) {
		fmt.Println(formatReading(specs[i], r))
	}
	return nil
}

func formatReading(spec sensorflow.SensorSpec, r sensorflow.Reading) string {
	if math.IsNaN(r.Value) {
		return fmt.Sprintf("%s: Unknown", spec.Label())
	}
	return fmt.Sprintf("%s: %.2f°%s", spec.Label(), r.Value, spec.Unit)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := sensorflow.LoadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return sensorflow.WriteEnvReport()
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsMetrics = []string{
	"sensorflow_samples_total",
	"sensorflow_samples_rejected_total",
	"sensorflow_samples_unreadable_total",
	"sensorflow_flushes_total",
	"sensorflow_uploads_failed_total",
	"sensorflow_sink_connected",
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := scanMetrics(resp.Body, statsMetrics)
	if err != nil {
		return err
	}

	fmt.Printf("[%s] samples=%.0f rejected=%.0f unreadable=%.0f flushes=%.0f failed=%.0f connected=%.0f\n",
		time.Now().Format(time.RFC3339),
		values["sensorflow_samples_total"],
		values["sensorflow_samples_rejected_total"],
		values["sensorflow_samples_unreadable_total"],
		values["sensorflow_flushes_total"],
		values["sensorflow_uploads_failed_total"],
		values["sensorflow_sink_connected"],
	)
	return nil
}

// scanMetrics picks unlabelled samples of the named metrics out of the text exposition format.
func scanMetrics(r io.Reader, names []string) (map[string]float64, error) {
	values := make(map[string]float64, len(names))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range names {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %f", &value); err == nil {
					values[key] = value
				}
			}
		}
	}
	return values, scanner.Err()
}

func printUsage() {
	fmt.Printf(`SensorFlow CLI

Usage:
  sensorflow <command> [flags]

Commands:
  run        Sample sensors and upload per-window means until interrupted
  create     Create the sink database (rrd file or table) for the configured metrics
  read       Read every configured sensor once and print the values
  validate   Load and validate a config file, then list environment overrides
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  sensorflow run -config /etc/sensorflow/config.yaml
  sensorflow create -config /etc/sensorflow/config.yaml -yes
  sensorflow read -config /etc/sensorflow/config.yaml
  sensorflow stats -url http://localhost:9100/metrics -interval 1s
`)
}
