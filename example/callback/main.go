package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/SensorFlow/pkg/sensorflow"
)

func main() {
	flow, err := sensorflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(f sensorflow.Flush) error {
		for _, key := range f.Keys {
			v, ok := f.Value(key)
			if !ok {
				fmt.Printf("%s %s=missing\n", f.Time.Format(time.RFC3339), key)
				continue
			}
			fmt.Printf("%s %s=%.2f\n", f.Time.Format(time.RFC3339), key, v)
		}
		return nil
	}

	if err := flow.Run(ctx, sensorflow.StreamOutCallback("stdout", callback)); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
