package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/SensorFlow"
)

func main() {
	flow, err := sensorflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, flushes, closeFlushes := sensorflow.NewChannelSink("fanout", 8)
	defer closeFlushes()

	go fanoutWorker("dashboard", flushes)

	if err := flow.Run(ctx, sensorflow.StreamOutSink(sink)); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

func fanoutWorker(name string, flushes <-chan sensorflow.Flush) {
	for f := range flushes {
		payload, err := json.Marshal(f)
		if err != nil {
			log.Printf("[%s] encode flush: %v", name, err)
			continue
		}
		fmt.Printf("[%s] %s\n", name, payload)
	}
}
