package sensorflow

import (
	"context"
	"testing"
)

func TestConfFromConfigAndStreamBuilder(t *testing.T) {
	cfg := loadTestConfig(t)

	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if flow.Config() != cfg {
		t.Fatalf("expected Config to be returned verbatim")
	}

	reader := &stubReader{}
	var handled int
	rt, err := flow.
		Options(WithLogger(quietLogger())).
		StreamIN(StreamInReader(reader)).
		StreamOUT(StreamOutCallback("stdout", func(Flush) error {
			handled++
			return nil
		}))
	if err != nil {
		t.Fatalf("StreamOUT returned error: %v", err)
	}
	if rt.reader != reader {
		t.Fatalf("expected reader from StreamIN to be used")
	}
	if rt.channel.Name() != "stdout" {
		t.Fatalf("expected callback sink, got %s", rt.channel.Name())
	}
	if err := rt.channel.Sink().Send(context.Background(), Flush{}); err != nil || handled != 1 {
		t.Fatalf("callback not wired: err=%v handled=%d", err, handled)
	}
}

func TestConfFromConfigNil(t *testing.T) {
	if _, err := ConfFromConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	var f *Flow
	if _, err := f.StreamOUT(); err == nil {
		t.Fatalf("expected error for nil flow")
	}
}

func TestFlowWithFlowOptions(t *testing.T) {
	sink := NewCallbackSink("opt", func(Flush) error { return nil })
	flow, err := ConfFromConfig(loadTestConfig(t), WithFlowOptions(WithSink(sink), WithLogger(quietLogger())))
	if err != nil {
		t.Fatalf("ConfFromConfig: %v", err)
	}
	rt, err := flow.StreamOUT(StreamOutSink(nil))
	if err != nil {
		t.Fatalf("StreamOUT: %v", err)
	}
	if rt.channel.Sink() != sink {
		t.Fatalf("expected sink from flow options")
	}
}
