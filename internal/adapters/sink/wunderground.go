package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/ghalamif/SensorFlow/internal/domain"
	"github.com/ghalamif/SensorFlow/internal/ports"
)

const (
	defaultWundergroundURL = "https://weatherstation.wunderground.com/weatherstation/updateweatherstation.php"
	wundergroundDateLayout = "2006-01-02 15:04:05"
	successMarker          = "success"
)

// WundergroundConfig describes a personal weather station upload endpoint.
type WundergroundConfig struct {
	URL      string        `yaml:"url"`
	ID       string        `yaml:"id"`
	Password string        `yaml:"password"`
	Method   string        `yaml:"method"`
	Timeout  time.Duration `yaml:"timeout"`
}

func (c *WundergroundConfig) ApplyDefaults() {
	if c.URL == "" {
		c.URL = defaultWundergroundURL
	}
	if c.Method == "" {
		c.Method = fasthttp.MethodGet
	}
	c.Method = strings.ToUpper(c.Method)
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
}

func (c *WundergroundConfig) Validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	if c.Method != fasthttp.MethodGet && c.Method != fasthttp.MethodPost {
		return fmt.Errorf("method must be GET or POST, got %q", c.Method)
	}
	return nil
}

// HTTPDoer is the subset of *fasthttp.Client used by the sink.
type HTTPDoer interface {
	DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error
}

// WundergroundSink uploads one request per flush. HTTP holds no session, so the sink
// counts as connected from construction on and failures never change that.
type WundergroundSink struct {
	cfg    WundergroundConfig
	client HTTPDoer
}

func NewWundergroundSink(cfg WundergroundConfig, client HTTPDoer) *WundergroundSink {
	if client == nil {
		client = &fasthttp.Client{
			Name:                "sensorflow",
			MaxConnsPerHost:     2,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		}
	}
	return &WundergroundSink{cfg: cfg, client: client}
}

func (w *WundergroundSink) Name() string { return "wunderground" }

func (w *WundergroundSink) Connect(context.Context) error { return nil }

func (w *WundergroundSink) Connected() bool { return true }

func (w *WundergroundSink) Close() error { return nil }

func (w *WundergroundSink) Send(_ context.Context, f domain.Flush) error {
	if f.Empty() {
		return ports.ErrNothingToSend
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(w.cfg.URL)
	req.Header.SetMethod(w.cfg.Method)

	args := req.URI().QueryArgs()
	if w.cfg.Method == fasthttp.MethodPost {
		req.Header.SetContentType("application/x-www-form-urlencoded")
		args = req.PostArgs()
	}
	args.Add("action", "updateraw")
	args.Add("ID", w.cfg.ID)
	args.Add("PASSWORD", w.cfg.Password)
	args.Add("dateutc", f.Time.UTC().Format(wundergroundDateLayout))
	for _, k := range f.Keys {
		if v, ok := f.Value(k); ok {
			args.Add(k, formatValue(v))
		}
	}

	if err := w.client.DoTimeout(req, resp, w.cfg.Timeout); err != nil {
		return w.sanitizeError(err)
	}

	body := resp.Body()
	if !bytes.Contains(body, []byte(successMarker)) {
		return fmt.Errorf("%w: status %d: %s", ports.ErrUploadRejected, resp.StatusCode(), truncate(strings.TrimSpace(string(body)), 128))
	}
	return nil
}

func (w *WundergroundSink) sanitizeError(err error) error {
	if w.cfg.Password == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), w.cfg.Password, "<REDACTED>"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ ports.Sink = (*WundergroundSink)(nil)
