package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/SensorFlow/internal/ports"
)

// Scheme prefixes OPC UA sensor sources: opc.tcp://host:4840#ns=2;s=Boiler.Temp
const Scheme = "opc.tcp://"

// Config captures the session settings shared by every OPC UA endpoint.
type Config struct {
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SecurityMode    string        `yaml:"security_mode"`
	SecurityPolicy  string        `yaml:"security_policy"`
	ApplicationName string        `yaml:"application_name"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "SensorFlow"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
}

// ParseSource splits a source into endpoint and node id.
func ParseSource(source string) (endpoint, node string, err error) {
	if !strings.HasPrefix(source, Scheme) {
		return "", "", fmt.Errorf("source %q is not an %s address", source, Scheme)
	}
	endpoint, node, ok := strings.Cut(source, "#")
	if !ok || node == "" {
		return "", "", fmt.Errorf("source %q has no #<node-id>", source)
	}
	return endpoint, node, nil
}

type session interface {
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
	Close(ctx context.Context) error
}

// Reader polls single node values. One session is kept per endpoint and dropped on
// the first failed read, so the next sampling pass reconnects.
type Reader struct {
	cfg     Config
	connect func(ctx context.Context, endpoint string) (session, error)

	mu       sync.Mutex
	sessions map[string]session
}

func NewReader(cfg Config) *Reader {
	cfg.ApplyDefaults()
	r := &Reader{cfg: cfg, sessions: make(map[string]session)}
	r.connect = r.dial
	return r
}

func (r *Reader) Read(ctx context.Context, source string) (float64, error) {
	endpoint, node, err := ParseSource(source)
	if err != nil {
		return 0, err
	}
	nodeID, err := ua.ParseNodeID(node)
	if err != nil {
		return 0, fmt.Errorf("parse node id %q: %w", node, err)
	}

	s, err := r.session(ctx, endpoint)
	if err != nil {
		return 0, err
	}

	resp, err := s.Read(ctx, &ua.ReadRequest{
		MaxAge:             0,
		TimestampsToReturn: ua.TimestampsToReturnNeither,
		NodesToRead: []*ua.ReadValueID{
			{NodeID: nodeID, AttributeID: ua.AttributeIDValue},
		},
	})
	if err != nil {
		r.drop(endpoint, s)
		return 0, fmt.Errorf("opcua read %s: %w", node, err)
	}
	if len(resp.Results) == 0 {
		return 0, fmt.Errorf("opcua read %s: empty result", node)
	}
	res := resp.Results[0]
	if res.Status != ua.StatusOK {
		return 0, fmt.Errorf("opcua read %s: %s", node, res.Status)
	}
	v, ok := variantToFloat(res.Value)
	if !ok {
		return 0, fmt.Errorf("opcua read %s: unsupported value type %T", node, res.Value.Value())
	}
	return v, nil
}

func (r *Reader) Close() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]session)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	for _, s := range sessions {
		if e := s.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	return err
}

func (r *Reader) session(ctx context.Context, endpoint string) (session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[endpoint]; ok {
		return s, nil
	}
	s, err := r.connect(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	r.sessions[endpoint] = s
	return s, nil
}

func (r *Reader) drop(endpoint string, s session) {
	r.mu.Lock()
	if r.sessions[endpoint] == s {
		delete(r.sessions, endpoint)
	}
	r.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.Close(ctx)
}

func (r *Reader) dial(ctx context.Context, endpoint string) (session, error) {
	client, err := opcua.NewClient(endpoint, r.buildClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("opcua new client: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, r.cfg.ConnectTimeout)
	defer cancel()
	if err := client.Connect(cctx); err != nil {
		return nil, fmt.Errorf("opcua connect %s: %w", endpoint, err)
	}
	return client, nil
}

func (r *Reader) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(r.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(r.cfg.SecurityPolicy)),
		opcua.ApplicationName(r.cfg.ApplicationName),
		opcua.AutoReconnect(false),
	}

	if r.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(r.cfg.Username, r.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.DeviceReader = (*Reader)(nil)
