package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ghalamif/SensorFlow/internal/adapters/opcua"
	"github.com/ghalamif/SensorFlow/internal/adapters/w1"
	"github.com/ghalamif/SensorFlow/internal/ports"
)

// Router dispatches a sensor source to the reader that understands it. Sources with
// the opc.tcp:// scheme go to the OPC UA reader, everything else is a 1-Wire file.
type Router struct {
	files ports.DeviceReader
	opcua ports.DeviceReader
}

func NewRouter(files, opc ports.DeviceReader) *Router {
	return &Router{files: files, opcua: opc}
}

// New builds the default router from the device path template and OPC UA settings.
func New(devicePath string, opc opcua.Config) *Router {
	return NewRouter(w1.NewReader(devicePath), opcua.NewReader(opc))
}

func (r *Router) Read(ctx context.Context, source string) (float64, error) {
	if strings.HasPrefix(source, opcua.Scheme) {
		if r.opcua == nil {
			return 0, fmt.Errorf("no opc ua reader configured for %q", source)
		}
		return r.opcua.Read(ctx, source)
	}
	return r.files.Read(ctx, source)
}

func (r *Router) Close() error {
	var err error
	for _, rd := range []ports.DeviceReader{r.files, r.opcua} {
		if rd == nil {
			continue
		}
		err = errors.Join(err, rd.Close())
	}
	return err
}

var _ ports.DeviceReader = (*Router)(nil)
