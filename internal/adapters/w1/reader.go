package w1

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ghalamif/SensorFlow/internal/ports"
)

// Prefix marks sources that name a 1-Wire device id instead of a path.
const Prefix = "w1:"

// DefaultDevicePath is the sysfs template; $ is replaced by the device id.
const DefaultDevicePath = "/sys/bus/w1/devices/$/w1_slave"

const (
	powerOnReset = 85000 // DS18B20 register default before the first conversion
	maxPlausible = 60000
)

var (
	ErrCRC         = errors.New("w1: crc check failed")
	ErrMalformed   = errors.New("w1: malformed w1_slave output")
	ErrImplausible = errors.New("w1: implausible temperature")
)

// Reader reads DS18B20 style w1_slave files and returns degrees Celsius.
type Reader struct {
	devicePath string
	readFile   func(string) ([]byte, error)
}

func NewReader(devicePath string) *Reader {
	if devicePath == "" {
		devicePath = DefaultDevicePath
	}
	return &Reader{devicePath: devicePath, readFile: os.ReadFile}
}

// Path resolves a source to the file that holds its reading.
func (r *Reader) Path(source string) string {
	if id, ok := strings.CutPrefix(source, Prefix); ok {
		return strings.ReplaceAll(r.devicePath, "$", id)
	}
	return source
}

func (r *Reader) Read(ctx context.Context, source string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	raw, err := r.readFile(r.Path(source))
	if err != nil {
		return 0, fmt.Errorf("w1: %w", err)
	}
	milli, err := Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", source, err)
	}
	return float64(milli) / 1000, nil
}

func (r *Reader) Close() error { return nil }

// Parse extracts the temperature in millidegrees from w1_slave content:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func Parse(raw []byte) (int64, error) {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	var lines []string
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return 0, ErrMalformed
	}
	if !strings.HasSuffix(lines[0], "YES") {
		return 0, ErrCRC
	}
	_, val, ok := strings.Cut(lines[1], "t=")
	if !ok {
		return 0, ErrMalformed
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if milli == powerOnReset || milli > maxPlausible {
		return 0, fmt.Errorf("%w: %d", ErrImplausible, milli)
	}
	return milli, nil
}

var _ ports.DeviceReader = (*Reader)(nil)
