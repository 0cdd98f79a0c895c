package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// iioReader samples ADC channels through the Linux IIO sysfs interface.
type iioReader struct {
	dir string
}

func (r iioReader) read(pin uint8) (uint16, error) {
	if r.dir == "" {
		return 0, fmt.Errorf("analog pin %d: no IIO device configured", pin)
	}
	path := filepath.Join(r.dir, fmt.Sprintf("in_voltage%d_raw", pin))
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read analog pin %d: %w", pin, err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("parse analog pin %d: %w", pin, err)
	}
	return uint16(v), nil
}
