package sensors

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DS18B20 reads a probe through the w1-therm sysfs interface.
type DS18B20 struct {
	path string
}

// NewDS18B20 points at <dir>/<id>/w1_slave.
func NewDS18B20(dir, id string) *DS18B20 {
	return &DS18B20{path: filepath.Join(dir, id, "w1_slave")}
}

func (p *DS18B20) ReadTemp() (float64, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", p.path, err)
	}
	return parseW1Slave(string(raw))
}

// parseW1Slave parses the two line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(raw string) (float64, error) {
	sc := bufio.NewScanner(strings.NewReader(raw))
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if len(lines) < 2 {
		return 0, fmt.Errorf("%w: w1_slave truncated", ErrNotReady)
	}
	if !strings.HasSuffix(lines[0], "YES") {
		return 0, fmt.Errorf("%w: w1_slave crc not confirmed", ErrNotReady)
	}
	i := strings.Index(lines[1], "t=")
	if i < 0 {
		return 0, fmt.Errorf("%w: w1_slave has no temperature", ErrNotReady)
	}
	milli, err := strconv.Atoi(strings.TrimSpace(lines[1][i+2:]))
	if err != nil {
		return 0, fmt.Errorf("parse w1_slave temperature: %w", err)
	}
	return float64(milli) / 1000, nil
}
