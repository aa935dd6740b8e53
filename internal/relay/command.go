// Package relay drives the relay board: command parsing, the channel bank
// and the single-flight sprinkler hold.
package relay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedCommand means the input is not "<channel> <ON|OFF>".
	ErrMalformedCommand = errors.New("command format error, use '<relay number> <ON|OFF>'")
	// ErrInvalidState means the state word is neither ON nor OFF.
	ErrInvalidState = errors.New("invalid state, use 'ON' or 'OFF'")
	// ErrInvalidChannel means the channel is not configured.
	ErrInvalidChannel = errors.New("invalid relay number")
)

// Command sources.
const (
	SourceStdin     = "stdin"
	SourceMQTT      = "mqtt"
	SourceHTTP      = "http"
	SourceScheduler = "scheduler"
)

// Command switches one channel.
type Command struct {
	Channel int
	On      bool
	Source  string
}

func (c Command) String() string {
	return fmt.Sprintf("%d %s", c.Channel, StateWord(c.On))
}

// StateWord renders on as "ON" or "OFF".
func StateWord(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// ParseState accepts ON/OFF in any case.
func ParseState(s string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON":
		return true, nil
	case "OFF":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
}

// ParseCommand parses "<channel> <ON|OFF>". Channel membership is checked
// by the Bank.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Command{}, fmt.Errorf("%w: %q", ErrMalformedCommand, line)
	}
	ch, err := strconv.Atoi(fields[0])
	if err != nil {
		return Command{}, fmt.Errorf("%w: %q", ErrMalformedCommand, line)
	}
	on, err := ParseState(fields[1])
	if err != nil {
		return Command{}, err
	}
	return Command{Channel: ch, On: on}, nil
}
