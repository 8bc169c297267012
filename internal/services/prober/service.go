package prober

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// Config controls how liveness is checked.
type Config struct {
	DialTimeout    time.Duration
	StateCommand   []string // unit name is appended
	RunningMarker  string
	CommandTimeout time.Duration
}

// Service implements interfaces.LivenessProber. It never returns errors:
// anything that prevents a positive answer means not live.
type Service struct {
	cfg    Config
	runner interfaces.CommandRunner
	logger arbor.ILogger
}

// NewService creates a prober that queries service state through runner.
func NewService(logger arbor.ILogger, cfg Config, runner interfaces.CommandRunner) *Service {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	return &Service{cfg: cfg, runner: runner, logger: logger}
}

// PortLive reports whether a TCP connection to host:port can be established
// within the dial timeout.
func (s *Service) PortLive(ctx context.Context, host string, port int) bool {
	live, _ := s.dial(ctx, host, port)
	return live
}

func (s *Service) dial(ctx context.Context, host string, port int) (bool, string) {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: s.cfg.DialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		s.logger.Debug().Err(err).Str("address", address).Msg("Port not reachable")
		return false, err.Error()
	}
	_ = conn.Close()
	return true, "connected to " + address
}

// ServiceRunning reports whether the OS service unit is running according to
// the configured state command.
func (s *Service) ServiceRunning(ctx context.Context, unit string) bool {
	live, _ := s.queryState(ctx, unit)
	return live
}

func (s *Service) queryState(ctx context.Context, unit string) (bool, string) {
	if len(s.cfg.StateCommand) == 0 {
		return false, "no state command configured"
	}

	args := append(append([]string{}, s.cfg.StateCommand...), unit)
	result, err := s.runner.Run(ctx, interfaces.Command{Args: args, Timeout: s.cfg.CommandTimeout})
	if err != nil {
		s.logger.Warn().Err(err).Str("unit", unit).Msg("Service state query failed")
		return false, err.Error()
	}

	if hasToken(result.Stdout, s.cfg.RunningMarker) {
		return true, s.cfg.RunningMarker
	}

	detail := fmt.Sprintf("state query exit %d", result.ExitCode)
	if state := stateWord(result.Stdout); state != "" {
		detail = state
	}
	return false, detail
}

// Probe dispatches on the target's probe kind.
func (s *Service) Probe(ctx context.Context, target models.ServiceTarget) models.ProbeResult {
	result := models.ProbeResult{Target: target.Name}

	switch target.Probe {
	case models.ProbePort:
		result.Live, result.Detail = s.dial(ctx, target.Host, target.Port)
	case models.ProbeService:
		result.Live, result.Detail = s.queryState(ctx, target.UnitName())
	default:
		result.Detail = fmt.Sprintf("unknown probe kind %q", target.Probe)
	}

	s.logger.Debug().
		Str("target", target.Name).
		Str("probe", string(target.Probe)).
		Bool("live", result.Live).
		Str("detail", result.Detail).
		Msg("Probed target")

	return result
}

// hasToken matches whole whitespace-separated tokens so that "active" does not
// match "inactive".
func hasToken(output, token string) bool {
	if token == "" {
		return false
	}
	for _, field := range strings.Fields(output) {
		if field == token {
			return true
		}
	}
	return false
}

// stateWord extracts a short state description from state query output: the
// value after "STATE" for sc query, or the first line otherwise.
func stateWord(output string) string {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 4 && fields[0] == "STATE" {
			return fields[3]
		}
	}
	if fields := strings.Fields(output); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
