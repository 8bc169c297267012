package models

import (
	"net"
	"strconv"
)

// ProbeKind selects how a target's liveness is checked.
type ProbeKind string

const (
	ProbePort    ProbeKind = "port"
	ProbeService ProbeKind = "service"
)

// ServiceTarget is a statically configured dependency that must be kept running.
type ServiceTarget struct {
	Name  string    `toml:"name" yaml:"name" validate:"required"`
	Probe ProbeKind `toml:"probe" yaml:"probe" validate:"required,oneof=port service"`
	Host  string    `toml:"host" yaml:"host"`
	Port  int       `toml:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Unit  string    `toml:"unit" yaml:"unit"` // OS service name, defaults to Name
}

// UnitName returns the OS service name used for state queries and start commands.
func (t ServiceTarget) UnitName() string {
	if t.Unit != "" {
		return t.Unit
	}
	return t.Name
}

// Address returns host:port for port probes.
func (t ServiceTarget) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ProbeResult is the liveness of one target at one instant.
type ProbeResult struct {
	Target string `json:"target"`
	Live   bool   `json:"live"`
	Detail string `json:"detail,omitempty"`
}
