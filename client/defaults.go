package client

import (
	"math"
	"time"
)

// NoTimeout disables the overall request timeout.
const NoTimeout = time.Duration(math.MaxInt64)

const (
	DefaultRedirections      = 10
	DefaultResponseTimeout   = 60 * time.Second
	DefaultConnectionTimeout = 20 * time.Second
	DefaultWaitActivity      = 100 * time.Millisecond

	minTimeout = time.Millisecond
)

// Defaults are the client-wide values a [Builder] starts from, along with
// the client's engine and performer tuning. Zero fields take the package
// defaults in [Defaults.ApplyDefaults].
type Defaults struct {
	// RequestTimeout bounds the whole transfer. Zero means no limit.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gte=0"`

	// ResponseTimeout fails a transfer after this long without I/O.
	ResponseTimeout time.Duration `mapstructure:"response_timeout" yaml:"response_timeout" validate:"gte=0"`

	// ConnectionTimeout bounds connection establishment.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout" yaml:"connection_timeout" validate:"gte=0"`

	// Redirections is the maximum number of redirects followed. Nil means
	// DefaultRedirections; zero disables following.
	Redirections *uint32 `mapstructure:"redirections" yaml:"redirections"`

	// Verification enables TLS peer verification. Nil means enabled.
	Verification *bool `mapstructure:"verification" yaml:"verification"`

	CAPath   string `mapstructure:"ca_path" yaml:"ca_path" validate:"omitempty,dir"`
	CABundle string `mapstructure:"ca_bundle" yaml:"ca_bundle" validate:"omitempty,file"`

	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`

	// WaitActivity is the interval a Performer waits between polls.
	WaitActivity time.Duration `mapstructure:"wait_activity" yaml:"wait_activity" validate:"gte=0"`

	// MaxConcurrent caps transfers doing network I/O at once. Zero is
	// unlimited.
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent" validate:"gte=0"`

	Throttle ThrottleDefaults `mapstructure:"throttle" yaml:"throttle"`
}

// ThrottleDefaults configures admission throttling. Zero RPS disables it.
type ThrottleDefaults struct {
	RPS   int `mapstructure:"rps" yaml:"rps" validate:"gte=0"`
	Burst int `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
}

// ApplyDefaults sets package defaults on zero-valued fields.
func (d *Defaults) ApplyDefaults() {
	if d.RequestTimeout == 0 {
		d.RequestTimeout = NoTimeout
	}
	if d.ResponseTimeout == 0 {
		d.ResponseTimeout = DefaultResponseTimeout
	}
	if d.ConnectionTimeout == 0 {
		d.ConnectionTimeout = DefaultConnectionTimeout
	}
	if d.Redirections == nil {
		r := uint32(DefaultRedirections)
		d.Redirections = &r
	}
	if d.Verification == nil {
		v := true
		d.Verification = &v
	}
	if d.UserAgent == "" {
		d.UserAgent = "asynchttp/" + Version
	}
	if d.WaitActivity == 0 {
		d.WaitActivity = DefaultWaitActivity
	}
	if d.Throttle.RPS > 0 && d.Throttle.Burst == 0 {
		d.Throttle.Burst = d.Throttle.RPS
	}
}

// Validate checks the field constraints.
func (d Defaults) Validate() error {
	return check(d)
}

// Version is reported in the default User-Agent.
const Version = "0.1.0"

func clampTimeout(d time.Duration) time.Duration {
	return max(d, minTimeout)
}
