// Package config loads and validates server configuration. Values come
// from an optional YAML/JSON file, environment variables prefixed
// PLAYHOUSE_, and programmatic overrides, merged through viper with the
// defaults below.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ServiceType labels what a server process hosts.
type ServiceType string

const (
	ServicePlay    ServiceType = "play"
	ServiceAPI     ServiceType = "api"
	ServiceSession ServiceType = "session"
)

// Server is one process's configuration.
type Server struct {
	// ServerID must be unique within the cluster; left empty, the server
	// generates one at startup.
	ServerID    string      `mapstructure:"serverid"`
	ServiceID   uint16      `mapstructure:"serviceid"`
	ServiceType ServiceType `mapstructure:"servicetype" validate:"required,oneof=play api session"`

	// BindEndpoint is the server-to-server listen address; ClientEndpoint
	// is the client-facing one (Play/Session only).
	BindEndpoint   string `mapstructure:"bindendpoint" validate:"required,listen_addr"`
	ClientEndpoint string `mapstructure:"clientendpoint" validate:"omitempty,listen_addr"`

	RequestTimeoutMs   int `mapstructure:"requesttimeoutms" validate:"gt=0"`
	HeartbeatIntervalMs int `mapstructure:"heartbeatintervalms" validate:"gt=0"`
	HeartbeatTimeoutMs  int `mapstructure:"heartbeattimeoutms" validate:"gt=0"`
	MaxPacketBytes      int `mapstructure:"maxpacketbytes" validate:"gt=0"`

	WorkerMin int `mapstructure:"workermin" validate:"gt=0"`
	WorkerMax int `mapstructure:"workermax" validate:"gtefield=WorkerMin"`

	EtcdEndpoints     []string `mapstructure:"etcdendpoints"`
	EtcdDialTimeoutMs int      `mapstructure:"etcddialtimeoutms" validate:"gt=0"`
	EtcdLeaseTTLSec   int64    `mapstructure:"etcdleasettlsec" validate:"gt=0"`
	NatsURL           string   `mapstructure:"natsurl"`

	// Serializer picks the payload codec advertised to clients.
	Serializer       string   `mapstructure:"serializer" validate:"oneof=json protobuf"`
	LogLevel         string   `mapstructure:"loglevel" validate:"oneof=debug info warn error"`
	MetricsReporters []string `mapstructure:"metricsreporters" validate:"dive,oneof=prometheus statsd"`
	JaegerAgent      string   `mapstructure:"jaegeragent"`
}

// RequestTimeout returns the per-request deadline as a Duration.
func (s *Server) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutMs) * time.Millisecond
}

// HeartbeatInterval returns the heartbeat publish period as a Duration.
func (s *Server) HeartbeatInterval() time.Duration {
	return time.Duration(s.HeartbeatIntervalMs) * time.Millisecond
}

// HeartbeatTimeout returns the peer-liveness deadline as a Duration.
func (s *Server) HeartbeatTimeout() time.Duration {
	return time.Duration(s.HeartbeatTimeoutMs) * time.Millisecond
}

// EtcdDialTimeout returns the etcd connect deadline as a Duration.
func (s *Server) EtcdDialTimeout() time.Duration {
	return time.Duration(s.EtcdDialTimeoutMs) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("requesttimeoutms", 30000)
	v.SetDefault("heartbeatintervalms", 5000)
	v.SetDefault("heartbeattimeoutms", 15000)
	v.SetDefault("maxpacketbytes", 2*1024*1024)
	v.SetDefault("workermin", 4)
	v.SetDefault("workermax", 1024)
	v.SetDefault("etcdendpoints", []string{"127.0.0.1:2379"})
	v.SetDefault("etcddialtimeoutms", 5000)
	v.SetDefault("etcdleasettlsec", 20)
	v.SetDefault("natsurl", "nats://127.0.0.1:4222")
	v.SetDefault("serializer", "json")
	v.SetDefault("loglevel", "info")
	v.SetDefault("metricsreporters", []string{})
}

// Load reads configuration from file (optional, empty path skips it) and
// the PLAYHOUSE_* environment, applies defaults, and validates the result.
func Load(file string) (*Server, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("playhouse")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return unmarshal(v)
}

// FromMap builds a Server from programmatic settings, mostly for tests and
// embedded use; the same defaults and validation apply.
func FromMap(settings map[string]interface{}) (*Server, error) {
	v := viper.New()
	setDefaults(v)
	for key, val := range settings {
		v.Set(key, val)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Server, error) {
	var s Server
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	validate := validator.New()
	// listen_addr accepts host:port with a port of 0..65535; port 0 binds
	// an ephemeral port.
	_ = validate.RegisterValidation("listen_addr", func(fl validator.FieldLevel) bool {
		_, port, err := net.SplitHostPort(fl.Field().String())
		if err != nil {
			return false
		}
		n, err := strconv.Atoi(port)
		return err == nil && n >= 0 && n <= 65535
	})
	if err := validate.Struct(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
