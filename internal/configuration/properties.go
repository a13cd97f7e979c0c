package configuration

import "time"

type Properties struct {
	App       AppConfigurationProperties       `yaml:"app"`
	Transport TransportConfigurationProperties `yaml:"transport"`
	Raft      RaftConfigurationProperties      `yaml:"raft"`
	Storage   StorageConfigurationProperties   `yaml:"storage"`
}

type AppConfigurationProperties struct {
	Profile  string `yaml:"profile"`
	LogLevel string `yaml:"log-level"`
}

type TransportConfigurationProperties struct {
	Network              string `yaml:"network"`
	Address              string `yaml:"address"`
	ClientPort           string `yaml:"client-port"`
	RaftPort             string `yaml:"raft-port"`
	MetricsPort          string `yaml:"metrics-port"`
	Timeout              uint64 `yaml:"timeout"`
	MaxConcurrentStreams uint32 `yaml:"max-concurrent-streams"`
}

type EtcdConfigProperties struct {
	ElectionTick              int    `yaml:"election-tick"`
	HeartbeatTick             int    `yaml:"heartbeat-tick"`
	MaxSizePerMsg             uint64 `yaml:"max-size-per-msg"`
	MaxInflightMsgs           int    `yaml:"max-inflight-msgs"`
	MaxUncommittedEntriesSize uint64 `yaml:"max-uncommitted-entries-size"`
}

type WriteAheadLogProperties struct {
	NoSync bool `yaml:"no-sync"`
}

type RaftConfigurationProperties struct {
	NodeID        uint64                  `yaml:"node-id"`
	Peers         map[uint64]string       `yaml:"peers"`
	StorageDir    string                  `yaml:"storage-dir"`
	TickInterval  uint64                  `yaml:"tick-interval"`
	SnapCount     uint64                  `yaml:"snap-count"`
	StepInboxSize uint64                  `yaml:"step-inbox-size"`
	SendQueueSize int                     `yaml:"send-queue-size"`
	MaxProposals  int64                   `yaml:"max-proposals-in-flight"`
	DrainTimeout  uint64                  `yaml:"drain-timeout"`
	Etcd          EtcdConfigProperties    `yaml:"etcd"`
	Wal           WriteAheadLogProperties `yaml:"wal"`
}

type StorageConfigurationProperties struct {
	Dir string                  `yaml:"dir"`
	Wal WriteAheadLogProperties `yaml:"wal"`
}

func (c *TransportConfigurationProperties) RaftAddr() string {
	return c.Address + ":" + c.RaftPort
}

func (c *TransportConfigurationProperties) ClientAddr() string {
	return c.Address + ":" + c.ClientPort
}

func (c *TransportConfigurationProperties) MetricsAddr() string {
	return c.Address + ":" + c.MetricsPort
}

// TickInterval and timeouts are configured in milliseconds and seconds
// respectively, matching the granularity each knob actually needs.
func (c *RaftConfigurationProperties) TickDuration() time.Duration {
	return time.Duration(c.TickInterval) * time.Millisecond
}

func (c *RaftConfigurationProperties) DrainDuration() time.Duration {
	return time.Duration(c.DrainTimeout) * time.Second
}

func (c *TransportConfigurationProperties) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
