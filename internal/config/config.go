// Package config loads service settings from a config file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. LUIS_AUTH_KEY or
// LUIS_ENGINE_PROVIDER.
const EnvPrefix = "LUIS"

// Settings is the complete service configuration.
type Settings struct {
	Name          string        `mapstructure:"name" toml:"name"`
	Debug         bool          `mapstructure:"debug" toml:"debug"`
	Endpoint      string        `mapstructure:"endpoint" toml:"endpoint" validate:"required,hostname_port"`
	AsrPrefix     string        `mapstructure:"asr_prefix" toml:"asr_prefix" validate:"required,startswith=/"`
	NotifyURL     string        `mapstructure:"notify_url" toml:"notify_url" validate:"omitempty,url"`
	NotifyTimeout time.Duration `mapstructure:"notify_timeout" toml:"notify_timeout" validate:"gt=0"`
	AppID         string        `mapstructure:"app_id" toml:"app_id"`
	AuthKey       string        `mapstructure:"auth_key" toml:"auth_key"`

	Log     LogConfig     `mapstructure:"log" toml:"log"`
	Engine  EngineConfig  `mapstructure:"engine" toml:"engine"`
	Azure   AzureConfig   `mapstructure:"azure" toml:"azure"`
	Google  GoogleConfig  `mapstructure:"google" toml:"google"`
	Luis    LuisConfig    `mapstructure:"luis" toml:"luis"`
	Keeper  KeeperConfig  `mapstructure:"keeper" toml:"keeper"`
	Bridge  BridgeConfig  `mapstructure:"bridge" toml:"bridge"`
	GRPC    GRPCConfig    `mapstructure:"grpc" toml:"grpc"`
	Metrics MetricsConfig `mapstructure:"metrics" toml:"metrics"`
	Kafka   KafkaConfig   `mapstructure:"kafka" toml:"kafka"`
}

type LogConfig struct {
	Level        string `mapstructure:"level" toml:"level" validate:"oneof=trace debug info warn error"`
	Format       string `mapstructure:"format" toml:"format" validate:"oneof=json console"`
	Folder       string `mapstructure:"folder" toml:"folder"`
	RotateSizeMB int    `mapstructure:"rotate_size_mb" toml:"rotate_size_mb" validate:"gte=1"`
	Stdout       bool   `mapstructure:"stdout" toml:"stdout"`
}

// EngineConfig selects the recognition engine and the audio format pushed to it.
type EngineConfig struct {
	Provider      string `mapstructure:"provider" toml:"provider" validate:"oneof=mock google azure"`
	Language      string `mapstructure:"language" toml:"language" validate:"required"`
	SampleRate    int    `mapstructure:"sample_rate" toml:"sample_rate" validate:"gt=0"`
	BitsPerSample int    `mapstructure:"bits_per_sample" toml:"bits_per_sample" validate:"oneof=8 16"`
	Channels      int    `mapstructure:"channels" toml:"channels" validate:"gte=1,lte=2"`
}

type AzureConfig struct {
	Subscription string `mapstructure:"subscription" toml:"subscription"`
	Region       string `mapstructure:"region" toml:"region"`
}

type GoogleConfig struct {
	AudioEncoding  string `mapstructure:"audio_encoding" toml:"audio_encoding"`
	InterimResults bool   `mapstructure:"interim_results" toml:"interim_results"`
}

// LuisConfig points at the LUIS prediction endpoint used for intent analysis.
// Intent analysis is skipped when AppID is empty.
type LuisConfig struct {
	Endpoint string        `mapstructure:"endpoint" toml:"endpoint" validate:"omitempty,url"`
	AppID    string        `mapstructure:"app_id" toml:"app_id"`
	Key      string        `mapstructure:"key" toml:"key"`
	Staging  bool          `mapstructure:"staging" toml:"staging"`
	Timeout  time.Duration `mapstructure:"timeout" toml:"timeout"`
	Intents  []string      `mapstructure:"intents" toml:"intents"`
}

type KeeperConfig struct {
	DuplicatePolicy string `mapstructure:"duplicate_policy" toml:"duplicate_policy" validate:"oneof=last_start_wins reject"`
}

type BridgeConfig struct {
	Shards    int `mapstructure:"shards" toml:"shards" validate:"gte=1"`
	QueueSize int `mapstructure:"queue_size" toml:"queue_size" validate:"gte=1"`
}

type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Addr    string `mapstructure:"addr" toml:"addr"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Addr    string `mapstructure:"addr" toml:"addr"`
}

type KafkaConfig struct {
	Enabled   bool     `mapstructure:"enabled" toml:"enabled"`
	Brokers   []string `mapstructure:"brokers" toml:"brokers"`
	Topic     string   `mapstructure:"topic" toml:"topic"`
	Principal string   `mapstructure:"principal" toml:"principal"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "Neunit Speech AI Server")
	v.SetDefault("debug", false)
	v.SetDefault("endpoint", "127.0.0.1:8059")
	v.SetDefault("asr_prefix", "/xlp/short_voice_silence_server")
	v.SetDefault("notify_url", "http://127.0.0.1:8059/xlp/ai_robot/v1?action=streamplay&from=zhuiyi&streamName=1&serialNo=")
	v.SetDefault("notify_timeout", "5s")
	v.SetDefault("app_id", "1500000615")
	v.SetDefault("auth_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.folder", "")
	v.SetDefault("log.rotate_size_mb", 10)
	v.SetDefault("log.stdout", false)

	v.SetDefault("engine.provider", "mock")
	v.SetDefault("engine.language", "zh-CN")
	v.SetDefault("engine.sample_rate", 8000)
	v.SetDefault("engine.bits_per_sample", 16)
	v.SetDefault("engine.channels", 1)

	v.SetDefault("azure.subscription", "")
	v.SetDefault("azure.region", "eastasia")

	v.SetDefault("google.audio_encoding", "LINEAR16")
	v.SetDefault("google.interim_results", false)

	v.SetDefault("luis.endpoint", "")
	v.SetDefault("luis.app_id", "")
	v.SetDefault("luis.key", "")
	v.SetDefault("luis.staging", false)
	v.SetDefault("luis.timeout", "3s")
	v.SetDefault("luis.intents", []string{})

	v.SetDefault("keeper.duplicate_policy", "last_start_wins")

	v.SetDefault("bridge.shards", 16)
	v.SetDefault("bridge.queue_size", 256)

	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.addr", "127.0.0.1:50051")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", "127.0.0.1:9317")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "luis.session.events")
	v.SetDefault("kafka.principal", "")
}

// Load reads settings from path (any format viper understands, TOML in
// practice). An empty path loads defaults and environment overrides only.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	err := v.Unmarshal(&s, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if s.Kafka.Principal == "" {
		s.Kafka.Principal = s.Name
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field constraints and cross-field requirements.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if s.Engine.Provider == "azure" && (s.Azure.Subscription == "" || s.Azure.Region == "") {
		return errors.New("invalid config: azure engine requires azure.subscription and azure.region")
	}
	if s.Kafka.Enabled && len(s.Kafka.Brokers) == 0 {
		return errors.New("invalid config: kafka.enabled requires kafka.brokers")
	}
	if s.GRPC.Enabled && s.GRPC.Addr == "" {
		return errors.New("invalid config: grpc.enabled requires grpc.addr")
	}
	return nil
}
