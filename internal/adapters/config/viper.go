package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
)

const (
	// envPrefix is the prefix for environment variables.
	// For example, NATS_URL will be looked up as DAISI_BILLING_NATS_URL.
	envPrefix = "DAISI_BILLING"

	// KeyNatsURL is the config key for the NATS server URL.
	KeyNatsURL = "nats_url"
	// KeyRedisAddr is the config key for the Redis server address shared by
	// the account directory and the outcome dedup store.
	KeyRedisAddr = "redis_addr"
	// KeyDedupTTL is the config key for the outcome deduplication key TTL in Redis.
	KeyDedupTTL = "dedup_ttl"
	// KeyJSTestRunStreamName is the config key for the NATS JetStream stream
	// holding test-run outcome events.
	KeyJSTestRunStreamName = "js_testrun_stream_name"
	// KeyJSTestRunSubjects is the config key for the subjects bound to the test-run stream.
	KeyJSTestRunSubjects = "js_testrun_subjects"
	// KeyJSTestRunConsumerGroup is the config key for the reporter's durable consumer group.
	KeyJSTestRunConsumerGroup = "js_testrun_consumer_group"
	// KeyJSAckWait is the config key for NATS JetStream AckWait duration.
	KeyJSAckWait = "js_ack_wait"
	// KeyJSMaxDeliver is the config key for NATS JetStream MaxDeliver attempts.
	KeyJSMaxDeliver = "js_max_deliver"
	// KeyJSMaxAckPending is the config key for NATS JetStream MaxAckPending.
	KeyJSMaxAckPending = "js_max_ack_pending"
	// KeyWorkers is an absolute override for the number of report-dispatch goroutines.
	// If <= 0, the multiplier logic is used.
	KeyWorkers = "workers"
	// KeyWorkersMultiplier is multiplied by GOMAXPROCS to determine pool size if KeyWorkers is not set.
	KeyWorkersMultiplier = "workers_multiplier"
	// KeyMinWorkers is the minimum number of workers for the dispatch pool.
	KeyMinWorkers = "min_workers"
	// KeyRunID is the config key for the CI run identifier grouping every
	// outcome of one run. Empty means a fresh UUID per process.
	KeyRunID = "run_id"
	// KeyLogLevel is the config key for the testkit's log level.
	KeyLogLevel = "log_level"
	// KeyMetricsPort is the config key for the port of the /metrics HTTP endpoint.
	KeyMetricsPort = "metrics_port"
)

// viperConfigProvider implements the domain.ConfigProvider interface using Viper.
type viperConfigProvider struct {
	viper *viper.Viper
}

// NewViperConfigProvider creates and initializes a new ConfigProvider using Viper.
// It sets up Viper to read from environment variables and a config.yaml file,
// with environment variables taking precedence. Default values are also set.
// Note: Logging of the configuration loading process itself (e.g., which file
// was used) is handled by the bootstrap process once a logger is available.
func NewViperConfigProvider() domain.ConfigProvider {
	v := viper.New()

	// Set environment variable prefix and automatic loading.
	// This allows DAISI_BILLING_NATS_URL to override nats_url from a config file.
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Add paths to search for the config file.
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/daisi-billing-testkit/")
	v.AddConfigPath("$HOME/.config/daisi-billing-testkit")

	// Set default values for configuration keys.
	v.SetDefault(KeyNatsURL, "nats://localhost:4222")
	v.SetDefault(KeyRedisAddr, "redis://localhost:6379")
	v.SetDefault(KeyDedupTTL, 24*time.Hour) // outcome keys live for a whole CI day
	v.SetDefault(KeyJSTestRunStreamName, "testrun_stream")
	// Outcome events are published to: testrun.<run_id>.<suite>.<result>
	v.SetDefault(KeyJSTestRunSubjects, "testrun.>")
	v.SetDefault(KeyJSTestRunConsumerGroup, "testrun_collectors")
	v.SetDefault(KeyJSAckWait, 30*time.Second)
	v.SetDefault(KeyJSMaxDeliver, 3)
	v.SetDefault(KeyJSMaxAckPending, 5000)
	v.SetDefault(KeyWorkers, 0)           // 0 means use multiplier logic
	v.SetDefault(KeyWorkersMultiplier, 1) // dispatch is light, one worker per CPU is plenty
	v.SetDefault(KeyMinWorkers, 2)
	v.SetDefault(KeyRunID, "") // empty -> generate one per process

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyMetricsPort, "8080")

	// Attempt to read the config file.
	// It's not an error if the file doesn't exist, as ENV vars and defaults can be used.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced.
			fmt.Printf("Warning: Error reading config file (%s): %v. Using defaults and ENV vars.\n", v.ConfigFileUsed(), err)
		}
		// If ConfigFileNotFoundError, we proceed silently, relying on defaults/ENV.
	}

	return &viperConfigProvider{
		viper: v,
	}
}

// GetString retrieves a string configuration value for the given key.
func (vcp *viperConfigProvider) GetString(key string) string {
	return vcp.viper.GetString(key)
}

// GetDuration retrieves a time.Duration configuration value for the given key.
func (vcp *viperConfigProvider) GetDuration(key string) time.Duration {
	return vcp.viper.GetDuration(key)
}

// GetInt retrieves an integer configuration value for the given key.
func (vcp *viperConfigProvider) GetInt(key string) int {
	return vcp.viper.GetInt(key)
}

// GetBool retrieves a boolean configuration value for the given key.
func (vcp *viperConfigProvider) GetBool(key string) bool {
	return vcp.viper.GetBool(key)
}

// Set allows overriding a configuration value. This is primarily intended for testing.
func (vcp *viperConfigProvider) Set(key string, value interface{}) {
	vcp.viper.Set(key, value)
}
