package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "transcribe_db", cfg.Database.Database)
				assert.Equal(t, "transcriptions_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "transcriptions_queue", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, 4, cfg.RabbitMQ.Consumer.PrefetchCount)
				assert.Equal(t, "./work", cfg.Artifacts.WorkDir)
				assert.Equal(t, 72*time.Hour, cfg.Artifacts.Retention)
				assert.Equal(t, "stub", cfg.Engine.Provider)
				assert.Equal(t, "base", cfg.Transcription.DefaultModel)
				assert.Equal(t, 60, cfg.Transcription.DefaultSegmentLength)
				assert.Contains(t, cfg.Transcription.AllowedModels, "large-v3")
			}
		})
	}
}

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "transcribe_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "transcriptions_exchange",
			},
			Queue: QueueConfig{
				Name: "transcriptions_queue",
			},
		},
		Worker: WorkerConfig{
			Concurrency:     2,
			JobTimeout:      time.Hour,
			ShutdownTimeout: 30 * time.Second,
		},
		Artifacts: ArtifactsConfig{
			WorkDir: "./work",
		},
		Engine: EngineConfig{
			Provider:      "openai",
			APIKeyEnv:     "OPENAI_API_KEY",
			RetryAttempts: 3,
			RetryInterval: time.Second,
		},
		Transcription: TranscriptionConfig{
			DefaultModel:         "base",
			DefaultSegmentLength: 60,
			AllowedModels:        []string{"tiny", "base", "small"},
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "empty work dir",
			mutate:    func(c *Config) { c.Artifacts.WorkDir = "" },
			wantErr:   true,
			errString: "artifacts work_dir is required",
		},
		{
			name:      "empty default model",
			mutate:    func(c *Config) { c.Transcription.DefaultModel = "" },
			wantErr:   true,
			errString: "default_model is required",
		},
		{
			name:      "non-positive default segment length",
			mutate:    func(c *Config) { c.Transcription.DefaultSegmentLength = 0 },
			wantErr:   true,
			errString: "default_segment_length",
		},
		{
			name:      "default model not allowed",
			mutate:    func(c *Config) { c.Transcription.DefaultModel = "huge" },
			wantErr:   true,
			errString: "not in allowed_models",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:      "non-positive concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr:   true,
			errString: "worker concurrency",
		},
		{
			name:      "non-positive job timeout",
			mutate:    func(c *Config) { c.Worker.JobTimeout = 0 },
			wantErr:   true,
			errString: "worker job_timeout",
		},
		{
			name:      "non-positive shutdown timeout",
			mutate:    func(c *Config) { c.Worker.ShutdownTimeout = 0 },
			wantErr:   true,
			errString: "worker shutdown_timeout",
		},
		{
			name:      "openai provider without key env",
			mutate:    func(c *Config) { c.Engine.APIKeyEnv = "" },
			wantErr:   true,
			errString: "api_key_env is required",
		},
		{
			name:      "unknown engine provider",
			mutate:    func(c *Config) { c.Engine.Provider = "whisperx" },
			wantErr:   true,
			errString: "unknown engine provider",
		},
		{
			name:    "stub provider needs no key",
			mutate:  func(c *Config) { c.Engine.Provider = "stub"; c.Engine.APIKeyEnv = "" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.ValidateWorkerConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestModelAllowed(t *testing.T) {
	cfg := TranscriptionConfig{AllowedModels: []string{"tiny", "base"}}
	assert.True(t, cfg.ModelAllowed("tiny"))
	assert.False(t, cfg.ModelAllowed("large-v3"))
	assert.False(t, cfg.ModelAllowed(""))
}
