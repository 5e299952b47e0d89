package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
	"github.com/yungbote/archivebridge-backend/internal/utils"
)

// Config collects every environment-driven knob of the processor.
type Config struct {
	// Downstream service hosts, one per pipeline concern. The import
	// host serves both IE and IP imports.
	ImportHost      string
	IPBuilderHost   string
	ObjValidatorHost string
	PreparationHost string
	SIPBuilderHost  string
	TransferHost    string
	IngestHost      string

	// BackendHost is reported as the origin of abort requests issued
	// by this processor.
	BackendHost string

	PollInterval       time.Duration
	ProcessTimeout     time.Duration
	RequestTimeout     time.Duration
	RequestMaxRetries  int
	RequestRetryDelay  time.Duration
	RecordConcurrency  int
	PushInterval       time.Duration
	LogErrorTracebacks bool

	WorkerPoolSize int

	Archives               map[string]pipeline.ArchiveConfiguration
	DefaultTargetArchiveID string

	CORSAllowedOrigins []string
}

// Load reads the full configuration from the environment. Archive
// configuration errors are fatal for startup since every job needs a
// resolvable target archive.
func Load(log *logger.Logger) (*Config, error) {
	cfg := &Config{
		ImportHost:       utils.GetEnv("IMPORT_MODULE_HOST", "http://localhost:8080", log),
		IPBuilderHost:    utils.GetEnv("IP_BUILDER_HOST", "http://localhost:8081", log),
		ObjValidatorHost: utils.GetEnv("OBJECT_VALIDATOR_HOST", "http://localhost:8082", log),
		PreparationHost:  utils.GetEnv("PREPARATION_MODULE_HOST", "http://localhost:8083", log),
		SIPBuilderHost:   utils.GetEnv("SIP_BUILDER_HOST", "http://localhost:8084", log),
		TransferHost:     utils.GetEnv("TRANSFER_MODULE_HOST", "http://localhost:8085", log),
		IngestHost:       utils.GetEnv("BACKEND_HOST", "http://localhost:8086", log),

		PollInterval:       utils.GetEnvAsSeconds("REQUEST_POLL_INTERVAL", time.Second, log),
		ProcessTimeout:     utils.GetEnvAsSeconds("PROCESS_TIMEOUT", 30*time.Second, log),
		RequestTimeout:     utils.GetEnvAsSeconds("REQUEST_TIMEOUT", 10*time.Second, log),
		RequestMaxRetries:  utils.GetEnvAsInt("PROCESS_REQUEST_MAX_RETRIES", 1, log),
		RequestRetryDelay:  utils.GetEnvAsSeconds("PROCESS_REQUEST_RETRY_INTERVAL", time.Second, log),
		RecordConcurrency:  utils.GetEnvAsInt("PROCESS_RECORD_CONCURRENCY", 1, log),
		PushInterval:       utils.GetEnvAsSeconds("PROCESS_INTERVAL", time.Second, log),
		LogErrorTracebacks: utils.GetEnvAsBool("PROCESS_LOG_ERROR_TRACEBACKS", false, log),

		WorkerPoolSize: utils.GetEnvAsInt("ORCHESTRA_WORKER_POOL_SIZE", 1, log),

		DefaultTargetArchiveID: utils.GetEnv("DEFAULT_TARGET_ARCHIVE_ID", "", log),
	}
	cfg.IngestHost = utils.GetEnv("INGEST_MODULE_HOST", cfg.IngestHost, log)
	cfg.BackendHost = utils.GetEnv("PROCESSOR_HOST", "http://localhost:8087", log)

	origins := utils.GetEnv("CORS_ALLOWED_ORIGINS", "*", log)
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	archives, err := loadArchives(utils.GetEnv("ARCHIVES_SRC", "", log))
	if err != nil {
		return nil, fmt.Errorf("loading archive configuration: %w", err)
	}
	cfg.Archives = archives
	if cfg.DefaultTargetArchiveID != "" {
		if _, ok := archives[cfg.DefaultTargetArchiveID]; !ok {
			return nil, fmt.Errorf("DEFAULT_TARGET_ARCHIVE_ID %q not present in archive configuration", cfg.DefaultTargetArchiveID)
		}
	}
	return cfg, nil
}

// HostForStage maps a pipeline stage to the host serving it. The IP
// Builder also serves metadata validation; only payload validation
// runs on the Object Validator.
func (c *Config) HostForStage(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageImportIEs, pipeline.StageImportIPs:
		return c.ImportHost
	case pipeline.StageBuildIP, pipeline.StageValidationMetadata:
		return c.IPBuilderHost
	case pipeline.StageValidationPayload:
		return c.ObjValidatorHost
	case pipeline.StagePrepareIP:
		return c.PreparationHost
	case pipeline.StageBuildSIP:
		return c.SIPBuilderHost
	case pipeline.StageTransfer:
		return c.TransferHost
	case pipeline.StageIngest:
		return c.IngestHost
	}
	return ""
}

// loadArchives accepts either an inline JSON object or a path to a
// JSON/YAML file mapping archive id to configuration.
func loadArchives(src string) (map[string]pipeline.ArchiveConfiguration, error) {
	out := map[string]pipeline.ArchiveConfiguration{}
	if src == "" {
		return out, nil
	}
	raw := []byte(src)
	asYAML := false
	if !strings.HasPrefix(strings.TrimSpace(src), "{") {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", src, err)
		}
		raw = data
		switch strings.ToLower(filepath.Ext(src)) {
		case ".yml", ".yaml":
			asYAML = true
		}
	}
	if asYAML {
		if err := yaml.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
	} else {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
	}
	for id, a := range out {
		if a.ID == "" {
			a.ID = id
		}
		if a.Type == "" {
			a.Type = pipeline.ArchiveRosettaRESTV0
		}
		if a.Type != pipeline.ArchiveRosettaRESTV0 {
			return nil, fmt.Errorf("archive %q has unsupported type %q", id, a.Type)
		}
		out[id] = a
	}
	return out, nil
}
