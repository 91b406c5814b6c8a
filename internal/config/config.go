package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig `yaml:"server"`
	Servers []ToolServer `yaml:"servers"`

	// Azure comes from the environment, never from the YAML file.
	Azure AzureOpenAI `yaml:"-"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	UploadDir  string `yaml:"upload_dir"`
	DBPath     string `yaml:"db_path"`
}

// ToolServer is one registered remote tool server endpoint.
type ToolServer struct {
	Name        string            `yaml:"name"`
	URL         string            `yaml:"url"`
	Transport   string            `yaml:"transport,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// AzureOpenAI holds the completion and embedding service settings. The
// embedding block is read here for deployment completeness; the retrieval
// tool server is the component that actually talks to the embedding API.
type AzureOpenAI struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string

	EmbeddingAPIKey     string
	EmbeddingEndpoint   string
	EmbeddingDeployment string
	EmbeddingAPIVersion string
}

// Complete reports whether the completion-side settings are sufficient to
// construct a chat client.
func (a AzureOpenAI) Complete() bool {
	return a.APIKey != "" && a.Endpoint != "" && a.Deployment != ""
}

func AzureFromEnv() AzureOpenAI {
	return AzureOpenAI{
		APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		Deployment: os.Getenv("AZURE_OPENAI_MODEL_NAME"),
		APIVersion: os.Getenv("AZURE_OPENAI_MODEL_API_VERSION"),

		EmbeddingAPIKey:     os.Getenv("AZURE_OPENAI_EMBEDDING_API_KEY"),
		EmbeddingEndpoint:   os.Getenv("AZURE_OPENAI_EMBEDDING_ENDPOINT"),
		EmbeddingDeployment: os.Getenv("AZURE_OPENAI_EMBEDDING_MODEL_NAME"),
		EmbeddingAPIVersion: os.Getenv("AZURE_OPENAI_EMBEDDING_MODEL_API_VERSION"),
	}
}

func normalizeTransport(value string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "http", "streamable-http":
		return "http", nil
	case "sse":
		return "sse", nil
	default:
		return "", fmt.Errorf("unsupported transport %q (expected http or sse)", value)
	}
}

func DefaultConfigPath() string {
	if envPath := strings.TrimSpace(os.Getenv("DOCBRIDGE_CONFIG")); envPath != "" {
		return envPath
	}
	return "docbridge.yaml"
}

func DefaultListenAddr() string { return ":8080" }

func DefaultUploadDir() string { return filepath.Join("data", "uploads") }

func DefaultDBPath() string { return filepath.Join("data", "docbridge.db") }

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	for i := range cfg.Servers {
		s := &cfg.Servers[i]
		s.URL = os.ExpandEnv(s.URL)
		for k, v := range s.Headers {
			s.Headers[k] = os.ExpandEnv(v)
		}
		transport, transportErr := normalizeTransport(s.Transport)
		if transportErr != nil {
			return nil, transportErr
		}
		s.Transport = transport
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	cfg.Azure = AzureFromEnv()
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := validate(cfg); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, out, 0o600); err != nil {
		return err
	}
	if _, err := Load(tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("resulting config is invalid: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// LoadOrInit loads the config, seeding a default file pointing at the
// standard local tool server endpoints when none exists yet.
func LoadOrInit(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	cfg = &Config{
		Server: ServerConfig{
			ListenAddr: DefaultListenAddr(),
			UploadDir:  DefaultUploadDir(),
			DBPath:     DefaultDBPath(),
		},
		Servers: []ToolServer{
			{
				Name:        "DocumentService",
				URL:         "http://localhost:8001/sse",
				Transport:   "sse",
				Description: "Document processing and vector storage service",
			},
			{
				Name:        "RAGService",
				URL:         "http://localhost:8002/sse",
				Transport:   "sse",
				Description: "RAG search and retrieval service",
			},
		},
	}
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	cfg.Azure = AzureFromEnv()
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr()
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = DefaultUploadDir()
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = DefaultDBPath()
	}
}

func validate(cfg *Config) error {
	seen := map[string]bool{}
	for _, s := range cfg.Servers {
		if s.Name == "" {
			return errors.New("server name is required")
		}
		if _, err := normalizeTransport(s.Transport); err != nil {
			return fmt.Errorf("server %q: %w", s.Name, err)
		}
		if s.URL == "" {
			return fmt.Errorf("server %q url is required", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate server name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}
