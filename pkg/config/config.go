package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedding struct {
		Backend   string  `yaml:"backend"` // "openai" or "ollama"
		BaseURL   string  `yaml:"base_url"`
		Model     string  `yaml:"model"`
		BatchSize int     `yaml:"batch_size"`
		RateLimit float64 `yaml:"rate_limit"` // requests per second
	} `yaml:"embedding"`

	Knowledge struct {
		Dir         string `yaml:"dir"`          // filesystem knowledge base root
		ManifestURL string `yaml:"manifest_url"` // optional HTTP source
		DatabaseURL string `yaml:"database_url"` // optional Postgres source
	} `yaml:"knowledge"`

	Processor struct {
		ChunkSize    int      `yaml:"chunk_size"`
		ChunkOverlap int      `yaml:"chunk_overlap"`
		Separators   []string `yaml:"separators"`
	} `yaml:"processor"`

	Retrieval struct {
		TopK       int `yaml:"top_k"`
		Oversample int `yaml:"oversample"` // multiplier applied when a category filter is set
	} `yaml:"retrieval"`

	Store struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"store"`

	Pricing struct {
		RulesPath string `yaml:"rules_path"` // empty means the embedded tariff tables
	} `yaml:"pricing"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/concierge/config.yaml"),
			"/etc/concierge/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Embedding.Backend == "" {
		config.Embedding.Backend = "openai"
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "text-embedding-3-small"
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 64
	}
	if config.Embedding.RateLimit == 0 {
		config.Embedding.RateLimit = 4.0
	}

	if config.Knowledge.Dir == "" {
		config.Knowledge.Dir = "knowledge-base"
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}
	if len(config.Processor.Separators) == 0 {
		config.Processor.Separators = []string{"\n## ", "\n### ", "\n\n", "\n", " ", ""}
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 4
	}
	if config.Retrieval.Oversample == 0 {
		config.Retrieval.Oversample = 2
	}

	if config.Store.TableName == "" {
		config.Store.TableName = "knowledge_chunks"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 1536
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("EMBEDDING_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
		if config.Knowledge.DatabaseURL == "" {
			config.Knowledge.DatabaseURL = dbURL
		}
	}
	if dir := os.Getenv("KNOWLEDGE_DIR"); dir != "" {
		config.Knowledge.Dir = dir
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}
