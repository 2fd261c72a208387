package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the main configuration for hrsync.
type Config struct {
	BaseDir    string             `toml:"base_dir"`
	LogDir     string             `toml:"log_dir"`
	Database   DatabaseConfig     `toml:"database"`
	Source     SourceConfig       `toml:"source"`
	Archive    ArchiveConfig      `toml:"archive"`
	Encryption EncryptionConfig   `toml:"encryption"`
	Notify     NotifyConfig       `toml:"notify"`
	Timeouts   TimeoutsConfig     `toml:"timeouts"`
	Import     ImportConfig       `toml:"import"`
	Sources    []SourceFileConfig `toml:"sources"`
}

// DatabaseConfig represents configuration for the reconciliation database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "postgres"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite

	// PostgreSQL-specific fields (only used when Type == "postgres")
	DSN      string `toml:"dsn,omitempty"`
	Host     string `toml:"host,omitempty"`
	Port     int    `toml:"port,omitempty"`
	User     string `toml:"user,omitempty"`
	Password string `toml:"password,omitempty"` // or HRSYNC_DB_PASSWORD
	Name     string `toml:"name,omitempty"`
	SSLMode  string `toml:"ssl_mode,omitempty"`

	MaxOpenConns    int      `toml:"max_open_conns,omitempty"`
	MaxIdleConns    int      `toml:"max_idle_conns,omitempty"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime,omitempty"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c DatabaseConfig) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "require"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.User, c.Password, c.Name, ssl)
}

// SourceConfig represents the remote location exports are dropped in.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SourceConfig struct {
	Type string `toml:"type"` // "sftp", "s3", "filesystem" or "memory"
	Dir  string `toml:"dir"`  // default remote directory for sources without one

	// SFTP-specific fields (only used when Type == "sftp")
	Host                  string `toml:"host,omitempty"`
	Port                  int    `toml:"port,omitempty"`
	User                  string `toml:"user,omitempty"`
	Password              string `toml:"password,omitempty"` // or HRSYNC_SFTP_PASSWORD
	PrivateKeyPath        string `toml:"private_key_path,omitempty"`
	KnownHostsPath        string `toml:"known_hosts_path,omitempty"`
	InsecureIgnoreHostKey bool   `toml:"insecure_ignore_host_key,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"-"` // HRSYNC_S3_ACCESS_KEY_ID
	S3SecretAccessKey string `toml:"-"` // HRSYNC_S3_SECRET_ACCESS_KEY

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// ArchiveConfig represents where raw export files are kept.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type    string `toml:"type"` // "none", "filesystem", "s3" or "memory"
	Encrypt bool   `toml:"encrypt"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for archive encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NotifyConfig represents the operator notification transport.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type NotifyConfig struct {
	Type string `toml:"type"` // "smtp", "log" or "none"

	From          string   `toml:"from,omitempty"`
	To            []string `toml:"to,omitempty"`
	SubjectPrefix string   `toml:"subject_prefix,omitempty"`

	// SMTP-specific fields (only used when Type == "smtp")
	Host     string `toml:"host,omitempty"`
	Port     int    `toml:"port,omitempty"`
	Username string `toml:"username,omitempty"`
	Password string `toml:"password,omitempty"` // or HRSYNC_SMTP_PASSWORD
	TLS      string `toml:"tls,omitempty"`      // "mandatory" (default), "opportunistic" or "none"
}

// TimeoutsConfig bounds every blocking call of an import run.
type TimeoutsConfig struct {
	Connect  Duration `toml:"connect"`
	Download Duration `toml:"download"`
	Store    Duration `toml:"store"`
	Notify   Duration `toml:"notify"`
}

// ImportConfig holds pipeline tuning.
type ImportConfig struct {
	DiffBatchSize     int  `toml:"diff_batch_size"`
	DefaultBatchSize  int  `toml:"default_batch_size"`
	RetryConnectivity bool `toml:"retry_connectivity"`
}

// SourceFileConfig describes one export file family.
type SourceFileConfig struct {
	Name        string            `toml:"name"`
	Table       string            `toml:"table"`
	Dir         string            `toml:"dir,omitempty"`
	Pattern     string            `toml:"pattern,omitempty"`
	Exclude     []string          `toml:"exclude,omitempty"`
	Format      string            `toml:"format,omitempty"`
	Key         []string          `toml:"key"`
	BatchSize   int               `toml:"batch_size,omitempty"`
	Required    bool              `toml:"required"`
	ColumnMap   map[string]string `toml:"column_map,omitempty"`
	ColumnTypes map[string]string `toml:"column_types,omitempty"`
}

// Duration is a time.Duration that reads and writes TOML strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Tables are the target tables the pipeline can write.
var Tables = []string{"employees", "terminations", "attendance", "incidents"}

// NewConfig creates a new Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	cfg := &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Source: SourceConfig{
			Type:           "sftp",
			Port:           22,
			Dir:            "/exports",
			KnownHostsPath: filepath.Join(baseDir, "known_hosts"),
		},
		Archive: ArchiveConfig{
			Type:    "filesystem",
			Encrypt: true,
			FSRoot:  filepath.Join(baseDir, "archive"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "hrsync.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "hrsync.key"),
		},
		Notify: NotifyConfig{Type: "log"},
		Sources: []SourceFileConfig{
			{Name: "employees.csv", Table: "employees", Pattern: "employees*.csv", Key: []string{"employee_number"}, Required: true},
			{Name: "terminations.csv", Table: "terminations", Pattern: "terminations*.csv", Key: []string{"employee_number"}},
			{Name: "attendance.csv", Table: "attendance", Pattern: "attendance*.csv", Key: []string{"employee_number", "week_start"}},
			{Name: "incidents.csv", Table: "incidents", Pattern: "incidents*.csv", Key: []string{"incident_id"}},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset tuning values.
func (c *Config) ApplyDefaults() {
	if c.Timeouts.Connect.Duration == 0 {
		c.Timeouts.Connect.Duration = 30 * time.Second
	}
	if c.Timeouts.Download.Duration == 0 {
		c.Timeouts.Download.Duration = 5 * time.Minute
	}
	if c.Timeouts.Store.Duration == 0 {
		c.Timeouts.Store.Duration = time.Minute
	}
	if c.Timeouts.Notify.Duration == 0 {
		c.Timeouts.Notify.Duration = 30 * time.Second
	}
	if c.Import.DiffBatchSize == 0 {
		c.Import.DiffBatchSize = 100
	}
	if c.Import.DefaultBatchSize == 0 {
		c.Import.DefaultBatchSize = 100
	}
	if c.Archive.Type == "" {
		c.Archive.Type = "none"
	}
	if c.Notify.Type == "" {
		c.Notify.Type = "none"
	}
}

// Validate checks the source definitions.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, s := range c.Sources {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name is required", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate source %q", i, s.Name))
		}
		seen[s.Name] = true
		if !knownTable(s.Table) {
			errs = append(errs, fmt.Errorf("source %q: unknown table %q (want one of %s)", s.Name, s.Table, strings.Join(Tables, ", ")))
		}
		if len(s.Key) == 0 {
			errs = append(errs, fmt.Errorf("source %q: key is required", s.Name))
		}
		for _, k := range s.Key {
			if strings.TrimSpace(k) == "" {
				errs = append(errs, fmt.Errorf("source %q: blank key field", s.Name))
			}
		}
		if s.BatchSize < 0 {
			errs = append(errs, fmt.Errorf("source %q: batch_size must not be negative", s.Name))
		}
	}
	return errors.Join(errs...)
}

func knownTable(t string) bool {
	for _, known := range Tables {
		if t == known {
			return true
		}
	}
	return false
}

// ApplyEnv fills empty secrets from the environment.
func (c *Config) ApplyEnv() {
	setFromEnv(&c.Source.Password, "HRSYNC_SFTP_PASSWORD")
	setFromEnv(&c.Notify.Password, "HRSYNC_SMTP_PASSWORD")
	setFromEnv(&c.Database.Password, "HRSYNC_DB_PASSWORD")
	setFromEnv(&c.Source.S3AccessKeyID, "HRSYNC_S3_ACCESS_KEY_ID")
	setFromEnv(&c.Source.S3SecretAccessKey, "HRSYNC_S3_SECRET_ACCESS_KEY")
}

func setFromEnv(field *string, key string) {
	if *field != "" {
		return
	}
	if v, ok := os.LookupEnv(key); ok {
		*field = v
	}
}

// LoadEnvFile loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path. A .env file in
// the same directory is loaded first and secrets are taken from the
// environment when the file leaves them empty.
func ReadFromFile(path string) (*Config, error) {
	if err := LoadEnvFile(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
