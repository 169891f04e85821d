// Package config assembles worker settings from built-in defaults, an
// optional TOML file and the environment. CLI flags are applied last by the
// cli package.
package config

import (
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"galarender/internal/pkg/errors"
	"galarender/internal/worker/util"
)

// Defaults shared with the CLI flag table.
const (
	DefaultRenderTool   = "blender"
	DefaultEncodeTool   = "ffmpeg"
	DefaultFrameDelay   = 30 * time.Millisecond
	DefaultOutputDir    = "/render/output"
	DefaultResolution   = "1080p"
	DefaultOutputFormat = "mp4"
	DefaultLocalRoot    = "/data"
	DefaultPrefix       = "renders"
	DefaultChannel      = "gala:render:events"
)

type Config struct {
	Tools   ToolsConfig   `toml:"tools"`
	Output  OutputConfig  `toml:"output"`
	Storage StorageConfig `toml:"storage"`
	Report  ReportConfig  `toml:"report"`
	Log     LogConfig     `toml:"log"`
}

type ToolsConfig struct {
	Render     string        `toml:"render"`
	Encode     string        `toml:"encode"`
	FrameDelay time.Duration `toml:"frame_delay"`
}

type OutputConfig struct {
	Dir string `toml:"dir"`
}

// StorageConfig selects where --publish uploads artifacts. An empty
// Provider disables publishing. Drive credentials are read from the
// environment only.
type StorageConfig struct {
	Provider       string `toml:"provider"`
	LocalRoot      string `toml:"local_root"`
	Prefix         string `toml:"prefix"`
	GDriveFolderID string `toml:"gdrive_folder_id"`

	GDriveClientID     string `toml:"-"`
	GDriveClientSecret string `toml:"-"`
	GDriveRefreshToken string `toml:"-"`
}

// ReportConfig enables job status reporting. Each sink is off while its
// address is empty.
type ReportConfig struct {
	DatabaseURL string `toml:"database_url"`
	RedisAddr   string `toml:"redis_addr"`
	Channel     string `toml:"channel"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Source bool   `toml:"source"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Tools: ToolsConfig{
			Render:     DefaultRenderTool,
			Encode:     DefaultEncodeTool,
			FrameDelay: DefaultFrameDelay,
		},
		Output: OutputConfig{Dir: DefaultOutputDir},
		Storage: StorageConfig{
			LocalRoot: DefaultLocalRoot,
			Prefix:    DefaultPrefix,
		},
		Report: ReportConfig{Channel: DefaultChannel},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path (when non-empty) over the defaults, then applies the
// environment. Unknown keys in the file are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeValidation, "config.load", "cannot read config file").
				WithField("path", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)
			return nil, errors.Validationf("unknown config keys: %s", strings.Join(keys, ", ")).
				WithField("path", path)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Tools.Render = util.Env("RENDER_TOOL", c.Tools.Render)
	c.Tools.Encode = util.Env("ENCODE_TOOL", c.Tools.Encode)
	c.Tools.FrameDelay = util.DurationEnv("MOCK_FRAME_DELAY", c.Tools.FrameDelay)

	c.Output.Dir = util.Env("RENDER_OUTPUT_DIR", c.Output.Dir)

	c.Storage.Provider = util.Env("STORAGE_PROVIDER", c.Storage.Provider)
	c.Storage.LocalRoot = util.Env("STORAGE_LOCAL_ROOT", c.Storage.LocalRoot)
	c.Storage.Prefix = util.Env("STORAGE_PREFIX", c.Storage.Prefix)
	c.Storage.GDriveFolderID = util.Env("GDRIVE_FOLDER_ID", c.Storage.GDriveFolderID)
	c.Storage.GDriveClientID = util.Env("GDRIVE_CLIENT_ID", "")
	c.Storage.GDriveClientSecret = util.Env("GDRIVE_CLIENT_SECRET", "")
	c.Storage.GDriveRefreshToken = util.Env("GDRIVE_REFRESH_TOKEN", "")

	c.Report.DatabaseURL = util.Env("DATABASE_URL", c.Report.DatabaseURL)
	c.Report.RedisAddr = util.Env("REDIS_ADDR", c.Report.RedisAddr)
	c.Report.Channel = util.Env("REPORT_CHANNEL", c.Report.Channel)

	c.Log.Level = util.Env("LOG_LEVEL", c.Log.Level)
	c.Log.Format = util.Env("LOG_FORMAT", c.Log.Format)
	c.Log.Source = util.BoolEnv("LOG_SOURCE", c.Log.Source)
}

// PublishEnabled reports whether a storage provider is configured.
func (c *Config) PublishEnabled() bool {
	return strings.TrimSpace(c.Storage.Provider) != ""
}
