package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dkeye/Glimpse/internal/domain"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	LogLevel       string        `mapstructure:"log_level"`
	Listen         string        `mapstructure:"listen"`
	ServerURL      string        `mapstructure:"server_url"`
	WSURL          string        `mapstructure:"ws_url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	STUNServers    []string      `mapstructure:"stun_servers"`
	IncludeLoop    bool          `mapstructure:"include_loopback"`
	UserID         string        `mapstructure:"user_id"`
	Username       string        `mapstructure:"username"`
	RoomID         string        `mapstructure:"room_id"`
	Role           string        `mapstructure:"role"`
	RecordDir      string        `mapstructure:"record_dir"`
	VideoFile      string        `mapstructure:"video_file"`
}

// Flags declares the command-line overrides. Names match the config keys.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("glimpse", pflag.ContinueOnError)
	fs.String("role", "", "host or guest")
	fs.String("username", "", "display name")
	fs.String("user_id", "", "user id (generated when empty)")
	fs.String("room_id", "", "room to join (host: empty creates a room)")
	fs.String("server_url", "", "rendezvous REST base url")
	fs.String("ws_url", "", "rendezvous websocket url (derived from server_url when empty)")
	fs.String("listen", "", "local control API address")
	fs.String("record_dir", "", "directory to record received media into")
	fs.String("video_file", "", "IVF file streamed as local video")
	fs.String("log_level", "", "zerolog level")
	return fs
}

// Load reads config/config.<CONFIG_ENV>.yaml, then GLIMPSE_* env, then flags.
// fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("GLIMPSE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("listen", "127.0.0.1:8090")
	v.SetDefault("server_url", "http://localhost:9001")
	v.SetDefault("ws_url", "")
	v.SetDefault("connect_timeout", "5s")
	v.SetDefault("ping_period", "8s")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("include_loopback", false)
	v.SetDefault("user_id", "")
	v.SetDefault("username", "")
	v.SetDefault("room_id", "")
	v.SetDefault("role", "guest")
	v.SetDefault("record_dir", "")
	v.SetDefault("video_file", "")

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.WSURL == "" {
		ws, err := DeriveWSURL(cfg.ServerURL)
		if err != nil {
			return nil, err
		}
		cfg.WSURL = ws
	}
	log.Info().Str("module", "config").Str("server", cfg.ServerURL).Str("ws", cfg.WSURL).Str("role", cfg.Role).Msg("config ready")
	return &cfg, nil
}

// DeriveWSURL maps http(s)://host[:port] to ws(s)://host[:port]/ws.
func DeriveWSURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server url: %q", serverURL)
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host), nil
}

// Identity resolves user and role; the room id may still be empty for a host
// that has not created its room yet.
func (c *Config) Identity() (domain.Identity, error) {
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.Identity{}, err
	}
	user, err := domain.NewUser(domain.UserID(c.UserID), c.Username)
	if err != nil {
		return domain.Identity{}, err
	}
	if role == domain.RoleGuest && c.RoomID == "" {
		return domain.Identity{}, fmt.Errorf("guest needs a room_id")
	}
	return domain.Identity{User: *user, RoomID: domain.RoomID(c.RoomID), Role: role}, nil
}

func (c *Config) ICEServers() []webrtc.ICEServer {
	if len(c.STUNServers) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: c.STUNServers}}
}

// SignalURL appends the identity query the server expects on upgrade.
func SignalURL(wsURL string, user domain.User) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid ws url: %w", err)
	}
	q := u.Query()
	q.Set("userId", string(user.ID))
	q.Set("username", user.Username)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
