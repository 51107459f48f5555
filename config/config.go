// Package config loads sofa.yaml from the config directory.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	goruntime "runtime"
	"time"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the settings file inside the config directory.
	FileName = "sofa.yaml"

	envAPIURL      = "SOFA_API_URL"
	envWebLoginURL = "SOFA_WEB_LOGIN_URL"
	envLogFile     = "SOFA_LOG_FILE"

	defaultAPIURL      = "https://api.sofa.tv/v1/"
	defaultWebLoginURL = "https://sofa.tv/login"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid setting")

// Settings is the loaded configuration.
type Settings struct {
	APIURL         string
	WebLoginURL    string
	RequestTimeout time.Duration
	Skip           time.Duration
	CommitInterval time.Duration

	// RetinaScale multiplies the video box on HiDPI screens
	RetinaScale int
	// videos are scaled to fit within this box
	VideoWidth  int
	VideoHeight int

	LogFile   string
	ConfigDir string
}

// SessionPath is where the signed-in session is kept.
func (s Settings) SessionPath() string {
	return filepath.Join(s.ConfigDir, "session.json")
}

// VideoBox is the video bounding box in pixels, retina scale applied.
func (s Settings) VideoBox() (int, int) {
	scale := max(s.RetinaScale, 1)
	return s.VideoWidth * scale, s.VideoHeight * scale
}

// fileSettings is the on-disk shape of sofa.yaml
type fileSettings struct {
	APIURL         string `json:"api_url" yaml:"api_url"`
	WebLoginURL    string `json:"web_login_url" yaml:"web_login_url"`
	RequestTimeout string `json:"request_timeout" yaml:"request_timeout"`
	SkipSeconds    int    `json:"skip_seconds" yaml:"skip_seconds"`
	CommitInterval string `json:"commit_interval" yaml:"commit_interval"`
	RetinaScale    int    `json:"retina_scale" yaml:"retina_scale"`
	VideoWidth     int    `json:"video_width" yaml:"video_width"`
	VideoHeight    int    `json:"video_height" yaml:"video_height"`
	LogFile        string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
}

func defaultFile() fileSettings {
	f := fileSettings{
		APIURL:         defaultAPIURL,
		WebLoginURL:    defaultWebLoginURL,
		RequestTimeout: "20s",
		SkipSeconds:    10,
		CommitInterval: "250ms",
		RetinaScale:    1,
		VideoWidth:     270,
		VideoHeight:    480,
	}
	if goruntime.GOOS == "darwin" {
		f.RetinaScale = 2
	}
	return f
}

// DefaultDir is ~/.sofa, or .sofa in the working directory when the home
// directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sofa"
	}
	return filepath.Join(home, ".sofa")
}

// Load reads dir/sofa.yaml, writing the defaults first if it does not exist.
// .env and .env.local next to it or in the working directory are applied to
// the environment, and SOFA_* variables override the file.
func Load(dir string) (Settings, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Settings{}, fmt.Errorf("create config directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefault(path); err != nil {
			return Settings{}, err
		}
	}

	if err := loadEnvFiles(dir); err != nil {
		return Settings{}, fmt.Errorf("load env files: %w", err)
	}

	raw, err := readFile(path)
	if err != nil {
		return Settings{}, err
	}
	applyEnvOverrides(&raw)
	fillDefaults(&raw)

	s, err := raw.settings()
	if err != nil {
		return Settings{}, err
	}
	s.ConfigDir = dir
	if s.LogFile == "" {
		s.LogFile = filepath.Join(dir, "sofa.log")
	}
	return s, nil
}

func readFile(path string) (fileSettings, error) {
	c := config.New(config.WithSource(file.NewSource(path)))
	if err := c.Load(); err != nil {
		return fileSettings{}, fmt.Errorf("load config %q: %w", path, err)
	}
	defer c.Close()

	var raw fileSettings
	if err := c.Scan(&raw); err != nil {
		return fileSettings{}, fmt.Errorf("scan config %q: %w", path, err)
	}
	return raw, nil
}

func loadEnvFiles(dir string) error {
	dirs := []string{filepath.Clean(dir)}
	if cwd, err := os.Getwd(); err == nil && filepath.Clean(cwd) != dirs[0] {
		dirs = append(dirs, cwd)
	}

	var files []string
	for _, d := range dirs {
		for _, name := range []string{".env.local", ".env"} {
			fp := filepath.Join(d, name)
			if _, err := os.Stat(fp); err == nil {
				files = append(files, fp)
			}
		}
	}
	if len(files) == 0 {
		return nil
	}
	return godotenv.Overload(files...)
}

func applyEnvOverrides(f *fileSettings) {
	if v := os.Getenv(envAPIURL); v != "" {
		f.APIURL = v
	}
	if v := os.Getenv(envWebLoginURL); v != "" {
		f.WebLoginURL = v
	}
	if v := os.Getenv(envLogFile); v != "" {
		f.LogFile = v
	}
}

func fillDefaults(f *fileSettings) {
	d := defaultFile()
	if f.APIURL == "" {
		f.APIURL = d.APIURL
	}
	if f.WebLoginURL == "" {
		f.WebLoginURL = d.WebLoginURL
	}
	if f.RequestTimeout == "" {
		f.RequestTimeout = d.RequestTimeout
	}
	if f.SkipSeconds <= 0 {
		f.SkipSeconds = d.SkipSeconds
	}
	if f.CommitInterval == "" {
		f.CommitInterval = d.CommitInterval
	}
	if f.RetinaScale <= 0 {
		f.RetinaScale = d.RetinaScale
	}
	if f.VideoWidth <= 0 {
		f.VideoWidth = d.VideoWidth
	}
	if f.VideoHeight <= 0 {
		f.VideoHeight = d.VideoHeight
	}
}

func (f fileSettings) settings() (Settings, error) {
	if u, err := url.Parse(f.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return Settings{}, fmt.Errorf("%w: api_url %q", ErrInvalid, f.APIURL)
	}
	timeout, err := time.ParseDuration(f.RequestTimeout)
	if err != nil || timeout <= 0 {
		return Settings{}, fmt.Errorf("%w: request_timeout %q", ErrInvalid, f.RequestTimeout)
	}
	commit, err := time.ParseDuration(f.CommitInterval)
	if err != nil || commit <= 0 {
		return Settings{}, fmt.Errorf("%w: commit_interval %q", ErrInvalid, f.CommitInterval)
	}
	return Settings{
		APIURL:         f.APIURL,
		WebLoginURL:    f.WebLoginURL,
		RequestTimeout: timeout,
		Skip:           time.Duration(f.SkipSeconds) * time.Second,
		CommitInterval: commit,
		RetinaScale:    f.RetinaScale,
		VideoWidth:     f.VideoWidth,
		VideoHeight:    f.VideoHeight,
		LogFile:        f.LogFile,
	}, nil
}

// WriteDefault writes the default settings to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(defaultFile())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	header := []byte("# sofa terminal client\n# videos are scaled to fit within video_width x video_height\n\n")
	if err := os.WriteFile(path, append(header, data...), 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
