package cfg

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Secret struct {
	value []byte
}

func NewSecret(s string) Secret {
	return Secret{value: []byte(s)}
}
func (s Secret) Value() string {
	return string(s.value)
}
func (s Secret) Wipe() {
	for i := range s.value {
		s.value[i] = 0
	}
}
func (s Secret) String() string {
	return "***REDACTED***"
}

type Cfg struct {
	Port        string
	Environment string
	LogLevel    string

	SnapshotPath string
	UploadDir    string

	PostCooldown  time.Duration
	MessageMinLen int
	MessageMaxLen int
	HistoryCap    int

	PasteMinSize  int
	PasteMaxSize  int
	SweepInterval time.Duration
	PasteMaxAge   time.Duration

	OnlineWindow time.Duration

	RateLimit      RateLimitCfg
	TrustedProxies []string

	Argon2Time        uint32
	Argon2Memory      uint32
	Argon2Parallelism uint8
	Argon2KeyLen      uint32
	Pepper            Secret

	ContextTimeout time.Duration
}

type RateLimitCfg struct {
	RPM        int
	Burst      int
	MaxClients int
}

func Load() (*Cfg, error) {
	c := &Cfg{}
	c.Port = getEnv("PORT", "8080")
	c.Environment = getEnv("ENVIRONMENT", "development")
	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.SnapshotPath = getEnv("SNAPSHOT_PATH", "output/state.json")
	c.UploadDir = getEnv("UPLOAD_DIR", "output/uploads")
	var err error
	c.PostCooldown, err = getDuration("POST_COOLDOWN", time.Hour)
	if err != nil {
		return nil, err
	}
	c.MessageMinLen, err = getInt("MESSAGE_MIN_LEN", 3)
	if err != nil {
		return nil, err
	}
	c.MessageMaxLen, err = getInt("MESSAGE_MAX_LEN", 150)
	if err != nil {
		return nil, err
	}
	c.HistoryCap, err = getInt("HISTORY_CAP", 50)
	if err != nil {
		return nil, err
	}
	c.PasteMinSize, err = getInt("PASTE_MIN_SIZE", 1)
	if err != nil {
		return nil, err
	}
	c.PasteMaxSize, err = getInt("PASTE_MAX_SIZE", 64*1024)
	if err != nil {
		return nil, err
	}
	c.SweepInterval, err = getDuration("SWEEP_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	c.PasteMaxAge, err = getDuration("PASTE_MAX_AGE", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	c.OnlineWindow, err = getDuration("ONLINE_WINDOW", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	c.RateLimit.RPM, err = getInt("RATE_LIMIT_RPM", 60)
	if err != nil {
		return nil, err
	}
	c.RateLimit.Burst, err = getInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}
	c.RateLimit.MaxClients, err = getInt("RATE_LIMIT_MAX_CLIENTS", 10000)
	if err != nil {
		return nil, err
	}
	c.TrustedProxies = getSlice("TRUSTED_PROXIES", []string{})
	c.Argon2Time, err = getUint32("ARGON2_TIME", 4)
	if err != nil {
		return nil, err
	}
	c.Argon2Memory, err = getUint32("ARGON2_MEMORY", 64*1024)
	if err != nil {
		return nil, err
	}
	p, err := getUint32("ARGON2_PARALLELISM", 2)
	if err != nil {
		return nil, err
	}
	if p > 255 {
		return nil, errors.New("ARGON2_PARALLELISM must be <= 255")
	}
	c.Argon2Parallelism = uint8(p)
	c.Argon2KeyLen, err = getUint32("ARGON2_KEYLEN", 32)
	if err != nil {
		return nil, err
	}
	c.Pepper = NewSecret(getEnv("PEPPER", ""))
	c.ContextTimeout, err = getDuration("CONTEXT_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func Validate(c *Cfg) error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return errors.New("PORT must be a number")
	}
	if c.SnapshotPath == "" {
		return errors.New("SNAPSHOT_PATH is required")
	}
	if c.UploadDir == "" {
		return errors.New("UPLOAD_DIR is required")
	}
	if c.PostCooldown < 0 {
		return errors.New("POST_COOLDOWN must not be negative")
	}
	if c.MessageMinLen < 1 {
		return errors.New("MESSAGE_MIN_LEN must be positive")
	}
	if c.MessageMaxLen < c.MessageMinLen {
		return errors.New("MESSAGE_MAX_LEN must be >= MESSAGE_MIN_LEN")
	}
	if c.HistoryCap < 1 {
		return errors.New("HISTORY_CAP must be positive")
	}
	if c.PasteMinSize < 0 || c.PasteMaxSize <= 0 || c.PasteMinSize > c.PasteMaxSize {
		return errors.New("paste size bounds are inconsistent")
	}
	if c.PasteMaxSize > 10*1024*1024 {
		return errors.New("PASTE_MAX_SIZE cannot exceed 10MB")
	}
	if c.SweepInterval < time.Minute {
		return errors.New("SWEEP_INTERVAL must be at least 1 minute")
	}
	if c.PasteMaxAge < c.SweepInterval {
		return errors.New("PASTE_MAX_AGE must be >= SWEEP_INTERVAL")
	}
	if c.OnlineWindow <= 0 {
		return errors.New("ONLINE_WINDOW must be positive")
	}
	if c.RateLimit.RPM <= 0 {
		return errors.New("RATE_LIMIT_RPM must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return errors.New("RATE_LIMIT_BURST must be positive")
	}
	if c.RateLimit.MaxClients <= 0 {
		return errors.New("RATE_LIMIT_MAX_CLIENTS must be positive")
	}
	for _, proxy := range c.TrustedProxies {
		if strings.Contains(proxy, "/") {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("invalid CIDR in TRUSTED_PROXIES: %s", proxy)
			}
		} else {
			if net.ParseIP(proxy) == nil {
				return fmt.Errorf("invalid IP in TRUSTED_PROXIES: %s", proxy)
			}
		}
	}
	if c.Argon2Time < 1 {
		return errors.New("ARGON2_TIME must be at least 1")
	}
	if c.Argon2Memory < 8*1024 {
		return errors.New("ARGON2_MEMORY must be >= 8192 KiB")
	}
	if c.Argon2Parallelism < 1 {
		return errors.New("ARGON2_PARALLELISM must be at least 1")
	}
	if c.Argon2KeyLen < 16 {
		return errors.New("ARGON2_KEYLEN must be >= 16")
	}
	if len(c.Pepper.Value()) < 16 {
		return errors.New("PEPPER must be at least 16 bytes")
	}
	return nil
}

func (c *Cfg) Wipe() {
	c.Pepper.Wipe()
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
func getInt(key string, fallback int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return v, nil
}
func getUint32(key string, fallback uint32) (uint32, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid uint32 for %s: %w", key, err)
	}
	return uint32(v), nil
}
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return v, nil
}
func getSlice(key string, fallback []string) []string {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
