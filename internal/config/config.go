package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all node configuration.
type Config struct {
	Addr   string
	DBPath string
	Debug  bool

	MockMode bool
	MockSeed uint64

	ScanIntervalSecs   uint64
	MaxDevicesPerBlock uint32
	BtScanDurationSecs uint64
	WifiEnabled        bool
	BluetoothEnabled   bool
	WifiInterface      string

	// Reporter position in centimetres.
	PositionX int32
	PositionY int32
	PositionZ int32

	BlockTimeSecs uint64
}

// Load parses command line flags and environment variables. Flags take
// precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	// Defaults and environment variables.
	cfg.Addr = getEnv("POP_ADDR", ":8080")
	cfg.DBPath = getEnv("POP_DB", defaultDBPath())
	cfg.MockMode = getEnvBool("POP_MOCK", false)
	cfg.MockSeed = getEnvUint("POP_SEED", 42)
	cfg.ScanIntervalSecs = getEnvUint("POP_SCAN_INTERVAL", 6)
	cfg.MaxDevicesPerBlock = uint32(getEnvUint("POP_MAX_DEVICES", 100))
	cfg.BtScanDurationSecs = getEnvUint("POP_BT_SCAN_DURATION", 3)
	cfg.WifiEnabled = getEnvBool("POP_WIFI", true)
	cfg.BluetoothEnabled = getEnvBool("POP_BLUETOOTH", false)
	cfg.WifiInterface = getEnv("POP_INTERFACE", "")
	cfg.BlockTimeSecs = getEnvUint("POP_BLOCK_TIME", 6)

	// Command line flags override.
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")
	flag.BoolVar(&cfg.MockMode, "mock", cfg.MockMode, "Run with the deterministic mock scanner")
	flag.Uint64Var(&cfg.MockSeed, "seed", cfg.MockSeed, "Mock scanner seed")
	flag.Uint64Var(&cfg.ScanIntervalSecs, "scan-interval", cfg.ScanIntervalSecs, "Scan loop period in seconds")
	flag.Uint64Var(&cfg.BtScanDurationSecs, "bt-scan-duration", cfg.BtScanDurationSecs, "Inner bluetooth scan window in seconds")
	flag.BoolVar(&cfg.WifiEnabled, "wifi", cfg.WifiEnabled, "Enable the WiFi radio")
	flag.BoolVar(&cfg.BluetoothEnabled, "bluetooth", cfg.BluetoothEnabled, "Enable the bluetooth radio")
	flag.StringVar(&cfg.WifiInterface, "i", cfg.WifiInterface, "WiFi interface in monitor mode (Linux)")
	flag.Uint64Var(&cfg.BlockTimeSecs, "block-time", cfg.BlockTimeSecs, "Block production period in seconds")

	maxDevices := flag.Uint("max-devices", uint(cfg.MaxDevicesPerBlock), "Max devices per block inherent")
	posX := flag.Int("pos-x", 0, "Reporter position X in cm")
	posY := flag.Int("pos-y", 0, "Reporter position Y in cm")
	posZ := flag.Int("pos-z", 0, "Reporter position Z in cm")

	flag.Parse()

	cfg.MaxDevicesPerBlock = uint32(*maxDevices)
	cfg.PositionX = int32(*posX)
	cfg.PositionY = int32(*posY)
	cfg.PositionZ = int32(*posZ)

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvUint(key string, fallback uint64) uint64 {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return fallback
}

// defaultDBPath returns ~/.popchain/popchain.db, creating the directory.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: could not resolve home directory, using current dir: %v", err)
		return "popchain.db"
	}
	dir := filepath.Join(home, ".popchain")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: could not create %s, using current dir: %v", dir, err)
		return "popchain.db"
	}
	return filepath.Join(dir, "popchain.db")
}
