// Package ops loads the engine's file configuration and resolves it into
// runtime settings.
package ops

import (
	"encoding/json"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Redis    RedisConfig    `json:"redis"`
	Snapshot SnapshotConfig `json:"snapshot"`
	Exchange ExchangeConfig `json:"exchange"`
}

// RedisConfig names the connection and the queues shared with the
// collaborators.
type RedisConfig struct {
	Addr         string `json:"addr"`
	Password     string `json:"password"`
	DB           int    `json:"db"`
	CommandQueue string `json:"commandQueue"`
	DBQueue      string `json:"dbQueue"`
}

// SnapshotConfig controls the periodic checkpoint.
type SnapshotConfig struct {
	Enabled         bool   `json:"enabled"`
	Path            string `json:"path"`
	IntervalSeconds int    `json:"intervalSeconds"`
}

// ExchangeConfig defines the bootstrap universe used when no snapshot is
// available.
type ExchangeConfig struct {
	BaseCurrency     string   `json:"baseCurrency"`
	Markets          []string `json:"markets"`
	BootstrapUsers   []string `json:"bootstrapUsers"`
	BootstrapBalance string   `json:"bootstrapBalance"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CommandQueue  string
	DBQueue       string

	SnapshotEnabled  bool
	SnapshotPath     string
	SnapshotInterval time.Duration

	BaseCurrency     string
	Markets          []string
	BootstrapUsers   []string
	BootstrapBalance decimal.Decimal
}

// Load reads and resolves the config file. An empty path yields the
// defaults.
func Load(path string) (Loaded, error) {
	var file FileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Loaded{}, errors.Wrap(err, "read config file")
		}
		if err := json.Unmarshal(data, &file); err != nil {
			return Loaded{}, errors.Wrap(err, "parse config file")
		}
	}
	return resolve(file)
}

func resolve(file FileConfig) (Loaded, error) {
	loaded := Loaded{
		RedisAddr:     file.Redis.Addr,
		RedisPassword: file.Redis.Password,
		RedisDB:       file.Redis.DB,
		CommandQueue:  file.Redis.CommandQueue,
		DBQueue:       file.Redis.DBQueue,

		SnapshotEnabled:  file.Snapshot.Enabled,
		SnapshotPath:     file.Snapshot.Path,
		SnapshotInterval: time.Duration(file.Snapshot.IntervalSeconds) * time.Second,

		BaseCurrency:   file.Exchange.BaseCurrency,
		Markets:        file.Exchange.Markets,
		BootstrapUsers: file.Exchange.BootstrapUsers,
	}

	if loaded.CommandQueue == "" {
		loaded.CommandQueue = "messages"
	}
	if loaded.DBQueue == "" {
		loaded.DBQueue = "db_processor"
	}
	if loaded.SnapshotPath == "" {
		loaded.SnapshotPath = "./snapshot.json"
	}
	if loaded.SnapshotInterval <= 0 {
		loaded.SnapshotInterval = 3 * time.Second
	}
	if loaded.BaseCurrency == "" {
		loaded.BaseCurrency = "INR"
	}
	if len(loaded.Markets) == 0 {
		loaded.Markets = []string{"TATA_" + loaded.BaseCurrency}
	}
	if len(loaded.BootstrapUsers) == 0 {
		loaded.BootstrapUsers = []string{"1", "2", "5"}
	}

	balance := file.Exchange.BootstrapBalance
	if balance == "" {
		balance = "10000000"
	}
	parsed, err := decimal.NewFromString(balance)
	if err != nil || parsed.IsNegative() {
		return Loaded{}, errors.Errorf("invalid bootstrapBalance %q", balance)
	}
	loaded.BootstrapBalance = parsed

	return loaded, nil
}
