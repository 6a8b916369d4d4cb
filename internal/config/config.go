package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Debug  bool `yaml:"debug"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Ledger struct {
		Environment       string   `yaml:"environment"`
		GatewayEndpoints  []string `yaml:"gateway_endpoints"`
		WSEndpoint        string   `yaml:"ws_endpoint"`
		HubPrincipal      string   `yaml:"hub_principal"`
		TreasuryPrincipal string   `yaml:"treasury_principal"`
		ICPLedger         string   `yaml:"icp_ledger"`
		CkBTCLedger       string   `yaml:"ckbtc_ledger"`
		FailoverThreshold int      `yaml:"failover_threshold"`
	} `yaml:"ledger"`
	Payments struct {
		BaseFee           uint64 `yaml:"base_fee"`
		ConfirmTTLMinutes int    `yaml:"confirm_ttl_minutes"`
		Prices            struct {
			Subscription int64 `yaml:"subscription"`
			DaoCreation  int64 `yaml:"dao_creation"`
			Award        int64 `yaml:"award"`
			Verification int64 `yaml:"verification"`
		} `yaml:"prices"`
	} `yaml:"payments"`
	Distribution struct {
		IntervalSeconds        int64  `yaml:"interval_seconds"`
		EmissionSpacingSeconds int64  `yaml:"emission_spacing_seconds"`
		HolderSubaccount       string `yaml:"holder_subaccount"`
	} `yaml:"distribution"`
	Admin struct {
		Token string `yaml:"token"`
	} `yaml:"admin"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if len(cfg.Ledger.GatewayEndpoints) == 0 {
		return nil, errors.New("ledger.gateway_endpoints is required")
	}
	if cfg.Ledger.HubPrincipal == "" || cfg.Ledger.TreasuryPrincipal == "" {
		return nil, errors.New("ledger principals are incomplete")
	}
	return &cfg, nil
}

func (c *Config) ConfirmTTL() time.Duration {
	return time.Duration(c.Payments.ConfirmTTLMinutes) * time.Minute
}

func (c *Config) DistributionInterval() time.Duration {
	return time.Duration(c.Distribution.IntervalSeconds) * time.Second
}

func (c *Config) EmissionSpacing() time.Duration {
	return time.Duration(c.Distribution.EmissionSpacingSeconds) * time.Second
}

func applyDefaults(cfg *Config) {
	if cfg.Ledger.Environment == "" {
		cfg.Ledger.Environment = "test"
	}
	if cfg.Payments.ConfirmTTLMinutes <= 0 {
		cfg.Payments.ConfirmTTLMinutes = 15
	}
	if cfg.Payments.BaseFee == 0 {
		cfg.Payments.BaseFee = 10_000
	}
	if cfg.Distribution.IntervalSeconds <= 0 {
		cfg.Distribution.IntervalSeconds = 60
	}
	if cfg.Distribution.EmissionSpacingSeconds <= 0 {
		cfg.Distribution.EmissionSpacingSeconds = 60
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("LEDGER_ENVIRONMENT"); v != "" {
		cfg.Ledger.Environment = v
	}
	if v := os.Getenv("LEDGER_GATEWAY_ENDPOINTS"); v != "" {
		cfg.Ledger.GatewayEndpoints = splitCommaList(v)
	}
	if v := os.Getenv("LEDGER_WS_ENDPOINT"); v != "" {
		cfg.Ledger.WSEndpoint = v
	}
	if v := os.Getenv("HUB_PRINCIPAL"); v != "" {
		cfg.Ledger.HubPrincipal = v
	}
	if v := os.Getenv("TREASURY_PRINCIPAL"); v != "" {
		cfg.Ledger.TreasuryPrincipal = v
	}
	if v := os.Getenv("ICP_LEDGER_CANISTER"); v != "" {
		cfg.Ledger.ICPLedger = v
	}
	if v := os.Getenv("CKBTC_LEDGER_CANISTER"); v != "" {
		cfg.Ledger.CkBTCLedger = v
	}
	if v := os.Getenv("LEDGER_FAILOVER_THRESHOLD"); v != "" {
		cfg.Ledger.FailoverThreshold = atoiOr(cfg.Ledger.FailoverThreshold, v)
	}
	if v := os.Getenv("PAYMENT_BASE_FEE"); v != "" {
		cfg.Payments.BaseFee = atou64Or(cfg.Payments.BaseFee, v)
	}
	if v := os.Getenv("CONFIRM_TTL_MINUTES"); v != "" {
		cfg.Payments.ConfirmTTLMinutes = atoiOr(cfg.Payments.ConfirmTTLMinutes, v)
	}
	if v := os.Getenv("DISTRIBUTION_INTERVAL_SECONDS"); v != "" {
		cfg.Distribution.IntervalSeconds = atoi64Or(cfg.Distribution.IntervalSeconds, v)
	}
	if v := os.Getenv("EMISSION_SPACING_SECONDS"); v != "" {
		cfg.Distribution.EmissionSpacingSeconds = atoi64Or(cfg.Distribution.EmissionSpacingSeconds, v)
	}
	if v := os.Getenv("HOLDER_SUBACCOUNT"); v != "" {
		cfg.Distribution.HolderSubaccount = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Admin.Token = v
	}
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func atou64Or(fallback uint64, v string) uint64 {
	i, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
