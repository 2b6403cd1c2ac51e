package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rpattn/formrecon/internal/db"
	"github.com/rpattn/formrecon/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. FORMRECON_FORMD_URL.
const EnvPrefix = "FORMRECON"

// LoadOptions locate the configuration sources.
type LoadOptions struct {
	// ConfigPath is the directory searched for config.yaml.
	ConfigPath string
	// ConfigFile, when set, names the file directly.
	ConfigFile string
	// EnvFiles are loaded into the process environment before env binding.
	// Missing files are skipped.
	EnvFiles []string
}

// Load reads defaults, then config.yaml, then the environment, and validates
// the result.
func Load(opts LoadOptions) (Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env", ".env.local"}
	}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return Config{}, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		path := opts.ConfigPath
		if path == "" {
			path = "."
		}
		v.AddConfigPath(path)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	def := Default()
	for _, store := range []struct {
		prefix string
		cfg    db.Config
	}{{"formd", def.FormD}, {"adv", def.ADV}} {
		v.SetDefault(store.prefix+".url", "")
		v.SetDefault(store.prefix+".host", store.cfg.Host)
		v.SetDefault(store.prefix+".port", store.cfg.Port)
		v.SetDefault(store.prefix+".user", store.cfg.User)
		v.SetDefault(store.prefix+".password", store.cfg.Password)
		v.SetDefault(store.prefix+".dbname", store.cfg.DBName)
		v.SetDefault(store.prefix+".sslmode", store.cfg.SSLMode)
		v.SetDefault(store.prefix+".max_conns", store.cfg.MaxConns)
		v.SetDefault(store.prefix+".simple_protocol", false)
	}
	v.SetDefault("issues.store", string(def.IssueStore))

	v.SetDefault("detect.grace_period_days", def.Detect.GracePeriodDays)
	v.SetDefault("detect.amendment_deadline", def.Detect.AmendmentDeadline.String())
	v.SetDefault("detect.lookback_months", def.Detect.LookbackMonths)
	v.SetDefault("detect.aum_years", def.Detect.AUMYears)
	v.SetDefault("detect.enabled", typeNames(def.Detect.Enabled))
	v.SetDefault("detect.fan_out", def.Detect.FanOut)
	v.SetDefault("detect.register_check", def.Detect.RegisterCheck)
	v.SetDefault("detect.admin_umbrellas", def.Detect.AdminUmbrellas)

	v.SetDefault("fetch.page_size", def.Fetch.PageSize)
	v.SetDefault("fetch.record_ceiling", def.Fetch.RecordCeiling)
	v.SetDefault("fetch.match_ceiling", def.Fetch.MatchCeiling)
	v.SetDefault("fetch.adviser_ceiling", def.Fetch.AdviserCeiling)

	v.SetDefault("materialize.batch_size", def.Materialize.BatchSize)

	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Default()
	cfg.FormD = storeConfig(v, "formd")
	cfg.ADV = storeConfig(v, "adv")
	cfg.IssueStore = Store(strings.ToLower(strings.TrimSpace(v.GetString("issues.store"))))

	deadline, err := domain.ParseMonthDay(v.GetString("detect.amendment_deadline"))
	if err != nil {
		return Config{}, fmt.Errorf("detect.amendment_deadline: %w", err)
	}
	years, err := intList(v.Get("detect.aum_years"))
	if err != nil {
		return Config{}, fmt.Errorf("detect.aum_years: %w", err)
	}
	enabled, err := ParseDetectorList(stringList(v.Get("detect.enabled")))
	if err != nil {
		return Config{}, fmt.Errorf("detect.enabled: %w", err)
	}

	cfg.Detect = DetectConfig{
		GracePeriodDays:   v.GetInt("detect.grace_period_days"),
		AmendmentDeadline: deadline,
		LookbackMonths:    v.GetInt("detect.lookback_months"),
		AUMYears:          years,
		Enabled:           enabled,
		FanOut:            v.GetInt("detect.fan_out"),
		RegisterCheck:     v.GetBool("detect.register_check"),
		AdminUmbrellas:    stringList(v.Get("detect.admin_umbrellas")),
	}
	cfg.Fetch = FetchConfig{
		PageSize:       v.GetInt("fetch.page_size"),
		RecordCeiling:  v.GetInt("fetch.record_ceiling"),
		MatchCeiling:   v.GetInt("fetch.match_ceiling"),
		AdviserCeiling: v.GetInt("fetch.adviser_ceiling"),
	}
	cfg.Materialize = MaterializeConfig{BatchSize: v.GetInt("materialize.batch_size")}
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")
	return cfg, nil
}

func storeConfig(v *viper.Viper, prefix string) db.Config {
	return db.Config{
		URL:            v.GetString(prefix + ".url"),
		Host:           v.GetString(prefix + ".host"),
		Port:           v.GetInt(prefix + ".port"),
		User:           v.GetString(prefix + ".user"),
		Password:       v.GetString(prefix + ".password"),
		DBName:         v.GetString(prefix + ".dbname"),
		SSLMode:        v.GetString(prefix + ".sslmode"),
		MaxConns:       v.GetInt32(prefix + ".max_conns"),
		SimpleProtocol: v.GetBool(prefix + ".simple_protocol"),
	}
}

// ParseDetectorList resolves detector names, keeping their order.
func ParseDetectorList(names []string) ([]domain.DiscrepancyType, error) {
	types := make([]domain.DiscrepancyType, 0, len(names))
	for _, name := range names {
		t, err := domain.ParseDiscrepancyType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func typeNames(types []domain.DiscrepancyType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

// stringList accepts a YAML sequence or a comma separated env value.
func stringList(raw any) []string {
	var parts []string
	switch value := raw.(type) {
	case nil:
		return nil
	case string:
		parts = strings.Split(value, ",")
	case []string:
		parts = value
	case []any:
		for _, item := range value {
			parts = append(parts, fmt.Sprint(item))
		}
	case []int:
		for _, item := range value {
			parts = append(parts, strconv.Itoa(item))
		}
	default:
		parts = []string{fmt.Sprint(value)}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intList(raw any) ([]int, error) {
	parts := stringList(raw)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}
