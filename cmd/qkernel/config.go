package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/theapemachine/qkernel"
)

const (
	configFileName = "qkernel"
	configFileType = "yaml"
	envPrefix      = "QKERNEL"

	cfgKeyWorkers       = "workers"
	cfgKeyTrials        = "trials"
	cfgKeyFidelity      = "fidelity"
	cfgKeyDelay         = "delay"
	cfgKeyExpire        = "expire"
	cfgKeyAttempts      = "attempts"
	cfgKeyBackoff       = "backoff"
	cfgKeySeed          = "seed"
	cfgKeyMaxViolations = "max_violations"
	cfgKeyDB            = "db"
)

// loadConfig reads qkernel.yaml from path, or from the working directory when
// path is empty. A missing config file is not an error.
func loadConfig(path string) (*viper.Viper, error) {
	defaults := qkernel.NewConfig()

	v := viper.New()
	v.SetDefault(cfgKeyWorkers, defaults.Workers)
	v.SetDefault(cfgKeyTrials, defaults.Trials)
	v.SetDefault(cfgKeyFidelity, defaults.Fidelity)
	v.SetDefault(cfgKeyDelay, toDuration(defaults.Delay))
	v.SetDefault(cfgKeyExpire, toDuration(defaults.ExpireAfter))
	v.SetDefault(cfgKeyAttempts, defaults.MaxAttempts)
	v.SetDefault(cfgKeyBackoff, toDuration(defaults.Backoff))
	v.SetDefault(cfgKeySeed, defaults.Seed)
	v.SetDefault(cfgKeyMaxViolations, defaults.MaxViolations)
	v.SetDefault(cfgKeyDB, "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	return v, nil
}

// bindFlags lets explicitly set flags of cmd override file and env values.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if key == "config" {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

// campaignConfig turns the viper view into a campaign configuration.
func campaignConfig(v *viper.Viper) *qkernel.Config {
	c := qkernel.NewConfig()
	c.Workers = v.GetInt(cfgKeyWorkers)
	c.Trials = v.GetInt(cfgKeyTrials)
	c.Fidelity = v.GetFloat64(cfgKeyFidelity)
	c.Delay = fromDuration(v.GetDuration(cfgKeyDelay))
	c.ExpireAfter = fromDuration(v.GetDuration(cfgKeyExpire))
	c.MaxAttempts = v.GetInt(cfgKeyAttempts)
	c.Backoff = fromDuration(v.GetDuration(cfgKeyBackoff))
	c.Seed = v.GetUint64(cfgKeySeed)
	c.MaxViolations = v.GetInt(cfgKeyMaxViolations)
	return c
}

// Durations below a nanosecond do not survive the round trip.
func toDuration(t qkernel.SimTime) time.Duration {
	return time.Duration(t / qkernel.Nanosecond)
}

func fromDuration(d time.Duration) qkernel.SimTime {
	return qkernel.SimTime(d.Nanoseconds()) * qkernel.Nanosecond
}
