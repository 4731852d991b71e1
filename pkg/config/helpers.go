package config

import (
	"sort"
	"strconv"
	"time"

	"github.com/glorpus-work/addonctl/pkg/errutils"
)

// field binds a dotted configuration key to its value.
type field struct {
	get func(c *Config) string
	set func(c *Config, value string) error
}

func stringField(ptr func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *ptr(c) },
		set: func(c *Config, value string) error {
			*ptr(c) = value
			return nil
		},
	}
}

func boolField(key string, ptr func(c *Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*ptr(c)) },
		set: func(c *Config, value string) error {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return errutils.ErrInvalidBoolValueWithKey(key, value)
			}
			*ptr(c) = b
			return nil
		},
	}
}

var fields = map[string]field{
	"addon_dir":           stringField(func(c *Config) *string { return &c.AddonDir }),
	"db_path":             stringField(func(c *Config) *string { return &c.DBPath }),
	"feeds.endpoint":      stringField(func(c *Config) *string { return &c.Feeds.Endpoint }),
	"feeds.game_id":       stringField(func(c *Config) *string { return &c.Feeds.GameID }),
	"feeds.file_list":     stringField(func(c *Config) *string { return &c.Feeds.FileList }),
	"feeds.file_details":  stringField(func(c *Config) *string { return &c.Feeds.FileDetails }),
	"feeds.list_files":    stringField(func(c *Config) *string { return &c.Feeds.ListFiles }),
	"feeds.category_list": stringField(func(c *Config) *string { return &c.Feeds.CategoryList }),
	"feeds.price_table":   stringField(func(c *Config) *string { return &c.Feeds.PriceTable }),
	"settings.user_agent": stringField(func(c *Config) *string { return &c.Settings.UserAgent }),
	"settings.log_level":  stringField(func(c *Config) *string { return &c.Settings.LogLevel }),
	"hooks.pre_install":   stringField(func(c *Config) *string { return &c.Hooks.PreInstall }),
	"hooks.post_install":  stringField(func(c *Config) *string { return &c.Hooks.PostInstall }),
	"hooks.post_remove":   stringField(func(c *Config) *string { return &c.Hooks.PostRemove }),
	"settings.http_timeout": {
		get: func(c *Config) string { return c.Settings.HTTPTimeout.String() },
		set: func(c *Config, value string) error {
			d, err := time.ParseDuration(value)
			if err != nil {
				return errutils.Wrapf(errutils.ErrConfigValidation, "invalid duration for settings.http_timeout: %s", value)
			}
			c.Settings.HTTPTimeout = d
			return nil
		},
	},
	"settings.requests_per_second": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Settings.RequestsPerSecond, 'f', -1, 64) },
		set: func(c *Config, value string) error {
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return errutils.Wrapf(errutils.ErrConfigValidation, "invalid number for settings.requests_per_second: %s", value)
			}
			c.Settings.RequestsPerSecond = f
			return nil
		},
	},
	"settings.max_concurrent": {
		get: func(c *Config) string { return strconv.Itoa(c.Settings.MaxConcurrent) },
		set: func(c *Config, value string) error {
			n, err := strconv.Atoi(value)
			if err != nil {
				return errutils.Wrapf(errutils.ErrConfigValidation, "invalid integer for settings.max_concurrent: %s", value)
			}
			c.Settings.MaxConcurrent = n
			return nil
		},
	},
	"settings.update_on_launch": boolField("settings.update_on_launch",
		func(c *Config) *bool { return &c.Settings.UpdateOnLaunch }),
	"settings.update_ttc_pricetable": boolField("settings.update_ttc_pricetable",
		func(c *Config) *bool { return &c.Settings.UpdatePriceTable }),
}

// Keys returns every settable key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetValue sets a configuration value by dotted key, e.g.
// "settings.log_level". The result is validated; on failure c is unchanged.
func (c *Config) SetValue(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return errutils.ErrUnknownConfigKeyWithName(key)
	}

	updated := *c
	if err := f.set(&updated, value); err != nil {
		return err
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	*c = updated
	return nil
}

// GetValue returns a configuration value by dotted key.
func (c *Config) GetValue(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", errutils.ErrUnknownConfigKeyWithName(key)
	}
	return f.get(c), nil
}

// ToMap returns every key with its current value, for display.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string, len(fields))
	for k, f := range fields {
		result[k] = f.get(c)
	}
	return result
}
