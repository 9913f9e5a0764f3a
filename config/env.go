package config

import (
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// envKey returns the variable name viper reads for a config key:
// rabbitmq.connect_attempts -> RABBITMQ_CONNECT_ATTEMPTS.
func envKey(key string) string {
	return strings.ToUpper(envKeyReplacer.Replace(key))
}

// bindEnv binds every leaf key of cfg to its environment variable, plus any
// aliases registered for that key. Viper only consults the environment for
// keys it knows about, so keys that never appear in config.yml would
// otherwise be skipped by Unmarshal. Empty variables count as unset.
func bindEnv(v *viper.Viper, cfg interface{}, aliases map[string][]string) error {
	bound := make(map[string]bool)
	for _, key := range configKeys(reflect.TypeOf(cfg), "") {
		bound[key] = true
		args := append([]string{key, envKey(key)}, aliases[key]...)
		if err := v.BindEnv(args...); err != nil {
			return err
		}
	}
	// Aliases for keys outside the struct still reach viper.
	for key, names := range aliases {
		if bound[key] {
			continue
		}
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return err
		}
	}
	return nil
}

// configKeys lists the dotted mapstructure keys of every leaf field in t.
func configKeys(t reflect.Type, prefix string) []string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, squash := parseTag(f)
		if name == "-" {
			continue
		}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			next := prefix
			if !squash {
				next = joinKey(prefix, name)
			}
			keys = append(keys, configKeys(ft, next)...)
			continue
		}
		keys = append(keys, joinKey(prefix, name))
	}
	return keys
}

func parseTag(f reflect.StructField) (name string, squash bool) {
	tag := f.Tag.Get("mapstructure")
	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, opt := range parts[1:] {
		if opt == "squash" {
			squash = true
		}
	}
	if name == "" && !squash {
		name = strings.ToLower(f.Name)
	}
	return name, squash
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
