package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix starts every environment override, e.g. CACHESIM_NUM_CORES.
const EnvPrefix = "CACHESIM_"

// Environment collects the overrides from the given .env files and the
// process environment. Missing files are skipped. The process environment
// wins over the files.
func Environment(files ...string) (map[string]string, error) {
	env := make(map[string]string)

	for _, f := range files {
		vars, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}

		for k, v := range vars {
			if strings.HasPrefix(k, EnvPrefix) {
				env[k] = v
			}
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}

	return env, nil
}

// ApplyEnv overrides knobs from env. The variable for a knob is EnvPrefix
// followed by its upper-cased JSON name.
func (k *Knobs) ApplyEnv(env map[string]string) error {
	return applyEnv(reflect.ValueOf(k).Elem(), env)
}

// ApplyEnv overrides knobs from env.
func (k *TLBKnobs) ApplyEnv(env map[string]string) error {
	return applyEnv(reflect.ValueOf(k).Elem(), env)
}

func applyEnv(v reflect.Value, env map[string]string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)

		if field.Anonymous {
			if err := applyEnv(fv, env); err != nil {
				return err
			}

			continue
		}

		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}

		key := EnvPrefix + strings.ToUpper(name)

		raw, ok := env[key]
		if !ok {
			continue
		}

		if err := setField(fv, raw); err != nil {
			return fmt.Errorf("%s=%q: %w: %v", key, raw, ErrInvalidEnvOverride, err)
		}
	}

	return nil
}

func setField(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}

		fv.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return err
		}

		fv.SetInt(n)
	case reflect.Uint64:
		n, err := strconv.ParseUint(raw, 0, 64)
		if err != nil {
			return err
		}

		fv.SetUint(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}

		fv.SetFloat(f)
	default:
		return fmt.Errorf("unsupported kind %s", fv.Kind())
	}

	return nil
}
