package config

import (
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch reads config/{service}.yaml (or ./{service}.yaml) into a new *T and
// watches the file. Environment variables override file values: for service
// "ledger-service", LEDGER_SERVICE_HTTP_ADDR overrides http.addr.
//
// Every change is decoded into a fresh *T passed to onChange. A value handed
// out is never written again, so it can be shared across goroutines; keys
// removed from the file are absent from the next value.
func Watch[T any](service string, onChange func(next *T)) (*T, error) {
	cur := new(T)
	v, err := read(service, cur)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("[%s] config file changed: %s", service, e.Name)

		next := new(T)
		if err := v.Unmarshal(next); err != nil {
			log.Printf("[%s] reload config error: %v", service, err)
			return
		}
		if onChange != nil {
			onChange(next)
		}
		log.Printf("[%s] config reloaded OK", service)
	})
	v.WatchConfig()

	return cur, nil
}

func read(service string, out interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(service)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix(service))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}

	log.Printf("[%s] config loaded from %s", service, v.ConfigFileUsed())
	return v, nil
}

// EnvPrefix turns a service name into a valid environment variable prefix.
func EnvPrefix(service string) string {
	return strings.ToUpper(strings.ReplaceAll(service, "-", "_"))
}
