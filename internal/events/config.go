package events

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads YAML from file path. If path is empty, returns zero value.
func LoadConfig(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	err = yaml.Unmarshal(data, &c)
	return c, err
}

// Build creates the sinks enabled in cfg and returns a dispatcher over them.
// The returned close function releases sink connections.
func Build(cfg Config, dlq DLQ) (*Dispatcher, func() error, error) {
	var (
		sinks   []Sink
		closers []func() error
	)
	if s := NewWebhookSink(cfg.Sinks.Webhook); s != nil {
		sinks = append(sinks, s)
	}
	rs, err := NewRedisSink(cfg.Sinks.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rs != nil {
		sinks = append(sinks, rs)
		closers = append(closers, rs.Close)
	}
	ks, err := NewKafkaSink(cfg.Sinks.Kafka)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, nil, err
	}
	if ks != nil {
		sinks = append(sinks, ks)
		closers = append(closers, ks.Close)
	}
	d := NewDispatcher(cfg, dlq, sinks...)
	closeAll := func() error {
		d.Wait()
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}
	return d, closeAll, nil
}
