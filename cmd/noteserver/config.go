package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rogpeppe/rjson"
	"github.com/spf13/pflag"
)

type config struct {
	Host        string        `json:"host" validate:"required"`
	Port        int           `json:"port" validate:"required,min=1,max=65535"`
	Cache       string        `json:"cache" validate:"required"`
	Debug       bool          `json:"debug"`
	Metrics     bool          `json:"metrics"`
	Gops        bool          `json:"gops"`
	MaxBodySize int64         `json:"max_body_size" validate:"gte=0"`
	Mirror      *mirrorConfig `json:"mirror"`
}

type mirrorConfig struct {
	Kind string `json:"kind" validate:"oneof=bolt s3"`

	// For bolt.
	Path string `json:"path" validate:"required_if=Kind bolt"`

	// For s3.
	Profile string `json:"profile"`
	Region  string `json:"region" validate:"required_if=Kind s3"`
	Bucket  string `json:"bucket" validate:"required_if=Kind s3"`
	Prefix  string `json:"prefix"`

	// Replica calls per second, zero for no limit.
	Rate float64 `json:"rate" validate:"gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func loadConfig(pathname string) (*config, error) {
	f, err := os.Open(pathname)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	var c *config
	if err := rjson.NewDecoder(f).Decode(&c); err != nil {
		return nil, err
	}
	if c == nil {
		c = new(config)
	}
	return c, nil
}

// resolveConfig merges the configuration file, if any, with the flags that
// were set on the command line, and checks the result.
func resolveConfig(flags *pflag.FlagSet, configFile string, fromFlags config) (*config, error) {
	c := new(config)
	if configFile != "" {
		loaded, err := loadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("loading configuration from %q: %w", configFile, err)
		}
		c = loaded
	}
	if flags.Changed("host") {
		c.Host = fromFlags.Host
	}
	if flags.Changed("port") {
		c.Port = fromFlags.Port
	}
	if flags.Changed("cache") {
		c.Cache = fromFlags.Cache
	}
	if flags.Changed("debug") {
		c.Debug = fromFlags.Debug
	}
	if flags.Changed("metrics") {
		c.Metrics = fromFlags.Metrics
	}
	if flags.Changed("gops") {
		c.Gops = fromFlags.Gops
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *config) check() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

func describe(fe validator.FieldError) string {
	// Drop the leading struct name.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("missing %s", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min", "max", "gte":
		return fmt.Sprintf("%s out of range: %v", field, fe.Value())
	default:
		return fmt.Sprintf("%s fails %q check", field, fe.Tag())
	}
}
