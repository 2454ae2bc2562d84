// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

// Package cfgstruct binds configuration structs to command line flags.
//
// Struct fields carry `help:"..."` and `default:"..."` tags; nested
// structs become dot-separated flag prefixes. An environment variable of
// the form GEOSTAC_<FLAG> (dots and dashes as underscores, upper case)
// overrides the compiled default.
package cfgstruct

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/zeebo/errs"
)

// Error is the default error class for the cfgstruct package.
var Error = errs.Class("cfgstruct")

// EnvPrefix is prepended to environment variable lookups.
const EnvPrefix = "GEOSTAC"

// Bind registers flags for every tagged field of config, which must be a
// pointer to a struct. Flag names are lower-case dotted paths, e.g.
// "api.address" for Config{ API struct{ Address string } }.
func Bind(flags *pflag.FlagSet, config interface{}) {
	value := reflect.ValueOf(config)
	if value.Kind() != reflect.Ptr || value.Elem().Kind() != reflect.Struct {
		panic(Error.New("expected pointer to struct, got %T", config))
	}
	bindStruct(flags, value.Elem(), "")
}

func bindStruct(flags *pflag.FlagSet, structValue reflect.Value, prefix string) {
	structType := structValue.Type()
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		fieldValue := structValue.Field(i)
		if !fieldValue.CanAddr() || !field.IsExported() {
			continue
		}

		name := hyphenate(field.Name)
		if prefix != "" {
			name = prefix + "." + name
		}

		if field.Type.Kind() == reflect.Struct {
			bindStruct(flags, fieldValue, name)
			continue
		}

		help := field.Tag.Get("help")
		def := field.Tag.Get("default")
		if value, ok := envLookup(name); ok {
			def = value
		}

		bindField(flags, fieldValue, name, def, help)
	}
}

func bindField(flags *pflag.FlagSet, fieldValue reflect.Value, name, def, help string) {
	addr := fieldValue.Addr().Interface()
	switch target := addr.(type) {
	case *string:
		flags.StringVar(target, name, def, help)
	case *bool:
		flags.BoolVar(target, name, parseBool(name, def), help)
	case *int:
		flags.IntVar(target, name, int(parseInt(name, def)), help)
	case *int64:
		flags.Int64Var(target, name, parseInt(name, def), help)
	case *float64:
		flags.Float64Var(target, name, parseFloat(name, def), help)
	case *time.Duration:
		flags.DurationVar(target, name, parseDuration(name, def), help)
	default:
		panic(Error.New("unsupported field type %T for flag %q", addr, name))
	}
}

func envLookup(flagName string) (string, bool) {
	key := strings.NewReplacer(".", "_", "-", "_").Replace(flagName)
	return os.LookupEnv(EnvPrefix + "_" + strings.ToUpper(key))
}

// hyphenate converts CamelCase field names into flag-style names,
// e.g. PresignedExpiry -> presigned-expiry.
func hyphenate(name string) string {
	var out strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' && name[i-1] >= 'a' && name[i-1] <= 'z' {
			out.WriteByte('-')
		}
		out.WriteRune(r)
	}
	return strings.ToLower(out.String())
}

func parseBool(name, def string) bool {
	if def == "" {
		return false
	}
	v, err := strconv.ParseBool(def)
	if err != nil {
		panic(Error.New("invalid bool default for %q: %v", name, err))
	}
	return v
}

func parseInt(name, def string) int64 {
	if def == "" {
		return 0
	}
	v, err := strconv.ParseInt(def, 10, 64)
	if err != nil {
		panic(Error.New("invalid integer default for %q: %v", name, err))
	}
	return v
}

func parseFloat(name, def string) float64 {
	if def == "" {
		return 0
	}
	v, err := strconv.ParseFloat(def, 64)
	if err != nil {
		panic(Error.New("invalid float default for %q: %v", name, err))
	}
	return v
}

func parseDuration(name, def string) time.Duration {
	if def == "" {
		return 0
	}
	v, err := time.ParseDuration(def)
	if err != nil {
		panic(Error.New("invalid duration default for %q: %v", name, err))
	}
	return v
}

// String is a convenience for debugging bound values.
func String(flags *pflag.FlagSet) string {
	var out strings.Builder
	flags.VisitAll(func(flag *pflag.Flag) {
		fmt.Fprintf(&out, "%s=%s\n", flag.Name, flag.Value.String())
	})
	return out.String()
}
