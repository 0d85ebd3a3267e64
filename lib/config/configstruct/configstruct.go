// Package configstruct parses unstructured maps into option structures
package configstruct

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/kmindg/tmp-sub158/lib/config/configmap"
	"github.com/pkg/errors"
)

var matchUpper = regexp.MustCompile("([A-Z]+)")

// camelToSnake converts CamelCase to snake_case
func camelToSnake(in string) string {
	out := matchUpper.ReplaceAllString(in, "_$1")
	out = strings.ToLower(out)
	out = strings.Trim(out, "_")
	return out
}

// StringToInterface turns in into an interface{} the same type as def
func StringToInterface(def interface{}, in string) (newValue interface{}, err error) {
	typ := reflect.TypeOf(def)
	if typ.Kind() == reflect.String && typ == reflect.TypeOf("") {
		// Pass plain strings unmodified
		return in, nil
	}
	// Otherwise parse with Sscanln
	//
	// This means any types we use here must implement fmt.Scanner
	o := reflect.New(typ)
	n, err := fmt.Sscanln(in, o.Interface())
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %q as %T failed", in, def)
	}
	if n != 1 {
		return nil, errors.New("no items parsed")
	}
	return o.Elem().Interface(), nil
}

// Item describes a single entry in the options structure
type Item struct {
	Name  string // snake_case
	Field string // CamelCase
	Num   int    // number of the field in the struct
	Value interface{}
}

// Items parses the opt struct and returns a slice of Item objects.
//
// opt must be a pointer to a struct.  Unexported fields and fields
// tagged `config:"-"` are skipped.
//
// The config_name is looked up in a struct tag called "config" or if
// not found is the field name converted from CamelCase to snake_case.
func Items(opt interface{}) (items []Item, err error) {
	def := reflect.ValueOf(opt)
	if def.Kind() != reflect.Ptr {
		return nil, errors.New("argument must be a pointer")
	}
	def = def.Elem() // indirect the pointer
	if def.Kind() != reflect.Struct {
		return nil, errors.New("argument must be a pointer to a struct")
	}
	defType := def.Type()
	for i := 0; i < def.NumField(); i++ {
		field := defType.Field(i)
		if field.PkgPath != "" {
			continue
		}
		configName, ok := field.Tag.Lookup("config")
		if configName == "-" {
			continue
		}
		if !ok {
			configName = camelToSnake(field.Name)
		}
		items = append(items, Item{
			Name:  configName,
			Field: field.Name,
			Num:   i,
			Value: def.Field(i).Interface(),
		})
	}
	return items, nil
}

// Set interprets the field names in defaults and looks up config
// values in the config passed in.  Any values found in config will be
// set in the opt structure.
//
// If items are found then they are converted from string to native
// types and set in opt.  An empty string is treated as unset for
// types which can't parse it.
//
// All the non-string field types in the struct must implement
// fmt.Scanner or be parseable by fmt.Sscanln.
func Set(config configmap.Getter, opt interface{}) (err error) {
	defaultItems, err := Items(opt)
	if err != nil {
		return err
	}
	defStruct := reflect.ValueOf(opt).Elem()
	for _, defaultItem := range defaultItems {
		configValue, ok := config.Get(defaultItem.Name)
		if !ok {
			continue
		}
		newValue, err := StringToInterface(defaultItem.Value, configValue)
		if err != nil {
			if configValue == "" {
				continue
			}
			return errors.Wrapf(err, "couldn't parse config item %q = %q as %T", defaultItem.Name, configValue, defaultItem.Value)
		}
		defStruct.Field(defaultItem.Num).Set(reflect.ValueOf(newValue))
	}
	return nil
}

// Dump renders the options in opt back into a configmap so the
// effective configuration can be traced or saved.
func Dump(opt interface{}) (configmap.Simple, error) {
	items, err := Items(opt)
	if err != nil {
		return nil, err
	}
	out := make(configmap.Simple, len(items))
	for _, item := range items {
		out[item.Name] = fmt.Sprint(item.Value)
	}
	return out, nil
}
