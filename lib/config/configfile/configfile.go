// Package configfile reads raid group and harness configuration from
// a YAML file.
//
// The file holds one mapping per section:
//
//	raid_group:
//	  raid_type: raid5
//	  width: 5
//	  parity_positions: [4]
//	fault_inject:
//	  enabled: true
//
// Each section is exposed as a configmap.Getter.
package configfile

import (
	"fmt"
	"io/ioutil"
	"sort"
	"strings"

	"github.com/kmindg/tmp-sub158/lib/config/configmap"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// File is a parsed configuration file
type File struct {
	sections map[string]configmap.Simple
}

// Load reads and parses the config file at path
func Load(path string) (*File, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	f, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %q", path)
	}
	return f, nil
}

// Parse parses YAML config data
func Parse(data []byte) (*File, error) {
	var raw map[string]map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	f := &File{sections: make(map[string]configmap.Simple, len(raw))}
	for name, items := range raw {
		section := make(configmap.Simple, len(items))
		for key, value := range items {
			section[key] = render(value)
		}
		f.sections[name] = section
	}
	return f, nil
}

// render turns a YAML scalar or list into the string form the
// configstruct parsers expect.  Lists become comma separated.
func render(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, len(v))
		for i := range v {
			parts[i] = render(v[i])
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(value)
}

// Sections returns the section names in sorted order
func (f *File) Sections() []string {
	names := make([]string, 0, len(f.sections))
	for name := range f.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Section returns a Getter for the named section.  A missing section
// reads as empty.
func (f *File) Section(name string) configmap.Getter {
	if section, ok := f.sections[name]; ok {
		return section
	}
	return configmap.Simple{}
}

// Getter returns a configmap for the named section where environment
// variables (RAID_<SECTION>_<KEY>) take precedence over the file.
func (f *File) Getter(name string) *configmap.Map {
	return configmap.New().
		AddGetter(configmap.Env(name)).
		AddGetter(f.Section(name))
}
