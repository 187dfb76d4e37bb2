/* Copyright 2019 Comcast Cable Communications Management, LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package catalog decodes behavior definitions from YAML or JSON.
//
// Decoding is purely structural.  Run the core validators (or load
// through a registry.Builder, which does) before trusting a decoded
// behavior.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jsccast/yaml"

	"github.com/Comcast/bearings/core"
)

// ReadDir decodes every *.yaml, *.yml, and *.json file in the given
// directory, in filename order.
func ReadDir(dir string) ([]*core.Behavior, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml", ".json":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	bs := make([]*core.Behavior, 0, len(names))
	for _, name := range names {
		b, err := ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		bs = append(bs, b)
	}
	return bs, nil
}

// ReadFile decodes one behavior file, choosing the codec by
// extension.
func ReadFile(filename string) (*core.Behavior, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var b *core.Behavior
	if filepath.Ext(filename) == ".json" {
		b, err = DecodeJSON(bs)
	} else {
		b, err = DecodeYAML(bs)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %s", filename, err)
	}
	return b, nil
}

func DecodeYAML(bs []byte) (*core.Behavior, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return nil, err
	}
	return FromMap(raw)
}

func DecodeJSON(bs []byte) (*core.Behavior, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(bs, &raw); err != nil {
		return nil, err
	}
	return FromMap(raw)
}

// FromMap converts a decoded document into a Behavior.  Numbers are
// normalized to float64 on the way in.
func FromMap(raw map[string]interface{}) (*core.Behavior, error) {
	canon, err := core.Canonicalize(raw)
	if err != nil {
		return nil, err
	}
	m, is := canon.(map[string]interface{})
	if !is {
		return nil, fmt.Errorf("behavior document is %T, not a map", canon)
	}

	b := &core.Behavior{}

	if b.Name, err = str(m, "name"); err != nil {
		return nil, err
	}
	if b.Category, err = str(m, "category"); err != nil {
		return nil, err
	}
	if b.Doc, err = str(m, "doc"); err != nil {
		return nil, err
	}
	if b.SuggestedFor, err = strs(m, "suggestedFor"); err != nil {
		return nil, err
	}
	if b.Listens, err = strs(m, "listens"); err != nil {
		return nil, err
	}
	if b.Config, err = configOf(m); err != nil {
		return nil, err
	}
	if b.Entities, err = entitiesOf(m); err != nil {
		return nil, err
	}
	if b.Machine, err = machineOf(m); err != nil {
		return nil, err
	}
	if b.InitialEffects, err = exprsOf(m, "initialEffects"); err != nil {
		return nil, err
	}
	if b.Ticks, err = ticksOf(m); err != nil {
		return nil, err
	}

	return b, nil
}

func configOf(m map[string]interface{}) (map[string]*core.ConfigField, error) {
	v, have := m["config"]
	if !have || v == nil {
		return nil, nil
	}
	fields, is := v.(map[string]interface{})
	if !is {
		return nil, fmt.Errorf(`"config" is %T, not a map`, v)
	}
	config := make(map[string]*core.ConfigField, len(fields))
	for name, fv := range fields {
		fm, is := fv.(map[string]interface{})
		if !is {
			return nil, fmt.Errorf(`config field %q is %T, not a map`, name, fv)
		}
		f := &core.ConfigField{Default: fm["default"]}
		var err error
		if f.Type, err = str(fm, "type"); err != nil {
			return nil, fmt.Errorf("config field %q: %s", name, err)
		}
		if f.Doc, err = str(fm, "doc"); err != nil {
			return nil, fmt.Errorf("config field %q: %s", name, err)
		}
		if req, have := fm["required"]; have {
			b, is := req.(bool)
			if !is {
				return nil, fmt.Errorf(`config field %q: "required" is %T, not a bool`, name, req)
			}
			f.Required = b
		}
		if enum, have := fm["enum"]; have {
			vals, is := enum.([]interface{})
			if !is {
				return nil, fmt.Errorf(`config field %q: "enum" is %T, not a list`, name, enum)
			}
			f.Enum = vals
		}
		config[name] = f
	}
	return config, nil
}

func entitiesOf(m map[string]interface{}) ([]*core.DataEntity, error) {
	v, have := m["entities"]
	if !have || v == nil {
		return nil, nil
	}
	items, is := v.([]interface{})
	if !is {
		return nil, fmt.Errorf(`"entities" is %T, not a list`, v)
	}
	entities := make([]*core.DataEntity, 0, len(items))
	for i, item := range items {
		em, is := item.(map[string]interface{})
		if !is {
			return nil, fmt.Errorf("entity %d is %T, not a map", i, item)
		}
		e := &core.DataEntity{}
		var err error
		if e.Name, err = str(em, "name"); err != nil {
			return nil, fmt.Errorf("entity %d: %s", i, err)
		}
		if singleton, have := em["singleton"]; have {
			b, is := singleton.(bool)
			if !is {
				return nil, fmt.Errorf(`entity %q: "singleton" is %T, not a bool`, e.Name, singleton)
			}
			e.Singleton = b
		}
		if fields, have := em["fields"]; have {
			fits, is := fields.([]interface{})
			if !is {
				return nil, fmt.Errorf(`entity %q: "fields" is %T, not a list`, e.Name, fields)
			}
			for j, fit := range fits {
				fm, is := fit.(map[string]interface{})
				if !is {
					return nil, fmt.Errorf("entity %q field %d is %T, not a map", e.Name, j, fit)
				}
				f := &core.FieldSpec{Default: fm["default"]}
				if f.Name, err = str(fm, "name"); err != nil {
					return nil, fmt.Errorf("entity %q field %d: %s", e.Name, j, err)
				}
				if f.Type, err = str(fm, "type"); err != nil {
					return nil, fmt.Errorf("entity %q field %d: %s", e.Name, j, err)
				}
				e.Fields = append(e.Fields, f)
			}
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func machineOf(m map[string]interface{}) (*core.Machine, error) {
	v, have := m["machine"]
	if !have || v == nil {
		return nil, nil
	}
	mm, is := v.(map[string]interface{})
	if !is {
		return nil, fmt.Errorf(`"machine" is %T, not a map`, v)
	}

	machine := &core.Machine{}
	var err error
	if machine.Initial, err = str(mm, "initial"); err != nil {
		return nil, err
	}
	if machine.Events, err = strs(mm, "events"); err != nil {
		return nil, err
	}

	if states, have := mm["states"]; have {
		items, is := states.([]interface{})
		if !is {
			return nil, fmt.Errorf(`"states" is %T, not a list`, states)
		}
		for i, item := range items {
			switch x := item.(type) {
			case string:
				machine.States = append(machine.States, &core.StateSpec{Name: x})
			case map[string]interface{}:
				s := &core.StateSpec{}
				if s.Name, err = str(x, "name"); err != nil {
					return nil, fmt.Errorf("state %d: %s", i, err)
				}
				s.Initial, _ = x["initial"].(bool)
				s.Final, _ = x["final"].(bool)
				machine.States = append(machine.States, s)
			default:
				return nil, fmt.Errorf("state %d is %T, not a string or map", i, item)
			}
		}
	}

	if transitions, have := mm["transitions"]; have {
		items, is := transitions.([]interface{})
		if !is {
			return nil, fmt.Errorf(`"transitions" is %T, not a list`, transitions)
		}
		for i, item := range items {
			tm, is := item.(map[string]interface{})
			if !is {
				return nil, fmt.Errorf("transition %d is %T, not a map", i, item)
			}
			t := &core.Transition{}
			if t.From, err = fromOf(tm["from"]); err != nil {
				return nil, fmt.Errorf("transition %d: %s", i, err)
			}
			if t.To, err = str(tm, "to"); err != nil {
				return nil, fmt.Errorf("transition %d: %s", i, err)
			}
			if t.Event, err = str(tm, "event"); err != nil {
				return nil, fmt.Errorf("transition %d: %s", i, err)
			}
			if t.Doc, err = str(tm, "doc"); err != nil {
				return nil, fmt.Errorf("transition %d: %s", i, err)
			}
			if t.Guard, err = exprOf(tm, "guard"); err != nil {
				return nil, fmt.Errorf("transition %d: %s", i, err)
			}
			if t.Effects, err = exprsOf(tm, "effects"); err != nil {
				return nil, fmt.Errorf("transition %d: %s", i, err)
			}
			machine.Transitions = append(machine.Transitions, t)
		}
	}

	return machine, nil
}

// fromOf accepts a single state name, a list of names, or "*".
func fromOf(v interface{}) (core.StateSet, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf(`missing "from"`)
	case string:
		if x == "" {
			return nil, fmt.Errorf(`empty "from"`)
		}
		return core.StateSet{x}, nil
	case []interface{}:
		set := make(core.StateSet, 0, len(x))
		for _, item := range x {
			s, is := item.(string)
			if !is {
				return nil, fmt.Errorf(`"from" element is %T, not a string`, item)
			}
			set = append(set, s)
		}
		if len(set) == 0 {
			return nil, fmt.Errorf(`empty "from"`)
		}
		return set, nil
	default:
		return nil, fmt.Errorf(`"from" is %T, not a string or list`, v)
	}
}

func ticksOf(m map[string]interface{}) ([]*core.Tick, error) {
	v, have := m["ticks"]
	if !have || v == nil {
		return nil, nil
	}
	items, is := v.([]interface{})
	if !is {
		return nil, fmt.Errorf(`"ticks" is %T, not a list`, v)
	}
	ticks := make([]*core.Tick, 0, len(items))
	for i, item := range items {
		tm, is := item.(map[string]interface{})
		if !is {
			return nil, fmt.Errorf("tick %d is %T, not a map", i, item)
		}
		tick := &core.Tick{}
		var err error
		if tick.Name, err = str(tm, "name"); err != nil {
			return nil, fmt.Errorf("tick %d: %s", i, err)
		}
		if tick.Cron, err = str(tm, "cron"); err != nil {
			return nil, fmt.Errorf("tick %d: %s", i, err)
		}
		if tick.Every, tick.Frame, err = everyOf(tm["every"]); err != nil {
			return nil, fmt.Errorf("tick %d: %s", i, err)
		}
		if tick.Guard, err = exprOf(tm, "guard"); err != nil {
			return nil, fmt.Errorf("tick %d: %s", i, err)
		}
		if tick.Effects, err = exprsOf(tm, "effects"); err != nil {
			return nil, fmt.Errorf("tick %d: %s", i, err)
		}
		if tick.Every == 0 && !tick.Frame && tick.Cron == "" {
			return nil, fmt.Errorf(`tick %d has neither "every" nor "cron"`, i)
		}
		ticks = append(ticks, tick)
	}
	return ticks, nil
}

// everyOf accepts "frame", a duration string like "500ms", or a bare
// number of milliseconds.
func everyOf(v interface{}) (time.Duration, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case string:
		if x == "frame" {
			return 0, true, nil
		}
		d, err := time.ParseDuration(x)
		if err != nil {
			return 0, false, err
		}
		if d <= 0 {
			return 0, false, fmt.Errorf(`"every" %q is not positive`, x)
		}
		return d, false, nil
	case float64:
		if x <= 0 {
			return 0, false, fmt.Errorf(`"every" %v is not positive`, x)
		}
		return time.Duration(x * float64(time.Millisecond)), false, nil
	default:
		return 0, false, fmt.Errorf(`"every" is %T, not a string or number`, v)
	}
}

func exprOf(m map[string]interface{}, key string) (core.Expr, error) {
	v, have := m[key]
	if !have || v == nil {
		return nil, nil
	}
	e, err := core.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %s", key, err)
	}
	return e, nil
}

func exprsOf(m map[string]interface{}, key string) ([]core.Expr, error) {
	v, have := m[key]
	if !have || v == nil {
		return nil, nil
	}
	items, is := v.([]interface{})
	if !is {
		return nil, fmt.Errorf("%q is %T, not a list", key, v)
	}
	es, err := core.ParseAll(items)
	if err != nil {
		return nil, fmt.Errorf("%s: %s", key, err)
	}
	return es, nil
}

func str(m map[string]interface{}, key string) (string, error) {
	v, have := m[key]
	if !have || v == nil {
		return "", nil
	}
	s, is := v.(string)
	if !is {
		return "", fmt.Errorf("%q is %T, not a string", key, v)
	}
	return s, nil
}

func strs(m map[string]interface{}, key string) ([]string, error) {
	v, have := m[key]
	if !have || v == nil {
		return nil, nil
	}
	items, is := v.([]interface{})
	if !is {
		return nil, fmt.Errorf("%q is %T, not a list", key, v)
	}
	ss := make([]string, 0, len(items))
	for _, item := range items {
		s, is := item.(string)
		if !is {
			return nil, fmt.Errorf("%q element is %T, not a string", key, item)
		}
		ss = append(ss, s)
	}
	return ss, nil
}
