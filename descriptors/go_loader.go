package descriptors

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"
)

const (
	goModulesFuncName = "ModuleDescriptors"
	goTargetsFuncName = "TargetDescriptors"
)

// LoadGoFile evaluates a *.build.go script and collects the descriptors it
// returns from ModuleDescriptors() and TargetDescriptors(). Each function
// returns ([]map[string]any, error); at least one must be defined. The maps
// use the same keys as the YAML format.
func LoadGoFile(path string) (Set, error) {
	code, err := readRegularFile(path)
	if err != nil {
		return Set{}, err
	}
	clean := filepath.Clean(path)
	if len(strings.TrimSpace(string(code))) == 0 {
		return Set{}, fmt.Errorf("descriptors: %s is empty", clean)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return Set{}, fmt.Errorf("descriptors: load stdlib symbols: %w", err)
	}
	if _, err := i.EvalPath(clean); err != nil {
		return Set{}, fmt.Errorf("descriptors: interpret %s: %w", clean, err)
	}

	var set Set
	var found bool
	if fnValue, err := i.Eval(goModulesFuncName); err == nil {
		found = true
		raws, err := invokeDescriptorFunc(goModulesFuncName, fnValue)
		if err != nil {
			return Set{}, fmt.Errorf("descriptors: %s: %w", clean, err)
		}
		for idx, raw := range raws {
			payload, err := yaml.Marshal(raw)
			if err != nil {
				return Set{}, fmt.Errorf("descriptors: %s module[%d]: %w", clean, idx, err)
			}
			parsed, err := ParseModuleYAML(payload)
			if err != nil {
				return Set{}, fmt.Errorf("descriptors: %s module[%d]: %w", clean, idx, err)
			}
			source := fmt.Sprintf("%s#%d", clean, idx+1)
			desc := parsed[0]
			desc.Source = source
			set.Modules = append(set.Modules, ModuleFile{Descriptor: desc, Path: source})
		}
	}
	if fnValue, err := i.Eval(goTargetsFuncName); err == nil {
		found = true
		raws, err := invokeDescriptorFunc(goTargetsFuncName, fnValue)
		if err != nil {
			return Set{}, fmt.Errorf("descriptors: %s: %w", clean, err)
		}
		for idx, raw := range raws {
			payload, err := yaml.Marshal(raw)
			if err != nil {
				return Set{}, fmt.Errorf("descriptors: %s target[%d]: %w", clean, idx, err)
			}
			parsed, err := ParseTargetYAML(payload)
			if err != nil {
				return Set{}, fmt.Errorf("descriptors: %s target[%d]: %w", clean, idx, err)
			}
			source := fmt.Sprintf("%s#t%d", clean, idx+1)
			target := parsed[0]
			target.Source = source
			set.Targets = append(set.Targets, TargetFile{Descriptor: target, Path: source})
		}
	}
	if !found {
		return Set{}, fmt.Errorf("descriptors: %s must define %s() or %s() ([]map[string]any, error)", clean, goModulesFuncName, goTargetsFuncName)
	}
	return set, nil
}

func invokeDescriptorFunc(name string, value reflect.Value) ([]map[string]any, error) {
	if !value.IsValid() {
		return nil, fmt.Errorf("missing %s function", name)
	}
	fn := value
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", name)
	}
	if fn.Type().NumIn() != 0 {
		return nil, fmt.Errorf("%s must not take arguments", name)
	}
	results := fn.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", name)
	}
	listVal := results[0]
	if len(results) == 2 {
		if !results[1].IsNil() {
			if e, ok := results[1].Interface().(error); ok && e != nil {
				return nil, e
			}
			return nil, fmt.Errorf("%s returned non-error second value", name)
		}
	}
	list, ok := listVal.Interface().([]map[string]any)
	if ok {
		return list, nil
	}
	if listVal.Kind() == reflect.Slice {
		result := make([]map[string]any, listVal.Len())
		for i := 0; i < listVal.Len(); i++ {
			entry := listVal.Index(i).Interface()
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s[%d] is not map[string]any", name, i)
			}
			result[i] = m
		}
		return result, nil
	}
	return nil, fmt.Errorf("%s must return []map[string]any", name)
}
