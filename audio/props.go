package audio

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// Props stores device configuration that can be updated without locks. The
// render path reads registered values straight from their atomic.Value; the
// control path goes through Set, which validates. All properties should be
// registered before any reads take place.
type Props struct {
	properties map[string]*atomic.Value
	setters    map[string]setter
}

func NewProps() *Props {
	return &Props{
		properties: make(map[string]*atomic.Value),
		setters:    make(map[string]setter),
	}
}

// Set updates the property with value. The key has to be registered first
// using Register.
func (p *Props) Set(key string, value interface{}) error {
	prop, ok := p.properties[key]
	if !ok {
		return fmt.Errorf("unknown property %s", key)
	}
	set := p.setters[key]
	if err := set(value, prop); err != nil {
		return fmt.Errorf("set property %s: %w", key, err)
	}
	return nil
}

func (p *Props) Get(key string) (interface{}, error) {
	prop, ok := p.properties[key]
	if !ok {
		return nil, fmt.Errorf("unknown property %s", key)
	}
	return prop.Load(), nil
}

// Keys lists the registered property names, sorted.
func (p *Props) Keys() []string {
	keys := make([]string, 0, len(p.properties))
	for k := range p.properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Register adds a new property.
func (p *Props) Register(key string, set setter, init interface{}) (*atomic.Value, error) {
	var prop atomic.Value
	p.properties[key] = &prop
	p.setters[key] = set
	return &prop, set(init, &prop)
}

func (p *Props) MustRegister(key string, set setter, init interface{}) *atomic.Value {
	prop, err := p.Register(key, set, init)
	if err != nil {
		panic(err)
	}
	return prop
}

type setter func(val interface{}, dest *atomic.Value) error

var (
	setEnvParam = setFloat64(0, 15)
	setLevel    = setFloat64(-40, 10)
	setSustain  = setFloat64(0, 1)
)

func setFloat64(min, max float64) setter {
	return func(v interface{}, dest *atomic.Value) error {
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case int:
			f = float64(n)
		default:
			return fmt.Errorf("value is not a float64: %v", v)
		}
		if f < min || f > max {
			return fmt.Errorf("property value is not in valid range %v - %v: %v", min, max, f)
		}
		dest.Store(f)
		return nil
	}
}

func setInt(v interface{}, dest *atomic.Value) error {
	switch n := v.(type) {
	case float64:
		dest.Store(int(n))
	case int:
		dest.Store(n)
	default:
		return fmt.Errorf("value is not an int: %v", v)
	}
	return nil
}

func setBool(v interface{}, dest *atomic.Value) error {
	switch n := v.(type) {
	case bool:
		dest.Store(n)
	case int:
		dest.Store(n != 0)
	case float64:
		dest.Store(n != 0)
	default:
		return fmt.Errorf("value is not a bool: %v", v)
	}
	return nil
}

func setSampleMap(v interface{}, dest *atomic.Value) error {
	if m, ok := v.(*SampleMapper); ok {
		dest.Store(m)
		return nil
	}
	return fmt.Errorf("property value is not a sample map: %v", v)
}

func loadFloat(v *atomic.Value) float64 { return v.Load().(float64) }
func loadBool(v *atomic.Value) bool     { return v.Load().(bool) }
func loadInt(v *atomic.Value) int       { return v.Load().(int) }
