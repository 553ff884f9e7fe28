package audio

import "fmt"

type Device interface {
	Set(key string, val interface{}) error
	Get(key string) (interface{}, error)
}

type preset map[string]interface{}

var presets = map[string]preset{
	"drum-kit": preset{
		"level":       0.,
		"env.attack":  0.,
		"env.decay":   0.,
		"env.sustain": 1.,
		"env.release": 0.05,
		"choke":       true,
	},
	"pad": preset{
		"level":       -3.,
		"env.attack":  0.4,
		"env.decay":   0.3,
		"env.sustain": 0.7,
		"env.release": 1.2,
		"choke":       false,
		"stretch":     true,
	},
	"pluck": preset{
		"env.attack":  0.,
		"env.decay":   0.25,
		"env.sustain": 0.,
		"env.release": 0.08,
		"choke":       false,
	},
}

func LoadPreset(name string, d Device) error {
	p, ok := presets[name]
	if !ok {
		return fmt.Errorf("unknown preset: %v", name)
	}
	for k, v := range p {
		if err := d.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}
